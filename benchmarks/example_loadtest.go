//go:build ignore
// +build ignore

// Example load test runner
// Run with: go run example_loadtest.go [-url http://host/hub]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http/httptest"
	"time"

	"github.com/ajitpratap0/rtconn-go/benchmarks"
	"github.com/ajitpratap0/rtconn-go/examples/shared"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
)

func main() {
	endpoint := flag.String("url", "", "hub URL (default: an in-process hub)")
	flag.Parse()

	if *endpoint == "" {
		srv := httptest.NewServer(shared.NewHub(logging.Nop()))
		defer srv.Close()
		*endpoint = srv.URL + "/hub"
	}

	fmt.Println("=== Connection Load Test Example ===")

	fmt.Println("\n1. Running light load test (10 clients, 100 operations each)...")
	run(*endpoint, benchmarks.LoadTestConfig{
		Clients:           10,
		RequestsPerClient: 100,
		RampUpTime:        time.Second,
		OperationMix:      benchmarks.OperationMix{RoundTrip: 80, Send: 20},
	})

	fmt.Println("\n2. Running churn test (20 clients, start/stop heavy)...")
	run(*endpoint, benchmarks.LoadTestConfig{
		Clients:           20,
		RequestsPerClient: 50,
		OperationMix:      benchmarks.OperationMix{RoundTrip: 50, StartStop: 50},
	})

	fmt.Println("\n3. Running rate-limited test (50 ops/s for 10s)...")
	run(*endpoint, benchmarks.LoadTestConfig{
		Clients:   5,
		RateLimit: 50,
		Duration:  10 * time.Second,
	})
}

func run(endpoint string, config benchmarks.LoadTestConfig) {
	config.Endpoint = endpoint
	config.ReportInterval = 2 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := benchmarks.NewLoadTester(config).Run(ctx)
	if err != nil {
		log.Fatalf("Load test failed: %v", err)
	}
	result.PrintResults()
}
