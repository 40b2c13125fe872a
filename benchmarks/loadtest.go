// Package benchmarks provides performance and load testing for connections
package benchmarks

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/rtconn-go/pkg/connection"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// Operation names
const (
	OpRoundTrip = "RoundTrip"
	OpSend      = "Send"
	OpStartStop = "StartStop"
)

// LoadTestConfig configures load testing parameters
type LoadTestConfig struct {
	// Endpoint is the hub URL. The hub must send every message back to its sender.
	Endpoint string

	// Number of concurrent connections
	Clients int

	// Number of operations per connection
	RequestsPerClient int

	// Operation rate limit (operations per second, 0 = unlimited)
	RateLimit int

	// Test duration (0 = run until all operations complete)
	Duration time.Duration

	// Ramp up period for gradual load increase
	RampUpTime time.Duration

	// Mix of operations to perform
	OperationMix OperationMix

	// Transports the connections may use (default: all)
	Transports transport.Kind

	// RoundTripTimeout bounds the wait for an echo
	RoundTripTimeout time.Duration

	// Reporting interval
	ReportInterval time.Duration
}

// OperationMix defines the distribution of different operations
type OperationMix struct {
	RoundTrip float64 // Send and wait for the hub to echo the message
	Send      float64 // Send without waiting
	StartStop float64 // Start and stop a fresh connection
}

// LoadTestResult contains the results of a load test
type LoadTestResult struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	TotalDuration      time.Duration

	// Latency statistics (in milliseconds)
	MinLatency float64
	MaxLatency float64
	AvgLatency float64
	P50Latency float64
	P90Latency float64
	P95Latency float64
	P99Latency float64

	// Throughput
	RequestsPerSecond float64

	// Error breakdown
	ErrorCounts map[string]int64

	// Operation-specific metrics
	OperationMetrics map[string]*OperationMetrics
}

// OperationMetrics tracks metrics for a specific operation type
type OperationMetrics struct {
	Count      int64
	Successful int64
	Failed     int64
	TotalTime  time.Duration
	MinTime    time.Duration
	MaxTime    time.Duration

	mu        sync.Mutex
	latencies []time.Duration
}

// loadClient is one connection plus the echoes it is waiting for.
type loadClient struct {
	id      int
	conn    *connection.Connection
	pending sync.Map // message -> chan struct{}
	seq     atomic.Int64
}

// LoadTester drives many connections against one hub
type LoadTester struct {
	config LoadTestConfig

	// Metrics
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	errorCounts        sync.Map
	operationMetrics   sync.Map

	// Control
	startTime time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewLoadTester creates a new load tester
func NewLoadTester(config LoadTestConfig) *LoadTester {
	// Set defaults
	if config.ReportInterval == 0 {
		config.ReportInterval = 5 * time.Second
	}
	if config.RoundTripTimeout == 0 {
		config.RoundTripTimeout = 5 * time.Second
	}
	if config.Transports == transport.None {
		config.Transports = transport.All
	}

	// Normalize operation mix
	total := config.OperationMix.RoundTrip + config.OperationMix.Send + config.OperationMix.StartStop
	if total == 0 {
		// Default mix
		config.OperationMix = OperationMix{RoundTrip: 70, Send: 25, StartStop: 5}
		total = 100
	}
	config.OperationMix.RoundTrip /= total
	config.OperationMix.Send /= total
	config.OperationMix.StartStop /= total

	return &LoadTester{
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Run executes the load test
func (lt *LoadTester) Run(ctx context.Context) (*LoadTestResult, error) {
	lt.startTime = time.Now()
	defer lt.stop()

	// Start reporting goroutine
	go lt.reportProgress()

	// Connect every client concurrently
	clients := make([]*loadClient, lt.config.Clients)
	g, gctx := errgroup.WithContext(ctx)
	for i := range clients {
		i := i
		g.Go(func() error {
			c, err := lt.connect(gctx, i)
			if err != nil {
				return fmt.Errorf("failed to start client %d: %w", i, err)
			}
			clients[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		lt.stopClients(clients)
		return nil, err
	}
	defer lt.stopClients(clients)

	// Start load generation
	rateLimiter := lt.createRateLimiter()

	for i, c := range clients {
		lt.wg.Add(1)
		go lt.runClient(ctx, c, rateLimiter)

		// Ramp up delay
		if lt.config.RampUpTime > 0 && i < len(clients)-1 {
			time.Sleep(lt.config.RampUpTime / time.Duration(len(clients)-1))
		}
	}

	// Wait for completion or timeout
	done := make(chan struct{})
	go func() {
		lt.wg.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if lt.config.Duration > 0 {
		timer := time.NewTimer(lt.config.Duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
	case <-timeout:
		lt.stop()
		<-done
	case <-ctx.Done():
		lt.stop()
		<-done
	}

	return lt.calculateResults(), nil
}

func (lt *LoadTester) stop() {
	lt.stopOnce.Do(func() { close(lt.stopCh) })
}

// connect creates and starts one client
func (lt *LoadTester) connect(ctx context.Context, id int) (*loadClient, error) {
	conn, err := lt.newConnection()
	if err != nil {
		return nil, err
	}
	c := &loadClient{id: id, conn: conn}
	conn.OnReceive(func(data []byte) {
		if v, ok := c.pending.LoadAndDelete(string(data)); ok {
			close(v.(chan struct{}))
		}
	})
	if err := conn.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (lt *LoadTester) newConnection() (*connection.Connection, error) {
	return connection.New(lt.config.Endpoint,
		connection.WithTransport(transport.ByKind(lt.config.Transports)),
		connection.WithTransferFormat(protocol.Text),
		connection.WithLogger(logging.Nop()),
	)
}

func (lt *LoadTester) stopClients(clients []*loadClient) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, c := range clients {
		if c != nil {
			_ = c.conn.Stop(ctx, nil)
		}
	}
}

// runClient runs a single client's workload
func (lt *LoadTester) runClient(ctx context.Context, c *loadClient, rateLimiter <-chan struct{}) {
	defer lt.wg.Done()

	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(c.id)))
	requestCount := 0
	for {
		select {
		case <-lt.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		// Check if we've reached the request limit
		if lt.config.RequestsPerClient > 0 && requestCount >= lt.config.RequestsPerClient {
			return
		}

		// Rate limiting
		if rateLimiter != nil {
			select {
			case <-rateLimiter:
			case <-lt.stopCh:
				return
			}
		}

		lt.executeOperation(ctx, c, lt.selectOperation(rng.Float64()))
		requestCount++
	}
}

// selectOperation chooses an operation based on the configured mix
func (lt *LoadTester) selectOperation(r float64) string {
	mix := lt.config.OperationMix
	switch {
	case r < mix.RoundTrip:
		return OpRoundTrip
	case r < mix.RoundTrip+mix.Send:
		return OpSend
	default:
		return OpStartStop
	}
}

// executeOperation performs a single operation and records metrics
func (lt *LoadTester) executeOperation(ctx context.Context, c *loadClient, operation string) {
	start := time.Now()
	var err error

	atomic.AddInt64(&lt.totalRequests, 1)

	switch operation {
	case OpRoundTrip:
		err = lt.roundTrip(ctx, c)
	case OpSend:
		err = c.conn.Send(ctx, []byte(c.nextMessage()))
	case OpStartStop:
		err = lt.startStop(ctx)
	}

	duration := time.Since(start)

	// Update metrics
	metrics := lt.getOperationMetrics(operation)
	metrics.recordOperation(duration, err)

	if err != nil {
		atomic.AddInt64(&lt.failedRequests, 1)
		lt.recordError(err)
	} else {
		atomic.AddInt64(&lt.successfulRequests, 1)
	}
}

func (c *loadClient) nextMessage() string {
	return fmt.Sprintf("client-%d-%d", c.id, c.seq.Add(1))
}

func (lt *LoadTester) roundTrip(ctx context.Context, c *loadClient) error {
	msg := c.nextMessage()
	echoed := make(chan struct{})
	c.pending.Store(msg, echoed)

	if err := c.conn.Send(ctx, []byte(msg)); err != nil {
		c.pending.Delete(msg)
		return err
	}

	timer := time.NewTimer(lt.config.RoundTripTimeout)
	defer timer.Stop()
	select {
	case <-echoed:
		return nil
	case <-timer.C:
		c.pending.Delete(msg)
		return fmt.Errorf("no echo within %s", lt.config.RoundTripTimeout)
	case <-ctx.Done():
		c.pending.Delete(msg)
		return ctx.Err()
	}
}

func (lt *LoadTester) startStop(ctx context.Context) error {
	conn, err := lt.newConnection()
	if err != nil {
		return err
	}
	if err := conn.Start(ctx); err != nil {
		return err
	}
	return conn.Stop(ctx, nil)
}

// getOperationMetrics returns metrics for a specific operation
func (lt *LoadTester) getOperationMetrics(operation string) *OperationMetrics {
	v, _ := lt.operationMetrics.LoadOrStore(operation, &OperationMetrics{})
	metrics, _ := v.(*OperationMetrics)
	return metrics
}

// recordOperation records a single operation's metrics
func (m *OperationMetrics) recordOperation(duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Count++
	m.TotalTime += duration

	if err != nil {
		m.Failed++
	} else {
		m.Successful++
	}

	if m.MinTime == 0 || duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	m.latencies = append(m.latencies, duration)
}

// recordError records an error occurrence
func (lt *LoadTester) recordError(err error) {
	counter, _ := lt.errorCounts.LoadOrStore(err.Error(), new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)
}

// createRateLimiter creates a rate limiter channel
func (lt *LoadTester) createRateLimiter() <-chan struct{} {
	if lt.config.RateLimit <= 0 {
		return nil
	}

	ch := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(lt.config.RateLimit))
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				select {
				case ch <- struct{}{}:
				case <-lt.stopCh:
					return
				}
			case <-lt.stopCh:
				return
			}
		}
	}()

	return ch
}

// reportProgress periodically reports test progress
func (lt *LoadTester) reportProgress() {
	ticker := time.NewTicker(lt.config.ReportInterval)
	defer ticker.Stop()

	lastRequests := int64(0)
	lastTime := time.Now()

	for {
		select {
		case <-ticker.C:
			currentRequests := atomic.LoadInt64(&lt.totalRequests)
			currentTime := time.Now()

			elapsed := currentTime.Sub(lastTime).Seconds()
			rps := float64(currentRequests-lastRequests) / elapsed

			successful := atomic.LoadInt64(&lt.successfulRequests)
			failed := atomic.LoadInt64(&lt.failedRequests)

			log.Printf("Progress: %d operations (%.1f op/s), %d successful, %d failed",
				currentRequests, rps, successful, failed)

			lastRequests = currentRequests
			lastTime = currentTime

		case <-lt.stopCh:
			return
		}
	}
}

// calculateResults computes the final test results
func (lt *LoadTester) calculateResults() *LoadTestResult {
	duration := time.Since(lt.startTime)

	result := &LoadTestResult{
		TotalRequests:      atomic.LoadInt64(&lt.totalRequests),
		SuccessfulRequests: atomic.LoadInt64(&lt.successfulRequests),
		FailedRequests:     atomic.LoadInt64(&lt.failedRequests),
		TotalDuration:      duration,
		RequestsPerSecond:  float64(atomic.LoadInt64(&lt.totalRequests)) / duration.Seconds(),
		ErrorCounts:        make(map[string]int64),
		OperationMetrics:   make(map[string]*OperationMetrics),
	}

	// Collect error counts
	lt.errorCounts.Range(func(key, value interface{}) bool {
		errStr, _ := key.(string)
		counter, _ := value.(*atomic.Int64)
		result.ErrorCounts[errStr] = counter.Load()
		return true
	})

	// Collect operation metrics and calculate overall latencies
	var allLatencies []time.Duration
	lt.operationMetrics.Range(func(key, value interface{}) bool {
		opName, _ := key.(string)
		metrics, _ := value.(*OperationMetrics)

		result.OperationMetrics[opName] = metrics
		metrics.mu.Lock()
		allLatencies = append(allLatencies, metrics.latencies...)
		metrics.mu.Unlock()

		return true
	})

	// Calculate latency statistics
	if len(allLatencies) > 0 {
		sort.Slice(allLatencies, func(i, j int) bool { return allLatencies[i] < allLatencies[j] })

		result.MinLatency = millis(allLatencies[0])
		result.MaxLatency = millis(allLatencies[len(allLatencies)-1])
		result.AvgLatency = millis(avgDuration(allLatencies))
		result.P50Latency = millis(percentileDuration(allLatencies, 50))
		result.P90Latency = millis(percentileDuration(allLatencies, 90))
		result.P95Latency = millis(percentileDuration(allLatencies, 95))
		result.P99Latency = millis(percentileDuration(allLatencies, 99))
	}

	return result
}

// Helper functions for statistics

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func avgDuration(durations []time.Duration) time.Duration {
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return sum / time.Duration(len(durations))
}

func percentileDuration(sortedDurations []time.Duration, percentile float64) time.Duration {
	index := int(math.Ceil(float64(len(sortedDurations))*percentile/100.0)) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sortedDurations) {
		index = len(sortedDurations) - 1
	}
	return sortedDurations[index]
}

// PrintResults prints load test results in a readable format
func (r *LoadTestResult) PrintResults() {
	fmt.Println("\n=== Load Test Results ===")
	fmt.Printf("Total Duration: %s\n", r.TotalDuration)
	fmt.Printf("Total Operations: %d\n", r.TotalRequests)
	if r.TotalRequests > 0 {
		fmt.Printf("Successful: %d (%.1f%%)\n", r.SuccessfulRequests,
			float64(r.SuccessfulRequests)/float64(r.TotalRequests)*100)
		fmt.Printf("Failed: %d (%.1f%%)\n", r.FailedRequests,
			float64(r.FailedRequests)/float64(r.TotalRequests)*100)
	}
	fmt.Printf("Operations/sec: %.2f\n", r.RequestsPerSecond)

	fmt.Println("\nLatency Statistics (ms):")
	fmt.Printf("  Min: %.2f\n", r.MinLatency)
	fmt.Printf("  Avg: %.2f\n", r.AvgLatency)
	fmt.Printf("  P50: %.2f\n", r.P50Latency)
	fmt.Printf("  P90: %.2f\n", r.P90Latency)
	fmt.Printf("  P95: %.2f\n", r.P95Latency)
	fmt.Printf("  P99: %.2f\n", r.P99Latency)
	fmt.Printf("  Max: %.2f\n", r.MaxLatency)

	if len(r.OperationMetrics) > 0 {
		fmt.Println("\nOperation Breakdown:")
		for op, metrics := range r.OperationMetrics {
			fmt.Printf("  %s:\n", op)
			fmt.Printf("    Count: %d\n", metrics.Count)
			fmt.Printf("    Success Rate: %.1f%%\n",
				float64(metrics.Successful)/float64(metrics.Count)*100)
			fmt.Printf("    Avg Time: %.2fms\n", millis(metrics.TotalTime)/float64(metrics.Count))
		}
	}

	if len(r.ErrorCounts) > 0 {
		fmt.Println("\nError Summary:")
		for err, count := range r.ErrorCounts {
			fmt.Printf("  %s: %d\n", err, count)
		}
	}
}
