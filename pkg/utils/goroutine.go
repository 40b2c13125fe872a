// Package utils holds test helpers shared across packages.
package utils

import (
	"runtime"
	"time"
)

// TB is the subset of testing.TB the leak detector needs.
type TB interface {
	Helper()
	Logf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// GoroutineLeakDetector compares the goroutine count at the end of a test
// with the count recorded by Start. Goroutines get a grace period to exit,
// since transports and reconnect loops wind down asynchronously.
type GoroutineLeakDetector struct {
	t             TB
	initialCount  int
	allowedGrowth int
	pollInterval  time.Duration
	timeout       time.Duration
}

// NewGoroutineLeakDetector creates a detector reporting to t
func NewGoroutineLeakDetector(t TB) *GoroutineLeakDetector {
	return &GoroutineLeakDetector{
		t:            t,
		pollInterval: 20 * time.Millisecond,
		timeout:      2 * time.Second,
	}
}

// Start records the baseline goroutine count
func (d *GoroutineLeakDetector) Start() *GoroutineLeakDetector {
	d.initialCount = runtime.NumGoroutine()
	return d
}

// Check waits until the goroutine count is back within the allowed growth,
// and reports a leak with all stacks when the timeout passes first.
func (d *GoroutineLeakDetector) Check() {
	d.t.Helper()

	deadline := time.Now().Add(d.timeout)
	count := runtime.NumGoroutine()
	for count-d.initialCount > d.allowedGrowth && time.Now().Before(deadline) {
		time.Sleep(d.pollInterval)
		count = runtime.NumGoroutine()
	}

	leaked := count - d.initialCount
	if leaked <= d.allowedGrowth {
		return
	}

	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	d.t.Errorf("goroutine leak: started with %d, ended with %d (leaked %d, allowed %d)\n%s",
		d.initialCount, count, leaked, d.allowedGrowth, buf[:n])
}

// SetAllowedGrowth sets how many extra goroutines are tolerated
func (d *GoroutineLeakDetector) SetAllowedGrowth(n int) *GoroutineLeakDetector {
	d.allowedGrowth = n
	return d
}

// SetTimeout sets how long Check waits for goroutines to exit
func (d *GoroutineLeakDetector) SetTimeout(timeout time.Duration) *GoroutineLeakDetector {
	d.timeout = timeout
	return d
}

// VerifyNone runs fn and checks that it leaves no goroutines behind.
func VerifyNone(t TB, fn func()) {
	t.Helper()
	d := NewGoroutineLeakDetector(t).Start()
	fn()
	d.Check()
}
