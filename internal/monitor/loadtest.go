package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrInvalidLoadTest is returned for a config the runner cannot execute.
var ErrInvalidLoadTest = errors.New("monitor: invalid load test config")

const (
	maxLoadTestRequests    = 10000
	maxLoadTestConcurrency = 256
)

// LoadTestConfig describes one load test run. Field names are part of the
// wire contract.
type LoadTestConfig struct {
	TestName    string `json:"testName"`
	Requests    int    `json:"requests"`
	Concurrency int    `json:"concurrency"`
}

// LoadTestResult summarizes a finished run.
type LoadTestResult struct {
	TestName           string  `json:"testName"`
	TotalRequests      int     `json:"totalRequests"`
	SuccessfulRequests int     `json:"successfulRequests"`
	FailedRequests     int     `json:"failedRequests"`
	DurationMs         int64   `json:"durationMs"`
	Throughput         float64 `json:"throughput"` // requests per second
	AvgMs              float64 `json:"avgMs"`
	P50Ms              float64 `json:"p50Ms"`
	P95Ms              float64 `json:"p95Ms"`
	P99Ms              float64 `json:"p99Ms"`
}

// Target executes one synthetic request.
type Target func(ctx context.Context) error

// RunLoadTest fires cfg.Requests calls at target with cfg.Concurrency workers
// and reports latency and throughput. Cancelling ctx stops issuing new
// requests; in-flight ones finish and are counted.
func RunLoadTest(ctx context.Context, cfg LoadTestConfig, target Target) (*LoadTestResult, error) {
	if cfg.Requests <= 0 || cfg.Requests > maxLoadTestRequests {
		return nil, ErrInvalidLoadTest
	}
	if cfg.Concurrency <= 0 || cfg.Concurrency > maxLoadTestConcurrency {
		return nil, ErrInvalidLoadTest
	}
	if cfg.Concurrency > cfg.Requests {
		cfg.Concurrency = cfg.Requests
	}

	jobs := make(chan struct{})
	results := make(chan loadSample, cfg.Requests)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				start := time.Now()
				err := target(ctx)
				results <- loadSample{duration: time.Since(start), failed: err != nil}
			}
		}()
	}

	started := time.Now()
	issued := 0
feed:
	for i := 0; i < cfg.Requests; i++ {
		select {
		case jobs <- struct{}{}:
			issued++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	elapsed := time.Since(started)

	durations := make([]time.Duration, 0, issued)
	var failed int
	var totalMs float64
	for s := range results {
		durations = append(durations, s.duration)
		totalMs += float64(s.duration.Microseconds()) / 1000.0
		if s.failed {
			failed++
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	result := &LoadTestResult{
		TestName:           cfg.TestName,
		TotalRequests:      len(durations),
		SuccessfulRequests: len(durations) - failed,
		FailedRequests:     failed,
		DurationMs:         elapsed.Milliseconds(),
		P50Ms:              percentileMs(durations, 0.50),
		P95Ms:              percentileMs(durations, 0.95),
		P99Ms:              percentileMs(durations, 0.99),
	}
	if len(durations) > 0 {
		result.AvgMs = totalMs / float64(len(durations))
	}
	if elapsed > 0 {
		result.Throughput = float64(len(durations)) / elapsed.Seconds()
	}
	return result, nil
}

type loadSample struct {
	duration time.Duration
	failed   bool
}
