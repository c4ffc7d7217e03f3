// Package monitor keeps a rolling in-memory window of request samples and
// summarizes it on demand. It also hosts the built-in load tester.
package monitor

import (
	"runtime"
	"sort"
	"sync"
	"time"
)

// Sample is one finished request observation.
type Sample struct {
	At       time.Time
	Duration time.Duration
	Failed   bool
	CacheHit bool
	Name     string
}

// Monitor records samples into a bounded rolling window. Old samples fall out
// by age and by count, whichever bound is hit first.
type Monitor struct {
	mu         sync.Mutex
	samples    []Sample
	window     time.Duration
	maxSamples int
}

// New creates a Monitor holding at most maxSamples observations no older
// than window.
func New(window time.Duration, maxSamples int) *Monitor {
	if window <= 0 {
		window = 15 * time.Minute
	}
	if maxSamples <= 0 {
		maxSamples = 10000
	}
	return &Monitor{
		window:     window,
		maxSamples: maxSamples,
	}
}

// Record adds one observation for the named operation.
func (m *Monitor) Record(name string, duration time.Duration, failed, cacheHit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = append(m.samples, Sample{
		At:       time.Now(),
		Duration: duration,
		Failed:   failed,
		CacheHit: cacheHit,
		Name:     name,
	})
	m.prune(time.Now())
}

// prune drops samples outside the window or over the count bound.
// Caller holds the lock.
func (m *Monitor) prune(now time.Time) {
	cutoff := now.Add(-m.window)
	first := 0
	for first < len(m.samples) && m.samples[first].At.Before(cutoff) {
		first++
	}
	if over := len(m.samples) - first - m.maxSamples; over > 0 {
		first += over
	}
	if first > 0 {
		m.samples = append(m.samples[:0], m.samples[first:]...)
	}
}

// RealTime summarizes the live window.
type RealTime struct {
	Requests     int     `json:"requests"`
	RequestRate  float64 `json:"requestRate"` // per second
	ErrorRate    float64 `json:"errorRate"`
	CacheHitRate float64 `json:"cacheHitRate"`
	P50Ms        float64 `json:"p50Ms"`
	P95Ms        float64 `json:"p95Ms"`
	P99Ms        float64 `json:"p99Ms"`
}

// TrendBucket aggregates one minute of samples.
type TrendBucket struct {
	Minute   string  `json:"minute"` // e.g. "2026-08-29T14:03"
	Requests int     `json:"requests"`
	Errors   int     `json:"errors"`
	AvgMs    float64 `json:"avgMs"`
}

// Alert flags a metric that crossed a threshold.
type Alert struct {
	Severity string `json:"severity"` // "warning" or "critical"
	Message  string `json:"message"`
}

// SlowOperation aggregates latency per operation name.
type SlowOperation struct {
	Operation string  `json:"operation"`
	Count     int     `json:"count"`
	AvgMs     float64 `json:"avgMs"`
	MaxMs     float64 `json:"maxMs"`
}

// Resources reports process-level gauges at snapshot time.
type Resources struct {
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heapAllocBytes"`
	HeapSysBytes   uint64 `json:"heapSysBytes"`
	NumGC          uint32 `json:"numGc"`
}

// Report is the monitor snapshot returned to callers.
type Report struct {
	RealTime          RealTime        `json:"realTime"`
	Trends            []TrendBucket   `json:"trends"`
	Alerts            []Alert         `json:"alerts"`
	TopSlowOperations []SlowOperation `json:"topSlowOperations"`
	Resources         Resources       `json:"resources"`
}

const (
	errorRateWarn     = 0.05
	errorRateCritical = 0.20
	p95WarnMs         = 2000.0
	topSlowLimit      = 5
)

// Snapshot summarizes samples no older than within. A non-positive within
// uses the monitor's full window.
func (m *Monitor) Snapshot(within time.Duration) Report {
	now := time.Now()
	if within <= 0 || within > m.window {
		within = m.window
	}
	cutoff := now.Add(-within)

	m.mu.Lock()
	m.prune(now)
	samples := make([]Sample, 0, len(m.samples))
	for _, s := range m.samples {
		if !s.At.Before(cutoff) {
			samples = append(samples, s)
		}
	}
	m.mu.Unlock()

	report := Report{
		Trends:            []TrendBucket{},
		Alerts:            []Alert{},
		TopSlowOperations: []SlowOperation{},
		Resources:         readResources(),
	}

	if len(samples) == 0 {
		return report
	}

	var errors, cacheHits int
	durations := make([]time.Duration, 0, len(samples))
	for _, s := range samples {
		if s.Failed {
			errors++
		}
		if s.CacheHit {
			cacheHits++
		}
		durations = append(durations, s.Duration)
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	total := len(samples)
	report.RealTime = RealTime{
		Requests:     total,
		RequestRate:  float64(total) / within.Seconds(),
		ErrorRate:    float64(errors) / float64(total),
		CacheHitRate: float64(cacheHits) / float64(total),
		P50Ms:        percentileMs(durations, 0.50),
		P95Ms:        percentileMs(durations, 0.95),
		P99Ms:        percentileMs(durations, 0.99),
	}
	report.Trends = buildTrends(samples)
	report.TopSlowOperations = buildTopSlow(samples)
	report.Alerts = buildAlerts(report.RealTime)
	return report
}

func buildTrends(samples []Sample) []TrendBucket {
	type acc struct {
		requests int
		errors   int
		totalMs  float64
	}
	byMinute := map[string]*acc{}
	for _, s := range samples {
		key := s.At.UTC().Format("2006-01-02T15:04")
		a, exists := byMinute[key]
		if !exists {
			a = &acc{}
			byMinute[key] = a
		}
		a.requests++
		if s.Failed {
			a.errors++
		}
		a.totalMs += float64(s.Duration.Microseconds()) / 1000.0
	}

	minutes := make([]string, 0, len(byMinute))
	for key := range byMinute {
		minutes = append(minutes, key)
	}
	sort.Strings(minutes)

	buckets := make([]TrendBucket, 0, len(minutes))
	for _, key := range minutes {
		a := byMinute[key]
		buckets = append(buckets, TrendBucket{
			Minute:   key,
			Requests: a.requests,
			Errors:   a.errors,
			AvgMs:    a.totalMs / float64(a.requests),
		})
	}
	return buckets
}

func buildTopSlow(samples []Sample) []SlowOperation {
	type acc struct {
		count   int
		totalMs float64
		maxMs   float64
	}
	byName := map[string]*acc{}
	for _, s := range samples {
		a, exists := byName[s.Name]
		if !exists {
			a = &acc{}
			byName[s.Name] = a
		}
		ms := float64(s.Duration.Microseconds()) / 1000.0
		a.count++
		a.totalMs += ms
		if ms > a.maxMs {
			a.maxMs = ms
		}
	}

	ops := make([]SlowOperation, 0, len(byName))
	for name, a := range byName {
		ops = append(ops, SlowOperation{
			Operation: name,
			Count:     a.count,
			AvgMs:     a.totalMs / float64(a.count),
			MaxMs:     a.maxMs,
		})
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].AvgMs != ops[j].AvgMs {
			return ops[i].AvgMs > ops[j].AvgMs
		}
		return ops[i].Operation < ops[j].Operation
	})
	if len(ops) > topSlowLimit {
		ops = ops[:topSlowLimit]
	}
	return ops
}

func buildAlerts(rt RealTime) []Alert {
	alerts := []Alert{}
	switch {
	case rt.ErrorRate >= errorRateCritical:
		alerts = append(alerts, Alert{Severity: "critical", Message: "error rate above 20%"})
	case rt.ErrorRate >= errorRateWarn:
		alerts = append(alerts, Alert{Severity: "warning", Message: "error rate above 5%"})
	}
	if rt.P95Ms >= p95WarnMs {
		alerts = append(alerts, Alert{Severity: "warning", Message: "p95 latency above 2s"})
	}
	return alerts
}

func readResources() Resources {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Resources{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
		HeapSysBytes:   ms.HeapSys,
		NumGC:          ms.NumGC,
	}
}

// percentileMs picks the nearest-rank percentile from sorted durations.
func percentileMs(sorted []time.Duration, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return float64(sorted[rank].Microseconds()) / 1000.0
}
