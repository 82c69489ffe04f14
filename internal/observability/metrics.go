package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	requestTime  map[string]time.Duration
	errorCount   map[string]int64
	jobRuns      map[string]int64
	jobFailures  map[string]int64
	jobItems     map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		requestTime:  make(map[string]time.Duration),
		errorCount:   make(map[string]int64),
		jobRuns:      make(map[string]int64),
		jobFailures:  make(map[string]int64),
		jobItems:     make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestTime[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordJobRun counts one scheduler tick of job.
func (m *Metrics) RecordJobRun(job string, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobRuns[job]++
	if err != nil {
		m.jobFailures[job]++
	}
}

// RecordJobItems counts per-item outcomes of a pass, e.g. "sla_monitor|failed".
func (m *Metrics) RecordJobItems(job, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobItems[job+"|"+outcome] += int64(n)
}

// RequestStat is one request counter row.
type RequestStat struct {
	Key             string  `json:"key"`
	Count           int64   `json:"count"`
	AvgDurationMsec float64 `json:"avg_duration_ms"`
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests    []RequestStat    `json:"requests"`
	Errors      map[string]int64 `json:"errors"`
	JobRuns     map[string]int64 `json:"job_runs"`
	JobFailures map[string]int64 `json:"job_failures"`
	JobItems    map[string]int64 `json:"job_items"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Requests:    make([]RequestStat, 0, len(m.requestCount)),
		Errors:      copyCounts(m.errorCount),
		JobRuns:     copyCounts(m.jobRuns),
		JobFailures: copyCounts(m.jobFailures),
		JobItems:    copyCounts(m.jobItems),
	}
	for key, count := range m.requestCount {
		stat := RequestStat{Key: key, Count: count}
		if count > 0 {
			stat.AvgDurationMsec = float64(m.requestTime[key].Microseconds()) / 1000 / float64(count)
		}
		snap.Requests = append(snap.Requests, stat)
	}
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].Key < snap.Requests[j].Key })
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
