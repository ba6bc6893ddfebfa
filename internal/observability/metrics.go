package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters over the command and HTTP
// surfaces.
type Metrics struct {
	mu             sync.Mutex
	commandCount   map[string]int64
	rejectionCount map[string]int64
	adapterErrors  map[string]int64
	requestCount   map[string]int64
}

// Snapshot is a copy of all counters for the ops API.
type Snapshot struct {
	Commands      map[string]int64 `json:"commands"`
	Rejections    map[string]int64 `json:"rejections"`
	AdapterErrors map[string]int64 `json:"adapter_errors"`
	Requests      map[string]int64 `json:"requests"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		commandCount:   make(map[string]int64),
		rejectionCount: make(map[string]int64),
		adapterErrors:  make(map[string]int64),
		requestCount:   make(map[string]int64),
	}
}

// RecordCommand increments the counter for a handled command.
func (m *Metrics) RecordCommand(command string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandCount[command]++
}

// RecordRejection increments the counter for a surfaced rejection code.
func (m *Metrics) RecordRejection(command, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectionCount[command+"|"+code]++
}

// RecordAdapterError counts a failed platform operation.
func (m *Metrics) RecordAdapterError(operation string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapterErrors[operation]++
}

// RecordRequest increments counters for HTTP requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// Collect copies the counters for the ops API.
func (m *Metrics) Collect() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Commands:      copyCounts(m.commandCount),
		Rejections:    copyCounts(m.rejectionCount),
		AdapterErrors: copyCounts(m.adapterErrors),
		Requests:      copyCounts(m.requestCount),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
