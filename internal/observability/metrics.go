package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for ticket actions and bridge
// requests.
type Metrics struct {
	mu           sync.Mutex
	actionCount  map[string]int64
	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		actionCount:  make(map[string]int64),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordAction counts one lifecycle action attempt by outcome ("ok" or the
// rejection code).
func (m *Metrics) RecordAction(action, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionCount[action+"|"+outcome]++
}

// ActionCount returns the counter for an action/outcome pair.
func (m *Metrics) ActionCount(action, outcome string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actionCount[action+"|"+outcome]
}

// RecordRequest increments counters for bridge requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
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
