package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

// Collector holds client-side counters for one process
type Collector struct {
	requests  map[string]*atomic.Int64 // by endpoint path
	errors    map[string]*atomic.Int64 // by error kind
	messages  map[string]*atomic.Int64 // by role
	refreshes atomic.Int64
	logouts   atomic.Int64
	listings  atomic.Int64
	mu        sync.RWMutex
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		requests: make(map[string]*atomic.Int64),
		errors:   make(map[string]*atomic.Int64),
		messages: make(map[string]*atomic.Int64),
	}
}

func (c *Collector) counter(m map[string]*atomic.Int64, key string) *atomic.Int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	counter, ok := m[key]
	if !ok {
		counter = &atomic.Int64{}
		m[key] = counter
	}
	return counter
}

func (c *Collector) snapshot(m map[string]*atomic.Int64) map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]int64, len(m))
	for k, counter := range m {
		result[k] = counter.Load()
	}
	return result
}

// IncrementRequest counts one HTTP request to endpoint
func (c *Collector) IncrementRequest(endpoint string) {
	c.counter(c.requests, endpoint).Add(1)
}

// IncrementError counts one failed chat exchange of the given kind
func (c *Collector) IncrementError(kind string) {
	c.counter(c.errors, kind).Add(1)
}

// IncrementMessages counts one message appended to a chat log
func (c *Collector) IncrementMessages(role string) {
	c.counter(c.messages, role).Add(1)
}

// IncrementRefresh counts one successful access token refresh
func (c *Collector) IncrementRefresh() { c.refreshes.Add(1) }

// IncrementLogout counts one forced logout
func (c *Collector) IncrementLogout() { c.logouts.Add(1) }

// AddListings adds n received listings
func (c *Collector) AddListings(n int) { c.listings.Add(int64(n)) }

// GetRequests returns request counts by endpoint
func (c *Collector) GetRequests() map[string]int64 { return c.snapshot(c.requests) }

// GetErrors returns error counts by kind
func (c *Collector) GetErrors() map[string]int64 { return c.snapshot(c.errors) }

// GetMessages returns message counts by role
func (c *Collector) GetMessages() map[string]int64 { return c.snapshot(c.messages) }

// GetRefreshes returns the number of token refreshes
func (c *Collector) GetRefreshes() int64 { return c.refreshes.Load() }

// GetLogouts returns the number of forced logouts
func (c *Collector) GetLogouts() int64 { return c.logouts.Load() }

// GetListings returns the number of listings received
func (c *Collector) GetListings() int64 { return c.listings.Load() }

// WritePrometheus writes metrics in Prometheus text format
func (c *Collector) WritePrometheus(w io.Writer) {
	writeLabeled(w, "haven_requests_total", "Backend requests by endpoint", "endpoint", c.GetRequests())
	writeLabeled(w, "haven_chat_errors_total", "Failed chat exchanges by kind", "kind", c.GetErrors())
	writeLabeled(w, "haven_messages_total", "Messages appended to the chat log", "role", c.GetMessages())

	fmt.Fprintln(w, "# HELP haven_token_refreshes_total Access tokens refreshed")
	fmt.Fprintln(w, "# TYPE haven_token_refreshes_total counter")
	fmt.Fprintf(w, "haven_token_refreshes_total %d\n\n", c.GetRefreshes())

	fmt.Fprintln(w, "# HELP haven_logouts_total Sessions ended by an unrecoverable auth failure")
	fmt.Fprintln(w, "# TYPE haven_logouts_total counter")
	fmt.Fprintf(w, "haven_logouts_total %d\n\n", c.GetLogouts())

	fmt.Fprintln(w, "# HELP haven_listings_total Property listings received")
	fmt.Fprintln(w, "# TYPE haven_listings_total counter")
	fmt.Fprintf(w, "haven_listings_total %d\n", c.GetListings())
}

func writeLabeled(w io.Writer, name, help, label string, values map[string]int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	for _, k := range sortedKeys(values) {
		fmt.Fprintf(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
	fmt.Fprintln(w)
}

// sortedKeys returns sorted keys of a map
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Global collector instance
var defaultCollector = NewCollector()

// Default returns the default metrics collector
func Default() *Collector {
	return defaultCollector
}
