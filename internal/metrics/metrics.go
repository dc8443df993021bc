package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Counter names used across the service.
const (
	OrdersPlaced        = "orders_placed_total"
	OrderBuildFailures  = "order_build_failures_total"
	OrderBuildRetries   = "order_build_retries_total"
	OrderBuildMillis    = "order_build_duration_ms_total"
	StatusTransitions   = "order_status_transitions_total"
	StatusRejected      = "order_status_rejected_total"
	CartMerges          = "cart_merges_total"
	NotificationsSent   = "notifications_sent_total"
	NotificationsFailed = "notifications_failed_total"
	NotificationsQueued = "notifications_queued_total"
)

// Registry is a named set of counters. A nil *Registry discards everything.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
}

func NewRegistry() *Registry {
	return &Registry{counters: make(map[string]*Counter)}
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	if r == nil {
		return &Counter{}
	}

	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; !ok {
		c = &Counter{}
		r.counters[name] = c
	}
	return c
}

// ObserveSince adds the milliseconds elapsed on t to the named counter.
func (r *Registry) ObserveSince(name string, t *Timer) {
	r.Counter(name).Add(uint64(t.Duration().Milliseconds()))
}

type Sample struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

// Snapshot returns every counter sorted by name.
func (r *Registry) Snapshot() []Sample {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sample, 0, len(r.counters))
	for name, c := range r.counters {
		out = append(out, Sample{Name: name, Value: c.Load()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
