// Package live fans widget changes out to open dashboard streams.
package live

import (
	"context"
	"sync"

	"github.com/beexponential/insights/internal/notify/widgets"
)

type key struct{ tenant, dashboard string }

// Hub delivers widget events to the subscribers of one tenant's dashboard.
// Slow subscribers miss events rather than block the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[key]map[chan widgets.Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[key]map[chan widgets.Event]struct{})}
}

// Subscribe registers a listener for one dashboard. The returned func
// unsubscribes and closes the channel.
func (h *Hub) Subscribe(tenant, dashboardID string) (<-chan widgets.Event, func()) {
	k := key{tenant, dashboardID}
	ch := make(chan widgets.Event, 16)
	h.mu.Lock()
	if h.subs[k] == nil {
		h.subs[k] = make(map[chan widgets.Event]struct{})
	}
	h.subs[k][ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[k], ch)
			if len(h.subs[k]) == 0 {
				delete(h.subs, k)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Notify implements widgets.Notifier for in-process delivery.
func (h *Hub) Notify(_ context.Context, ev widgets.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[key{ev.Tenant, ev.DashboardID}] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribers counts the listeners of a dashboard.
func (h *Hub) Subscribers(tenant, dashboardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key{tenant, dashboardID}])
}
