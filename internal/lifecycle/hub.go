// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package lifecycle fans out access-request state changes to subscribers.
package lifecycle

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/svcportal/internal/model"
)

// EventTypePermissionUpdate is the type of every access-request transition event.
const EventTypePermissionUpdate = "permission_update"

// Event is an immutable record of one access-request transition.
type Event struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	RequestID  int64               `json:"request_id"`
	UserID     int64               `json:"user_id"`
	ServiceID  string              `json:"service_id"`
	Kind       model.RequestKind   `json:"kind"`
	Status     model.RequestStatus `json:"status"`
	Resolution model.Resolution    `json:"resolution,omitempty"`
	// Deleted is set when the request row was removed by a cancel or a revoke.
	Deleted    bool                `json:"deleted,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// NewEvent builds a permission_update event from the state of req after a transition.
func NewEvent(req model.AccessRequest) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventTypePermissionUpdate,
		RequestID:  req.ID,
		UserID:     req.UserID,
		ServiceID:  req.ServiceID,
		Kind:       req.Kind,
		Status:     req.Status,
		Resolution: req.Resolution,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher is implemented by anything that accepts lifecycle events.
type Publisher interface {
	Publish(Event)
}

// Hub delivers events to every subscriber without blocking the publisher.
// A subscriber whose buffer is full misses the event and the drop is counted.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	dropped atomic.Int64
	logger  *slog.Logger
}

// Subscription is a buffered stream of events from a Hub.
type Subscription struct {
	hub  *Hub
	ch   chan Event
	once sync.Once
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a subscriber with the given buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{hub: h, ch: make(chan Event, buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish sends ev to every current subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			h.dropped.Add(1)
			h.logger.Warn("lifecycle subscriber buffer full, event dropped",
				"event_id", ev.ID, "request_id", ev.RequestID, "category", model.EventCategoryAccess)
		}
	}
}

// Dropped returns the number of events not delivered to a full subscriber.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close closes every subscription. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		s.once.Do(func() { close(s.ch) })
		delete(h.subs, s)
	}
}

// C returns the event channel. It is closed by Unsubscribe or Hub.Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.hub.subs, s)
	s.once.Do(func() { close(s.ch) })
}

var _ Publisher = (*Hub)(nil)
