// Package sse implements a Server-Sent Events broker for document lifecycle
// updates. Every event belongs to one tenant and is only delivered to that
// tenant's subscribers.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Document event kinds.
const (
	KindCreated    = "created"
	KindClassified = "classified"
	KindVersioned  = "versioned"
	KindArchived   = "archived"
	KindRejected   = "rejected"
	KindDeleted    = "deleted"
	KindLinked     = "linked"
)

// ChangedEvent is the throttled invalidation event sent after document events.
const ChangedEvent = "documents.changed"

// TenantHeader carries the tenant of an SSE subscription. The query
// parameter "tenant" is accepted as well, since EventSource cannot set
// headers.
const TenantHeader = "X-Tenant-ID"

// Event represents an SSE event to broadcast.
type Event struct {
	Type     string `json:"type"`
	TenantID string `json:"-"`
	Data     any    `json:"data"`
}

type documentEventReq struct {
	kind       string
	tenantID   string
	documentID string
}

type subscription struct {
	ch       chan []byte
	tenantID string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-tenant throttle timestamps). Public methods communicate with
// this loop through channels, so no mutexes are required.
type Broker struct {
	changedMin time.Duration

	subscribeCh     chan subscription
	unsubscribeCh   chan chan []byte
	publishCh       chan Event
	documentEventCh chan documentEventReq
	countReqCh      chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given documents.changed
// throttle interval.
func NewBroker(changedThrottle time.Duration) *Broker {
	if changedThrottle <= 0 {
		changedThrottle = 2 * time.Second
	}

	b := &Broker{
		changedMin:      changedThrottle,
		subscribeCh:     make(chan subscription),
		unsubscribeCh:   make(chan chan []byte),
		publishCh:       make(chan Event, 256),
		documentEventCh: make(chan documentEventReq, 256),
		countReqCh:      make(chan chan int),
		stopCh:          make(chan struct{}),
		stopped:         make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastChanged := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, tenantID := range clients {
			if tenantID != event.TenantID {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.tenantID

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.documentEventCh:
			broadcast(Event{
				Type:     "document." + req.kind,
				TenantID: req.tenantID,
				Data:     map[string]string{"id": req.documentID},
			})

			now := time.Now()
			if now.Sub(lastChanged[req.tenantID]) >= b.changedMin {
				lastChanged[req.tenantID] = now
				broadcast(Event{Type: ChangedEvent, TenantID: req.tenantID, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client of tenantID and returns its channel.
func (b *Broker) Subscribe(tenantID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, tenantID: tenantID}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the connected clients of event.TenantID.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishDocumentEvent publishes a document.<kind> event and a throttled
// documents.changed event for the tenant.
func (b *Broker) PublishDocumentEvent(kind, tenantID, documentID string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.documentEventCh <- documentEventReq{kind: kind, tenantID: tenantID, documentID: documentID}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get(TenantHeader)
	if tenantID == "" {
		tenantID = r.URL.Query().Get("tenant")
	}
	if tenantID == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(tenantID)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
