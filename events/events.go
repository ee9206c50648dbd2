/*
Package events pushes change notifications to connected browsers.

PURPOSE:
  Every committed write (purchase, issue, correction, annotation, reset)
  is announced as a Message naming the table and action. Clients keep a
  Server-Sent Events stream open on /api/events and refetch what changed.

FAN-OUT:
  Single instance: Hub.Notify broadcasts directly to local clients.
  Several instances: Notify publishes to a Bus (Redis pub/sub); every
  instance forwards bus messages to its own clients, including the
  publisher, so each message is delivered once per client.

  Slow clients drop messages rather than block writers. Close ends every
  open stream; the server registers it to run on shutdown.

SEE ALSO:
  - redis.go: RedisBus
  - inventory/service.go: Notifier interface
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message announces a change to a table.
type Message struct {
	Table  string    `json:"table"`
	Action string    `json:"action"`
	IDs    []string  `json:"ids,omitempty"`
	At     time.Time `json:"at"`
}

// Bus carries messages between instances.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	StartForwarder(ctx context.Context, onMsg func(Message)) error
	Close() error
}

type client struct {
	id       string
	outbound chan Message
}

// Hub fans messages out to SSE clients.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]struct{}
	bus       Bus
	heartbeat time.Duration
	log       *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:   make(map[*client]struct{}),
		heartbeat: 25 * time.Second,
		log:       log.Named("events"),
		done:      make(chan struct{}),
	}
}

// Close ends every open stream and refuses new ones. It is safe to call
// more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.log.Debug("hub closed", zap.Int("clients", h.Clients()))
	})
}

// UseBus routes Notify through bus and forwards bus traffic to local
// clients until ctx ends.
func (h *Hub) UseBus(ctx context.Context, bus Bus) error {
	if err := bus.StartForwarder(ctx, h.Broadcast); err != nil {
		return err
	}
	h.mu.Lock()
	h.bus = bus
	h.mu.Unlock()
	return nil
}

// Notify implements inventory.Notifier.
func (h *Hub) Notify(ctx context.Context, table, action string, ids ...string) {
	msg := Message{Table: table, Action: action, IDs: ids, At: time.Now().UTC()}

	h.mu.RLock()
	bus := h.bus
	h.mu.RUnlock()
	if bus != nil {
		err := bus.Publish(ctx, msg)
		if err == nil {
			return
		}
		h.log.Warn("bus publish failed, delivering locally", zap.String("table", table), zap.Error(err))
	}
	h.Broadcast(msg)
}

// Broadcast delivers msg to every local client.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.outbound <- msg:
		default:
			h.log.Warn("dropping event, client buffer full", zap.String("client_id", c.id))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribe() *client {
	c := &client{id: uuid.NewString(), outbound: make(chan Message, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("client connected", zap.String("client_id", c.id))
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	h.log.Debug("client disconnected", zap.String("client_id", c.id))
}

// ServeHTTP streams messages until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	select {
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	c := h.subscribe()
	defer h.unsubscribe(c)

	fmt.Fprintf(w, ": connected %s\n\n", c.id)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-c.outbound:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("failed to encode event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
