package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackBus delivers published messages straight back to the forwarder.
type loopbackBus struct {
	mu        sync.Mutex
	onMsg     func(Message)
	published []Message
	err       error
}

func (b *loopbackBus) Publish(_ context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, msg)
	b.onMsg(msg)
	return nil
}

func (b *loopbackBus) StartForwarder(_ context.Context, onMsg func(Message)) error {
	b.onMsg = onMsg
	return nil
}

func (b *loopbackBus) Close() error { return nil }

func receive(t *testing.T, c *client) Message {
	t.Helper()
	select {
	case msg := <-c.outbound:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return Message{}
	}
}

func TestNotify_LocalBroadcast(t *testing.T) {
	hub := NewHub(nil)
	a, b := hub.subscribe(), hub.subscribe()
	require.Equal(t, 2, hub.Clients())

	hub.Notify(context.Background(), "purchases", "insert", "p-1")

	for _, c := range []*client{a, b} {
		msg := receive(t, c)
		assert.Equal(t, "purchases", msg.Table)
		assert.Equal(t, "insert", msg.Action)
		assert.Equal(t, []string{"p-1"}, msg.IDs)
	}

	hub.unsubscribe(a)
	assert.Equal(t, 1, hub.Clients())
}

func TestNotify_ThroughBus_DeliveredOnce(t *testing.T) {
	hub := NewHub(nil)
	bus := &loopbackBus{}
	require.NoError(t, hub.UseBus(context.Background(), bus))
	c := hub.subscribe()

	hub.Notify(context.Background(), "stock_issues", "insert")

	receive(t, c)
	assert.Len(t, bus.published, 1)
	select {
	case <-c.outbound:
		t.Fatal("message delivered twice")
	default:
	}
}

func TestNotify_BusFailure_FallsBackToLocal(t *testing.T) {
	hub := NewHub(nil)
	bus := &loopbackBus{err: errors.New("connection refused")}
	require.NoError(t, hub.UseBus(context.Background(), bus))
	c := hub.subscribe()

	hub.Notify(context.Background(), "items", "update", "item-1")

	msg := receive(t, c)
	assert.Equal(t, "items", msg.Table)
}

func TestBroadcast_SlowClientDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil)
	c := hub.subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(c.outbound)+10; i++ {
			hub.Broadcast(Message{Table: "items", Action: "update"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client")
	}
	assert.Len(t, c.outbound, cap(c.outbound))
}

func TestServeHTTP_StreamsChanges(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, ": connected "))

	hub.Notify(context.Background(), "transaction_metadata", "upsert", "issue:i-1:item-1")

	var data string
	for data == "" {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	assert.Equal(t, "transaction_metadata", msg.Table)
	assert.Equal(t, []string{"issue:i-1:item-1"}, msg.IDs)
}

func TestClose_EndsOpenStreams(t *testing.T) {
	// GIVEN: A connected client
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, ": connected "))

	// WHEN: The hub is closed, twice
	hub.Close()
	hub.Close()

	// THEN: The stream ends before the client's deadline
	_, err = io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, ctx.Err())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)

	// AND: New streams are refused
	resp2, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}
