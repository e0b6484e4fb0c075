package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zulandar/hideout/internal/bridge"
)

const (
	subscriberBuffer  = 16
	heartbeatInterval = 15 * time.Second
)

type subscriber struct {
	userID string
	ch     chan bridge.Event
}

// Broadcaster fans dashboard events out to open SSE streams. Each stream
// only sees events for its own user. It implements bridge.Notifier.
type Broadcaster struct {
	mu        sync.RWMutex
	subs      map[string]*subscriber
	done      chan struct{}
	closeOnce sync.Once
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]*subscriber), done: make(chan struct{})}
}

// Close ends every open stream. Streams opened afterwards end immediately.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Notify implements bridge.Notifier. A subscriber whose buffer is full
// misses the event rather than blocking the others.
func (b *Broadcaster) Notify(ctx context.Context, ev bridge.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.userID != ev.UserID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			eventsDropped.Inc()
		}
	}
	return nil
}

// Len returns the number of open streams.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) subscribe(userID string) (string, <-chan bridge.Event, func()) {
	id := uuid.NewString()
	s := &subscriber{userID: userID, ch: make(chan bridge.Event, subscriberBuffer)}
	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()
	return id, s.ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// handleEvents streams the caller's dashboard events until the client
// disconnects or the broadcaster is closed.
func handleEvents(b *Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, events, cancel := b.subscribe(currentUser(c))
		defer cancel()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected", "subscriberId": id})
		c.Writer.Flush()

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case ev := <-events:
				writeSSE(c.Writer, "command", ev)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
