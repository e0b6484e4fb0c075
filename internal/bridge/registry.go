package bridge

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one registered plugin connection.
type Client struct {
	UserID      string
	ProjectID   string
	ConnectedAt time.Time

	peer  Peer
	alive atomic.Bool
}

// Key returns the registry key, userId:projectId.
func (c *Client) Key() string { return key(c.UserID, c.ProjectID) }

// Peer returns the connection transport.
func (c *Client) Peer() Peer { return c.peer }

// MarkAlive records that the plugin answered since the last sweep.
func (c *Client) MarkAlive() { c.alive.Store(true) }

// Send encodes msg as JSON and enqueues it on the connection.
func (c *Client) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: encode %T: %w", msg, err)
	}
	return c.peer.Send(data)
}

func key(userID, projectID string) string {
	return userID + ":" + projectID
}

// RegistryOpts configures a Registry.
type RegistryOpts struct {
	// CloseSuperseded closes the previous connection when a new one
	// registers under the same key.
	CloseSuperseded bool
	Now             func() time.Time
}

// Registry maps userId:projectId to the live plugin connection. It is safe
// for concurrent use by request handlers and the liveness supervisor.
type Registry struct {
	mu              sync.RWMutex
	clients         map[string]*Client
	closeSuperseded bool
	now             func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts RegistryOpts) *Registry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		clients:         make(map[string]*Client),
		closeSuperseded: opts.CloseSuperseded,
		now:             now,
	}
}

// Register installs peer under userId:projectId, replacing any previous
// entry for the key.
func (r *Registry) Register(userID, projectID string, peer Peer) (*Client, error) {
	if userID == "" || projectID == "" {
		return nil, ErrInvalidKey
	}
	c := &Client{UserID: userID, ProjectID: projectID, ConnectedAt: r.now(), peer: peer}
	c.alive.Store(true)

	k := c.Key()
	r.mu.Lock()
	prev := r.clients[k]
	r.clients[k] = c
	n := len(r.clients)
	r.mu.Unlock()
	connectionsGauge.Set(float64(n))

	if prev != nil && prev.peer != peer {
		if r.closeSuperseded {
			log.Printf("bridge: %s: superseded connection from %s closed", k, prev.peer.RemoteAddr())
			prev.peer.Close(CloseSuperseded, "superseded")
		} else {
			log.Printf("bridge: %s: superseded connection from %s left open", k, prev.peer.RemoteAddr())
		}
	}
	return c, nil
}

// Unregister removes the entry for userId:projectId. Removing an absent key
// is a no-op.
func (r *Registry) Unregister(userID, projectID string) {
	r.mu.Lock()
	delete(r.clients, key(userID, projectID))
	n := len(r.clients)
	r.mu.Unlock()
	connectionsGauge.Set(float64(n))
}

// release removes c only if it is still the registered client for its key,
// so a superseded connection closing late never drops its successor.
func (r *Registry) release(c *Client) bool {
	k := c.Key()
	r.mu.Lock()
	cur, ok := r.clients[k]
	removed := ok && cur == c
	if removed {
		delete(r.clients, k)
	}
	n := len(r.clients)
	r.mu.Unlock()
	connectionsGauge.Set(float64(n))
	return removed
}

// Lookup returns the registered client for userId:projectId. A miss means
// no plugin is attached and is not an error.
func (r *Registry) Lookup(userID, projectID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[key(userID, projectID)]
	return c, ok
}

// IsConnected reports whether a registered connection exists and has not
// closed. An entry may outlive its connection until it is pruned.
func (r *Registry) IsConnected(userID, projectID string) bool {
	c, ok := r.Lookup(userID, projectID)
	return ok && !c.peer.Closed()
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot returns the registered clients ordered by key.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// CloseAll closes every registered connection and empties the registry.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()
	connectionsGauge.Set(0)

	for _, c := range clients {
		c.peer.Close(websocket.CloseGoingAway, reason)
	}
}
