package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/zulandar/hideout/internal/bridge"
)

// publisher is the part of *nats.Conn the sink uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSConfig configures the NATS sink.
type NATSConfig struct {
	URL            string
	Subject        string
	ConnectTimeout time.Duration
}

// NATS publishes each event as JSON on <subject>.<userId>.<projectId>, so
// another instance or the dashboard backend can subscribe per user.
type NATS struct {
	pub     publisher
	conn    *nats.Conn
	subject string
}

// NewNATS connects to the server and returns a publishing sink.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = "hideout.commands"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("hideout"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: nats: connect %s: %w", cfg.URL, err)
	}
	return &NATS{pub: conn, conn: conn, subject: cfg.Subject}, nil
}

// Subject returns the subject an event is published on.
func (n *NATS) Subject(ev bridge.Event) string {
	return n.subject + "." + subjectToken(ev.UserID) + "." + subjectToken(ev.ProjectID)
}

// Notify implements bridge.Notifier.
func (n *NATS) Notify(ctx context.Context, ev bridge.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify: nats: %w", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: nats: encode: %w", err)
	}
	if err := n.pub.Publish(n.Subject(ev), data); err != nil {
		return fmt.Errorf("notify: nats: publish: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

// subjectToken makes an identifier safe as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
