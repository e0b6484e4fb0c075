// Package notify holds the dashboard notification sinks: fan-out, Slack and
// Discord webhooks, and NATS.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/hideout/internal/bridge"
)

// Nop discards every event. It is the default when no sink is configured.
type Nop struct{}

// Notify implements bridge.Notifier.
func (Nop) Notify(ctx context.Context, ev bridge.Event) error { return nil }

// Multi delivers each event to every sink and joins their errors. One
// failing sink does not stop the others.
type Multi []bridge.Notifier

// Notify implements bridge.Notifier.
func (m Multi) Notify(ctx context.Context, ev bridge.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

const maxCodePreview = 900

// summary is the one-line description used by the chat sinks.
func summary(ev bridge.Event) string {
	return fmt.Sprintf("Plugin generated %s code for project %s (command %s)", ev.CommandType, ev.ProjectID, ev.CommandID)
}

// codePreview trims code to fit inside a chat message.
func codePreview(code string) string {
	code = strings.TrimSpace(code)
	if r := []rune(code); len(r) > maxCodePreview {
		code = string(r[:maxCodePreview]) + "\n-- ..."
	}
	return code
}
