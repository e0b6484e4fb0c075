package bridge

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Origin identifies which channel a generate request came from.
type Origin string

const (
	OriginDashboard  Origin = "dashboard"
	OriginPlugin     Origin = "plugin"
	OriginPluginHTTP Origin = "plugin-http"
)

// Event is emitted after a plugin-originated generation is persisted so an
// open dashboard view can refresh.
type Event struct {
	Origin      Origin    `json:"origin"`
	UserID      string    `json:"userId"`
	ProjectID   string    `json:"projectId"`
	Code        string    `json:"code"`
	CommandType string    `json:"commandType"`
	CommandID   string    `json:"commandId"`
	Prompt      string    `json:"prompt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notifier consumes dashboard events. Having no consumer is valid.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// dispatch delivers ev on its own goroutine. Errors and panics are logged
// and never reach the generate caller.
func (s *Service) dispatch(ev Event) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := safeNotify(ctx, s.notifier, ev); err != nil {
			notifyFailuresTotal.Inc()
			log.Printf("bridge: notify %s:%s command %s: %v", ev.UserID, ev.ProjectID, ev.CommandID, err)
		}
	}()
}

func safeNotify(ctx context.Context, n Notifier, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return n.Notify(ctx, ev)
}
