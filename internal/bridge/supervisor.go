package bridge

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SupervisorOpts holds parameters for creating a Supervisor.
type SupervisorOpts struct {
	Registry *Registry
	Interval time.Duration // defaults to 30s
}

// Supervisor evicts plugin connections that stop answering pings. A
// connection must miss a full interval to be evicted, so an entry is stale
// for at most two intervals.
type Supervisor struct {
	registry *Registry
	interval time.Duration
}

// NewSupervisor creates a Supervisor with the given options.
func NewSupervisor(opts SupervisorOpts) (*Supervisor, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("bridge: registry is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Supervisor{registry: opts.Registry, interval: opts.Interval}, nil
}

// Sweep checks every registered connection once and returns how many were
// evicted. A connection whose flag is still clear from the previous sweep
// is terminated and removed; the rest have the flag cleared and are pinged.
func (s *Supervisor) Sweep() int {
	evicted := 0
	for _, c := range s.registry.Snapshot() {
		if c.alive.Swap(false) {
			if err := c.peer.Ping(); err != nil {
				log.Printf("bridge: ping %s: %v", c.Key(), err)
			}
			continue
		}
		c.peer.Terminate()
		if s.registry.release(c) {
			evicted++
			evictionsTotal.Inc()
			log.Printf("bridge: evicted unresponsive plugin %s", c.Key())
		}
	}
	return evicted
}

// Run sweeps on every interval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	c := cron.New()
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.Sweep() }))
	c.Start()
	log.Printf("bridge: liveness supervisor running every %s", s.interval)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
