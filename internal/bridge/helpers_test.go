package bridge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/hideout/internal/generate"
	"github.com/zulandar/hideout/internal/models"
	"github.com/zulandar/hideout/internal/store"
)

// fakeStore is an in-memory ProjectStore that counts CreateCommand calls.
type fakeStore struct {
	mu        sync.Mutex
	projects  map[string]*models.Project
	created   []store.NewCommand
	gets      int
	createErr error
	getErr    error
	seq       int
}

func newFakeStore(projects ...models.Project) *fakeStore {
	fs := &fakeStore{projects: make(map[string]*models.Project)}
	for i := range projects {
		p := projects[i]
		fs.projects[p.ID] = &p
	}
	return fs
}

func (f *fakeStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreateCommand(ctx context.Context, in store.NewCommand) (*models.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	if p, ok := f.projects[in.ProjectID]; ok {
		p.CommandCount++
	}
	return &models.Command{
		ID:            fmt.Sprintf("cmd-%d", f.seq),
		ProjectID:     in.ProjectID,
		UserID:        in.UserID,
		Prompt:        in.Prompt,
		GeneratedCode: in.GeneratedCode,
		CommandType:   in.CommandType,
		Status:        in.Status,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeStore) Created() []store.NewCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.NewCommand(nil), f.created...)
}

// stubGenerator returns a fixed result and counts calls.
type stubGenerator struct {
	mu     sync.Mutex
	calls  []generate.Request
	result *generate.Result
	err    error
	block  chan struct{} // when set, Generate waits for it or ctx
}

func (g *stubGenerator) Generate(ctx context.Context, req generate.Request) (*generate.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func (g *stubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// eventRecorder is a Notifier that records events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Notify(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

var testProject = models.Project{ID: "proj1", UserID: "u1", Name: "Checkpoint Obby", ProjectType: models.ProjectTypeObby, CommandCount: 2}

type fixture struct {
	store    *fakeStore
	gen      *stubGenerator
	registry *Registry
	notifier *eventRecorder
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newFakeStore(testProject),
		gen:      &stubGenerator{result: &generate.Result{Code: "X", CommandType: "script"}},
		registry: NewRegistry(RegistryOpts{CloseSuperseded: true}),
		notifier: &eventRecorder{},
	}
	svc, err := NewService(ServiceOpts{
		Store:     f.store,
		Generator: f.gen,
		Registry:  f.registry,
		Notifier:  f.notifier,
		Timeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.service = svc
	return f
}

// session registers a MockPeer for (u1, proj1) and returns an OPEN session.
func (f *fixture) session(t *testing.T, rejectEmpty bool) (*Session, *MockPeer) {
	t.Helper()
	peer := NewMockPeer()
	client, err := f.registry.Register("u1", "proj1", peer)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return NewSession(client, f.service, rejectEmpty), peer
}

func messages(t *testing.T, p *MockPeer) []map[string]any {
	t.Helper()
	msgs, err := p.Messages()
	if err != nil {
		t.Fatal(err)
	}
	return msgs
}
