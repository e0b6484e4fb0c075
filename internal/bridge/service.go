package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/hideout/internal/generate"
	"github.com/zulandar/hideout/internal/models"
	"github.com/zulandar/hideout/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/zulandar/hideout/internal/bridge"

// ProjectStore is the persistence the bridge needs. *store.Store satisfies it.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	CreateCommand(ctx context.Context, in store.NewCommand) (*models.Command, error)
}

// Request is one generate call from either channel. For OriginPluginHTTP
// the UserID may be empty; the project owner is used.
type Request struct {
	UserID    string
	ProjectID string
	Prompt    string
	Origin    Origin
}

// ServiceOpts holds parameters for creating a Service.
type ServiceOpts struct {
	Store     ProjectStore
	Generator generate.Generator
	Registry  *Registry
	Notifier  Notifier      // optional
	Timeout   time.Duration // defaults to 60s
	// NotifyTimeout bounds a single dashboard notification. Defaults to 10s.
	NotifyTimeout time.Duration
	Tracer        trace.Tracer // defaults to the global provider
}

// Service runs the generate flow shared by the WebSocket handler and the
// HTTP endpoints: resolve project, generate, persist, then push to the
// plugin or notify the dashboard.
type Service struct {
	store         ProjectStore
	gen           generate.Generator
	registry      *Registry
	notifier      Notifier
	timeout       time.Duration
	notifyTimeout time.Duration
	tracer        trace.Tracer
	wg            sync.WaitGroup
}

// NewService creates a Service with the given options.
func NewService(opts ServiceOpts) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("bridge: store is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("bridge: generator is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("bridge: registry is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	return &Service{
		store:         opts.Store,
		gen:           opts.Generator,
		registry:      opts.Registry,
		notifier:      opts.Notifier,
		timeout:       opts.Timeout,
		notifyTimeout: opts.NotifyTimeout,
		tracer:        opts.Tracer,
	}, nil
}

// Registry returns the connection registry the service pushes through.
func (s *Service) Registry() *Registry { return s.registry }

// Wait blocks until in-flight dashboard notifications finish.
func (s *Service) Wait() { s.wg.Wait() }

// Project resolves a project, translating a store miss to ErrProjectNotFound.
func (s *Service) Project(ctx context.Context, id string) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	return p, nil
}

// Generate runs one generation and returns the persisted command.
func (s *Service) Generate(ctx context.Context, req Request) (cmd *models.Command, err error) {
	ctx, span := s.tracer.Start(ctx, "bridge.Generate", trace.WithAttributes(
		attribute.String("hideout.origin", string(req.Origin)),
		attribute.String("hideout.project_id", req.ProjectID),
	))
	defer func() {
		result := "ok"
		if err != nil {
			result = resultLabel(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		generationsTotal.WithLabelValues(string(req.Origin), result).Inc()
		span.End()
	}()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	project, err := s.Project(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	userID := req.UserID
	switch {
	case userID == "" && req.Origin == OriginPluginHTTP:
		userID = project.UserID
	case req.Origin == OriginDashboard && project.UserID != userID:
		return nil, ErrForbidden
	}

	res, err := s.callGenerator(ctx, req.Origin, prompt, project.ProjectType)
	if err != nil {
		return nil, err
	}

	cmd, err = s.store.CreateCommand(ctx, store.NewCommand{
		ProjectID:     project.ID,
		UserID:        userID,
		Prompt:        prompt,
		GeneratedCode: res.Code,
		CommandType:   res.CommandType,
		Status:        models.CommandStatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	span.SetAttributes(attribute.String("hideout.command_id", cmd.ID))

	switch req.Origin {
	case OriginDashboard:
		s.push(userID, project.ID, cmd)
	case OriginPlugin, OriginPluginHTTP:
		s.dispatch(Event{
			Origin:      req.Origin,
			UserID:      userID,
			ProjectID:   project.ID,
			Code:        cmd.GeneratedCode,
			CommandType: cmd.CommandType,
			CommandID:   cmd.ID,
			Prompt:      cmd.Prompt,
			CreatedAt:   cmd.CreatedAt,
		})
	}
	return cmd, nil
}

func (s *Service) callGenerator(ctx context.Context, origin Origin, prompt, projectType string) (*generate.Result, error) {
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.gen.Generate(gctx, generate.Request{Prompt: prompt, ProjectType: projectType})
	generationSeconds.WithLabelValues(string(origin)).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(gctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrGenerationTimeout, s.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if res == nil || strings.TrimSpace(res.Code) == "" || !models.IsCommandType(res.CommandType) {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, generate.ErrMalformedOutput)
	}
	return res, nil
}

// push delivers a dashboard-originated result to the plugin registered for
// the project, if any. Failures are logged and dropped.
func (s *Service) push(userID, projectID string, cmd *models.Command) {
	c, ok := s.registry.Lookup(userID, projectID)
	if !ok {
		pushesTotal.WithLabelValues("absent").Inc()
		return
	}
	if err := c.Send(NewGenerated(cmd.GeneratedCode, cmd.CommandType, cmd.ID)); err != nil {
		pushesTotal.WithLabelValues("failed").Inc()
		log.Printf("bridge: push %s command %s: %v", c.Key(), cmd.ID, err)
		return
	}
	pushesTotal.WithLabelValues("delivered").Inc()
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrEmptyPrompt):
		return "empty_prompt"
	case errors.Is(err, ErrProjectNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, ErrGeneration):
		return "upstream_error"
	case errors.Is(err, ErrPersist):
		return "persist_error"
	default:
		return "error"
	}
}
