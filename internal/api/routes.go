package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/hideout/internal/bridge"
	"github.com/zulandar/hideout/internal/models"
)

// Catalog is the part of the project store used by the listing and project
// endpoints. *store.Store satisfies it.
type Catalog interface {
	CreateProject(ctx context.Context, p *models.Project) error
	ListProjects(ctx context.Context, userID string) ([]models.Project, error)
	ListCommands(ctx context.Context, projectID string, limit int) ([]models.Command, error)
}

// RouterOpts holds the collaborators wired into the router.
type RouterOpts struct {
	Service *bridge.Service
	Catalog Catalog
	// WS is the plugin WebSocket handler mounted at WSPath.
	WS     http.Handler
	WSPath string
	// Events receives dashboard notifications for GET /api/events. Optional.
	Events      *Broadcaster
	Auth        AuthOpts
	MetricsPath string // empty disables /metrics
	Now         func() time.Time
}

// NewRouter builds the gin engine with every Hideout route registered.
func NewRouter(opts RouterOpts) (*gin.Engine, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("api: service is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("api: catalog is required")
	}
	if opts.WS != nil && opts.WSPath == "" {
		opts.WSPath = "/api/plugin/ws"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), instrument())
	registerRoutes(router, opts)
	return router, nil
}

func registerRoutes(router *gin.Engine, opts RouterOpts) {
	h := &handlers{svc: opts.Service, catalog: opts.Catalog, now: opts.Now}

	router.GET("/api/health", h.health)
	if opts.MetricsPath != "" {
		router.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
	if opts.WS != nil {
		router.GET(opts.WSPath, gin.WrapH(opts.WS))
	}

	// Plugin HTTP endpoints. The plugin identifies itself by path or body.
	router.POST("/api/commands", h.createCommand)
	router.GET("/api/plugin/status", h.pluginStatus)
	router.GET("/api/plugin/user/:userId/projects", h.pluginProjects)
	router.GET("/api/plugin/project/:projectId/commands", h.pluginCommands)

	// Dashboard endpoints.
	user := router.Group("/api", authenticate(opts.Auth))
	user.POST("/projects", h.createProject)
	user.POST("/projects/:id/generate", h.generate)
	user.POST("/projects/:id/batch-generate", h.batchGenerate)
	user.GET("/projects/:id/commands", h.projectCommands)
	if opts.Events != nil {
		user.GET("/events", handleEvents(opts.Events))
	}
}
