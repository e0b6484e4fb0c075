package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/hideout/internal/bridge"
	"github.com/zulandar/hideout/internal/generate"
	"github.com/zulandar/hideout/internal/models"
	"github.com/zulandar/hideout/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with the hideout tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Project{}, &models.Command{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// checkpointGenerator answers every prompt with a fixed checkpoint script.
var checkpointGenerator = generate.Func(func(ctx context.Context, req generate.Request) (*generate.Result, error) {
	return &generate.Result{Code: "-- checkpoint code", CommandType: "system"}, nil
})

type fixtureOpts struct {
	gen       generate.Generator
	timeout   time.Duration
	jwtSecret []byte
}

type fixture struct {
	db       *gorm.DB
	store    *store.Store
	registry *bridge.Registry
	service  *bridge.Service
	events   *Broadcaster
	router   *gin.Engine
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	if opts.gen == nil {
		opts.gen = checkpointGenerator
	}
	if opts.timeout == 0 {
		opts.timeout = time.Second
	}
	db := testDB(t)
	st, err := store.New(db)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	for _, p := range []models.Project{
		{ID: "proj1", UserID: "u1", Name: "Checkpoint Obby", ProjectType: models.ProjectTypeObby, Status: models.ProjectStatusActive},
		{ID: "proj2", UserID: "u2", Name: "Race Track", ProjectType: models.ProjectTypeRacing, Status: models.ProjectStatusActive},
	} {
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed project: %v", err)
		}
	}

	f := &fixture{
		db:       db,
		store:    st,
		registry: bridge.NewRegistry(bridge.RegistryOpts{CloseSuperseded: true}),
		events:   NewBroadcaster(),
	}
	f.service, err = bridge.NewService(bridge.ServiceOpts{
		Store:     st,
		Generator: opts.gen,
		Registry:  f.registry,
		Notifier:  f.events,
		Timeout:   opts.timeout,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(f.service.Wait)

	ws, err := bridge.NewHandler(bridge.HandlerOpts{Service: f.service})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	f.router, err = NewRouter(RouterOpts{
		Service:     f.service,
		Catalog:     st,
		WS:          ws,
		Events:      f.events,
		Auth:        AuthOpts{JWTSecret: opts.jwtSecret},
		MetricsPath: "/metrics",
		Now:         func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return f
}

// do sends a request through the router. A non-empty user sets X-User-ID.
func (f *fixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, w, &body)
	return body.Message
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}
