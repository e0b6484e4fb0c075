package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/hideout/internal/api"
	"github.com/zulandar/hideout/internal/bridge"
	"github.com/zulandar/hideout/internal/config"
	"github.com/zulandar/hideout/internal/db"
	"github.com/zulandar/hideout/internal/generate"
	"github.com/zulandar/hideout/internal/notify"
	"github.com/zulandar/hideout/internal/store"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and plugin bridge",
		Long: `Starts the HTTP API, the plugin WebSocket endpoint and the liveness
supervisor. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hideout config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	if cfg.Tracing.Enabled {
		shutdown, err := setupTracing(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	gormDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Using %s\n", db.Describe(cfg.Database))

	a, err := buildApp(cfg, gormDB)
	if err != nil {
		return err
	}
	defer a.close()
	fmt.Fprintf(out, "Generation provider: %s\n", cfg.Generation.Provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return a.run(ctx, out)
}

// openDatabase makes sure the configured database exists, connects and
// migrates it.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if err := db.Prepare(cfg.Database); err != nil {
		return nil, err
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// app is the wired server: one registry shared by the bridge service, the
// WebSocket handler, the supervisor and the HTTP routes.
type app struct {
	cfg        *config.Config
	registry   *bridge.Registry
	service    *bridge.Service
	supervisor *bridge.Supervisor
	events     *api.Broadcaster
	router     http.Handler
	closers    []io.Closer
}

func buildApp(cfg *config.Config, gormDB *gorm.DB) (*app, error) {
	st, err := store.New(gormDB)
	if err != nil {
		return nil, err
	}
	gen, err := generate.New(cfg.Generation, config.Secret(cfg.Generation.APIKeyEnv))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		registry: bridge.NewRegistry(bridge.RegistryOpts{CloseSuperseded: *cfg.Bridge.CloseSuperseded}),
	}
	if *cfg.Notify.DashboardEvents {
		a.events = api.NewBroadcaster()
	}
	notifier, err := a.buildNotifier()
	if err != nil {
		a.close()
		return nil, err
	}

	a.service, err = bridge.NewService(bridge.ServiceOpts{
		Store:         st,
		Generator:     gen,
		Registry:      a.registry,
		Notifier:      notifier,
		Timeout:       cfg.GenerationTimeout(),
		NotifyTimeout: cfg.NotifyTimeout(),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	ws, err := bridge.NewHandler(bridge.HandlerOpts{
		Service:           a.service,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		SendBuffer:        cfg.Bridge.SendBuffer,
		RejectEmptyPrompt: cfg.Bridge.RejectEmptyPrompt,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.supervisor, err = bridge.NewSupervisor(bridge.SupervisorOpts{
		Registry: a.registry,
		Interval: cfg.HeartbeatInterval(),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	auth := api.AuthOpts{UserHeader: cfg.Auth.UserHeader}
	if secret := config.Secret(cfg.Auth.JWTSecretEnv); secret != "" {
		auth.JWTSecret = []byte(secret)
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	a.router, err = api.NewRouter(api.RouterOpts{
		Service:     a.service,
		Catalog:     st,
		WS:          ws,
		WSPath:      cfg.Server.WSPath,
		Events:      a.events,
		Auth:        auth,
		MetricsPath: metricsPath,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// buildNotifier fans dashboard events out to the SSE broadcaster and every
// configured chat or NATS sink. With none of them it returns notify.Nop.
func (a *app) buildNotifier() (bridge.Notifier, error) {
	var sinks notify.Multi
	if a.events != nil {
		sinks = append(sinks, a.events)
	}
	n := a.cfg.Notify

	if url := config.Secret(n.SlackWebhookEnv); url != "" {
		s, err := notify.NewSlack(url)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
		log.Printf("serve: slack notifications enabled")
	}
	if url := config.Secret(n.DiscordWebhookEnv); url != "" {
		d, err := notify.NewDiscord(url)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, d)
		log.Printf("serve: discord notifications enabled")
	}
	if n.NATSURL != "" {
		nc, err := notify.NewNATS(notify.NATSConfig{URL: n.NATSURL, Subject: n.NATSSubject})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, nc)
		a.closers = append(a.closers, nc)
		log.Printf("serve: publishing events to nats %s on %s.>", n.NATSURL, n.NATSSubject)
	}
	if len(sinks) == 0 {
		return notify.Nop{}, nil
	}
	return sinks, nil
}

// run serves HTTP and runs the supervisor until ctx is cancelled or either
// fails, then closes every plugin connection and drains notifications.
func (a *app) run(ctx context.Context, out io.Writer) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.supervisor.Run(gctx)
	})
	opts := api.StartOpts{
		Handler: a.router,
		Port:    a.cfg.Server.Port,
		Out:     out,
	}
	if a.events != nil {
		opts.OnShutdown = a.events.Close
	}
	g.Go(func() error {
		return api.Start(gctx, opts)
	})
	fmt.Fprintf(out, "Plugin WebSocket at ws://localhost:%d%s\n", a.cfg.Server.Port, a.cfg.Server.WSPath)

	err := g.Wait()
	a.registry.CloseAll("server shutting down")
	a.service.Wait()
	return err
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Printf("serve: close: %v", err)
		}
	}
	a.closers = nil
}
