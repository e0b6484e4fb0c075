package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
server:
  port: 8081
  ws_path: /plugin/ws
  allowed_origins: ["https://hideout.example"]

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  user: hideout
  password_env: HIDEOUT_DB_PASSWORD
  name: hideout_prod

generation:
  provider: gemini
  model: gemini-2.5-flash
  timeout_sec: 45
  rate_per_sec: 2.5
  burst: 4

bridge:
  heartbeat_interval_sec: 15
  close_superseded: false
  reject_empty_prompt: true
  send_buffer: 32
  notify_timeout_sec: 3

auth:
  user_header: X-Forwarded-User
  jwt_secret_env: HIDEOUT_JWT_SECRET

notify:
  slack_webhook_env: HIDEOUT_SLACK_WEBHOOK
  discord_webhook_env: HIDEOUT_DISCORD_WEBHOOK
  nats_url: nats://127.0.0.1:4222
  nats_subject: hideout.events

metrics:
  enabled: true
  path: /internal/metrics

tracing:
  enabled: true

seed:
  projects:
    - id: proj1
      user_id: u1
      name: Checkpoint Obby
      project_type: obby
    - id: proj2
      user_id: u1
      name: Sandbox
`

const minimalYAML = `
generation:
  provider: demo
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Server.WSPath != "/plugin/ws" {
		t.Errorf("Server.WSPath = %q, want %q", cfg.Server.WSPath, "/plugin/ws")
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("len(AllowedOrigins) = %d, want 1", len(cfg.Server.AllowedOrigins))
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database host:port = %s:%d, want 10.0.0.5:3307", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "hideout_prod" {
		t.Errorf("Database.Name = %q, want hideout_prod", cfg.Database.Name)
	}
	if cfg.Generation.Provider != "gemini" {
		t.Errorf("Generation.Provider = %q, want gemini", cfg.Generation.Provider)
	}
	if cfg.Generation.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("Generation.APIKeyEnv = %q, want GEMINI_API_KEY", cfg.Generation.APIKeyEnv)
	}
	if cfg.Generation.RatePerSec != 2.5 {
		t.Errorf("Generation.RatePerSec = %v, want 2.5", cfg.Generation.RatePerSec)
	}
	if cfg.GenerationTimeout() != 45*time.Second {
		t.Errorf("GenerationTimeout() = %v, want 45s", cfg.GenerationTimeout())
	}
	if cfg.HeartbeatInterval() != 15*time.Second {
		t.Errorf("HeartbeatInterval() = %v, want 15s", cfg.HeartbeatInterval())
	}
	if cfg.Bridge.CloseSuperseded == nil || *cfg.Bridge.CloseSuperseded {
		t.Error("Bridge.CloseSuperseded should be explicitly false")
	}
	if !cfg.Bridge.RejectEmptyPrompt {
		t.Error("Bridge.RejectEmptyPrompt should be true")
	}
	if cfg.NotifyTimeout() != 3*time.Second {
		t.Errorf("NotifyTimeout() = %v, want 3s", cfg.NotifyTimeout())
	}
	if cfg.Auth.UserHeader != "X-Forwarded-User" {
		t.Errorf("Auth.UserHeader = %q", cfg.Auth.UserHeader)
	}
	if cfg.Notify.NATSSubject != "hideout.events" {
		t.Errorf("Notify.NATSSubject = %q, want hideout.events", cfg.Notify.NATSSubject)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if len(cfg.Seed.Projects) != 2 {
		t.Fatalf("len(Seed.Projects) = %d, want 2", len(cfg.Seed.Projects))
	}
	if cfg.Seed.Projects[1].ProjectType != "custom" {
		t.Errorf("Seed.Projects[1].ProjectType = %q, want default custom", cfg.Seed.Projects[1].ProjectType)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Server.WSPath != "/api/plugin/ws" {
		t.Errorf("Server.WSPath = %q, want /api/plugin/ws", cfg.Server.WSPath)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "hideout.db" {
		t.Errorf("Database = %+v, want sqlite hideout.db", cfg.Database)
	}
	if cfg.GenerationTimeout() != 60*time.Second {
		t.Errorf("GenerationTimeout() = %v, want 60s", cfg.GenerationTimeout())
	}
	if cfg.HeartbeatInterval() != 30*time.Second {
		t.Errorf("HeartbeatInterval() = %v, want 30s", cfg.HeartbeatInterval())
	}
	if cfg.Bridge.CloseSuperseded == nil || !*cfg.Bridge.CloseSuperseded {
		t.Error("Bridge.CloseSuperseded should default to true")
	}
	if cfg.Bridge.RejectEmptyPrompt {
		t.Error("Bridge.RejectEmptyPrompt should default to false")
	}
	if cfg.Bridge.SendBuffer != 16 {
		t.Errorf("Bridge.SendBuffer = %d, want 16", cfg.Bridge.SendBuffer)
	}
	if cfg.Auth.UserHeader != "X-User-ID" {
		t.Errorf("Auth.UserHeader = %q, want X-User-ID", cfg.Auth.UserHeader)
	}
	if cfg.Notify.DashboardEvents == nil || !*cfg.Notify.DashboardEvents {
		t.Error("Notify.DashboardEvents should default to true")
	}
	if cfg.Notify.NATSSubject != "hideout.commands" {
		t.Errorf("Notify.NATSSubject = %q, want hideout.commands", cfg.Notify.NATSSubject)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestParse_EmptyDocumentUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.Provider != "demo" {
		t.Errorf("Generation.Provider = %q, want demo", cfg.Generation.Provider)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("Database host:port = %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.User != "root" || cfg.Database.Name != "hideout" {
		t.Errorf("Database user/name = %s/%s", cfg.Database.User, cfg.Database.Name)
	}
}

func TestParse_OpenAIKeyEnvDefault(t *testing.T) {
	cfg, err := Parse([]byte("generation:\n  provider: openai\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("APIKeyEnv = %q, want OPENAI_API_KEY", cfg.Generation.APIKeyEnv)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad driver", "database:\n  driver: postgres\n", "database.driver"},
		{"bad provider", "generation:\n  provider: llama\n", "generation.provider"},
		{"bad ws path", "server:\n  ws_path: ws\n", "server.ws_path"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"negative timeout", "generation:\n  timeout_sec: -1\n", "generation.timeout_sec"},
		{"negative heartbeat", "bridge:\n  heartbeat_interval_sec: -5\n", "heartbeat_interval_sec"},
		{"seed missing id", "seed:\n  projects:\n    - user_id: u1\n      name: x\n", "seed.projects[0].id"},
		{"seed missing user", "seed:\n  projects:\n    - id: p\n      name: x\n", "seed.projects[0].user_id"},
		{"seed bad type", "seed:\n  projects:\n    - id: p\n      user_id: u\n      name: x\n      project_type: mmo\n", "project_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleErrorsJoined(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: x\ngeneration:\n  provider: y\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected joined errors, got %q", err.Error())
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hideout.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/hideout.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

func TestSecret(t *testing.T) {
	t.Setenv("HIDEOUT_TEST_SECRET", "s3cret")
	if got := Secret("HIDEOUT_TEST_SECRET"); got != "s3cret" {
		t.Errorf("Secret() = %q, want s3cret", got)
	}
	if got := Secret(""); got != "" {
		t.Errorf("Secret(\"\") = %q, want empty", got)
	}
}
