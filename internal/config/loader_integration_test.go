package config

import (
	"os"
	"path/filepath"
	"testing"
)

// Tests that exercise the full LoadFrom pipeline:
// defaults < YAML < .env < environment variables.

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFrom_FullHierarchy(t *testing.T) {
	yamlPath := writeYAML(t, `
server:
  port: "9090"
logging:
  level: "debug"
`)

	t.Setenv("NOTEVAULT_PORT", "7070")
	t.Setenv("NOTEVAULT_LOG_LEVEL", "warn")
	t.Setenv("NOTEVAULT_JWT_SECRET", testSecret)

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadFrom_SecretFromYAML(t *testing.T) {
	yamlPath := writeYAML(t, `
auth:
  jwt_secret: "`+testSecret+`"
`)
	t.Setenv("NOTEVAULT_JWT_SECRET", "")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Error("expected jwt secret from YAML")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("default port should be 8080, got %q", cfg.Server.Port)
	}
}

func TestLoadFrom_EnvInvalidValues(t *testing.T) {
	yamlPath := writeYAML(t, "")

	t.Setenv("NOTEVAULT_JWT_SECRET", testSecret)
	t.Setenv("NOTEVAULT_PG_MAX_CONNS", "notanumber")
	t.Setenv("NOTEVAULT_TOKEN_TTL", "invalid-duration")
	t.Setenv("NOTEVAULT_RATE_RPS", "abc")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("invalid int env should be ignored: got max_conns %d, want 15", cfg.Postgres.MaxConns)
	}
	if cfg.Auth.TokenTTL.String() != "168h0m0s" {
		t.Errorf("invalid duration env should be ignored: got %v, want 168h", cfg.Auth.TokenTTL)
	}
	if cfg.Rate.RequestsPerSecond != 10 {
		t.Errorf("invalid float env should be ignored: got %v, want 10", cfg.Rate.RequestsPerSecond)
	}
}

func TestLoadFrom_MissingSecret(t *testing.T) {
	t.Setenv("NOTEVAULT_JWT_SECRET", "")
	if _, err := LoadFrom("/nonexistent/path/to/config.yaml"); err == nil {
		t.Fatal("expected validation error without a jwt secret")
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	yamlPath := writeYAML(t, `{{{invalid yaml`)

	_, err := LoadFrom(yamlPath)
	if err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestReload_UpdatesFields(t *testing.T) {
	t.Setenv("NOTEVAULT_JWT_SECRET", testSecret)
	t.Setenv("NOTEVAULT_LOG_LEVEL", "")
	yamlPath := writeYAML(t, `
logging:
  level: "info"
rate:
  burst: 50
`)

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	holder := NewHolder(cfg, yamlPath)

	if err := os.WriteFile(yamlPath, []byte(`
logging:
  level: "debug"
rate:
  burst: 200
`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	got := holder.Get()
	if got.Logging.Level != "debug" {
		t.Errorf("after reload: got level %q, want debug", got.Logging.Level)
	}
	if got.Rate.Burst != 200 {
		t.Errorf("after reload: got burst %d, want 200", got.Rate.Burst)
	}
}

func TestReload_ValidationFails_PreservesOld(t *testing.T) {
	t.Setenv("NOTEVAULT_JWT_SECRET", testSecret)
	t.Setenv("NOTEVAULT_PORT", "")
	yamlPath := writeYAML(t, `
server:
  port: "9090"
`)

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	holder := NewHolder(cfg, yamlPath)

	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: ""
`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := holder.Reload(); err == nil {
		t.Fatal("expected reload to fail for invalid config")
	}
	if got := holder.Get(); got.Server.Port != "9090" {
		t.Errorf("old config should be preserved: got port %q, want 9090", got.Server.Port)
	}
}
