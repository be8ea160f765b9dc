package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edged.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("default listen = %s:%d, want 0.0.0.0:8080", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Server.Index != "index.html" {
		t.Errorf("default index = %q", cfg.Server.Index)
	}
	if cfg.Server.AutoIndex {
		t.Error("auto_index should default off")
	}
	if cfg.TLS.Enabled || cfg.SPA.Enabled || cfg.Compression.Enable {
		t.Error("optional layers should default off")
	}
	if cfg.Security.RateLimit.RequestsPerMin != 60 {
		t.Errorf("default rpm = %d, want 60", cfg.Security.RateLimit.RequestsPerMin)
	}
	if cfg.Assets.Cache.MaxAge.Std() != time.Hour {
		t.Errorf("default max_age = %v, want 1h", cfg.Assets.Cache.MaxAge.Std())
	}
	if cfg.Obs.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Obs.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("Load(missing) error = %v, want IsNotExist", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("Load(invalid) = nil error, want parse failure")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  root: /srv/www
  auto_index: true
security:
  rate_limit:
    enabled: true
    requests_per_min: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Root != "/srv/www" {
		t.Errorf("root = %q", cfg.Server.Root)
	}
	if !cfg.Server.AutoIndex {
		t.Error("auto_index not applied")
	}
	// Untouched keys keep their defaults.
	if cfg.Server.Index != "index.html" {
		t.Errorf("index = %q, want default preserved", cfg.Server.Index)
	}
	if !cfg.Security.RateLimit.Enabled || cfg.Security.RateLimit.RequestsPerMin != 5 {
		t.Errorf("rate limit = %+v", cfg.Security.RateLimit)
	}
}

func TestLoadRoutes(t *testing.T) {
	path := writeConfig(t, `
routing:
  - path: /
    serve: static
  - path: /api/
    proxy:
      url: http://localhost:9001
      timeout: 2s
      add_headers:
        X-Real-IP: "{client_ip}"
        X-Edge: edged
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Routing) != 2 {
		t.Fatalf("routes = %d, want 2", len(cfg.Routing))
	}
	if cfg.Routing[0].Serve != "static" || cfg.Routing[0].Proxy != nil {
		t.Errorf("route 0 = %+v, want pure static", cfg.Routing[0])
	}
	p := cfg.Routing[1].Proxy
	if p == nil {
		t.Fatal("route 1 proxy missing")
	}
	if p.URL != "http://localhost:9001" {
		t.Errorf("proxy url = %q", p.URL)
	}
	if p.Timeout.Std() != 2*time.Second {
		t.Errorf("proxy timeout = %v, want 2s", p.Timeout.Std())
	}
}

func TestHeaderListPreservesOrder(t *testing.T) {
	path := writeConfig(t, `
routing:
  - path: /api/
    proxy:
      url: http://localhost:9001
      add_headers:
        Z-Last: z
        A-First: a
        M-Middle: m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	headers := cfg.Routing[0].Proxy.AddHeaders
	want := []string{"Z-Last", "A-First", "M-Middle"}
	if len(headers) != len(want) {
		t.Fatalf("headers = %d, want %d", len(headers), len(want))
	}
	for i, name := range want {
		if headers[i].Name != name {
			t.Errorf("headers[%d] = %q, want %q (document order)", i, headers[i].Name, name)
		}
	}
}

func TestDurationRejectsBadValue(t *testing.T) {
	path := writeConfig(t, `
routing:
  - path: /api/
    proxy:
      url: http://localhost:9001
      timeout: soon
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() = nil error, want invalid duration failure")
	}
}
