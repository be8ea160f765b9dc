// Package config holds the edged configuration model: one YAML document
// loaded at startup, immutable afterwards.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file consulted when no flag or env override is set.
const DefaultPath = "edged.yaml"

// EnvVar names the environment variable that overrides the config path.
const EnvVar = "EDGED_CONFIG"

// Config is the root configuration document.
type Config struct {
	Server      Server      `yaml:"server"`
	TLS         TLS         `yaml:"tls"`
	Routing     []Route     `yaml:"routing"`
	SPA         SPA         `yaml:"spa"`
	Assets      Assets      `yaml:"assets"`
	Compression Compression `yaml:"compression"`
	Security    Security    `yaml:"security"`
	Obs         Obs         `yaml:"obs"`
}

// Server configures the listener and the static-file confinement root.
type Server struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Root      string `yaml:"root"`       // confinement root for all static serving
	Index     string `yaml:"index"`      // index file tried for directory requests
	AutoIndex bool   `yaml:"auto_index"` // render a listing when no index file exists
}

// TLS selects between plain HTTP, certificate files, and ACME-managed certs.
type TLS struct {
	Enabled        bool   `yaml:"enabled"`
	CertPath       string `yaml:"cert_path"`
	KeyPath        string `yaml:"key_path"`
	ACME           ACME   `yaml:"acme"`
	AutoRedirect   bool   `yaml:"auto_redirect"`   // run an HTTP listener that redirects to HTTPS
	RedirectListen string `yaml:"redirect_listen"` // address for the redirect listener
}

// ACME configures automatic certificate management. When enabled it takes
// precedence over cert_path/key_path.
type ACME struct {
	Enabled  bool     `yaml:"enabled"`
	Email    string   `yaml:"email"`
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
}

// Route maps a URL path prefix to exactly one mode: static serving or
// proxying. Declaring both is a configuration mistake; the router warns and
// keeps the static mode.
type Route struct {
	Path  string `yaml:"path"`
	Serve string `yaml:"serve"` // "static" or empty
	Proxy *Proxy `yaml:"proxy"`
}

// Proxy configures a single upstream origin for a route.
type Proxy struct {
	URL        string     `yaml:"url"`
	Timeout    Duration   `yaml:"timeout"`     // zero means the 5s default
	AddHeaders HeaderList `yaml:"add_headers"` // ordered; values may use {client_ip}
}

// SPA configures the single-page-app fallback served for unmatched paths.
type SPA struct {
	Enabled  bool   `yaml:"enabled"`
	Fallback string `yaml:"fallback"`
}

// Assets groups asset-related response tweaks.
type Assets struct {
	Cache Cache `yaml:"cache"`
}

// Cache configures Cache-Control injection for recognized asset extensions.
type Cache struct {
	Enabled bool     `yaml:"enabled"`
	MaxAge  Duration `yaml:"max_age"`
	ETag    bool     `yaml:"etag"` // accepted for config compatibility; not yet honored
}

// Compression gates the response-compression layer.
type Compression struct {
	Enable bool `yaml:"enable"`
	Gzip   bool `yaml:"gzip"`
	Brotli bool `yaml:"br"`
}

// Security groups CORS, rate limiting and static security headers.
type Security struct {
	CORS      CORS              `yaml:"cors"`
	RateLimit RateLimit         `yaml:"rate_limit"`
	Headers   map[string]string `yaml:"headers"`
}

// CORS configures the cross-origin policy layer.
type CORS struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
}

// RateLimit configures per-client admission control.
type RateLimit struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
}

// Obs holds observability knobs.
type Obs struct {
	Level string `yaml:"level"` // zerolog level name: "debug", "info", ...
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:      "0.0.0.0",
			Port:      8080,
			Root:      ".",
			Index:     "index.html",
			AutoIndex: false,
		},
		TLS: TLS{
			RedirectListen: ":80",
		},
		SPA: SPA{
			Fallback: "index.html",
		},
		Assets: Assets{
			Cache: Cache{
				MaxAge: Duration(time.Hour),
				ETag:   true,
			},
		},
		Compression: Compression{
			Gzip:   true,
			Brotli: true,
		},
		Security: Security{
			RateLimit: RateLimit{
				RequestsPerMin: 60,
			},
		},
		Obs: Obs{
			Level: "info",
		},
	}
}

// Load reads and decodes the YAML file at path on top of the defaults.
// A file that exists but does not parse is an error; callers decide what a
// missing file means.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Duration is a time.Duration that decodes from humane YAML strings ("5s",
// "2m", "1h30m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Header is one name/value pair carried in declaration order.
type Header struct {
	Name  string
	Value string
}

// HeaderList preserves the document order of a YAML mapping of headers.
// Order matters: later entries overwrite earlier ones of the same name when
// applied, so the declared sequence is part of the configuration's meaning.
type HeaderList []Header

// UnmarshalYAML implements yaml.Unmarshaler by walking the mapping node
// directly instead of round-tripping through an unordered map.
func (h *HeaderList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("add_headers must be a mapping, got %s", value.Tag)
	}
	list := make(HeaderList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var hdr Header
		if err := value.Content[i].Decode(&hdr.Name); err != nil {
			return err
		}
		if err := value.Content[i+1].Decode(&hdr.Value); err != nil {
			return err
		}
		list = append(list, hdr)
	}
	*h = list
	return nil
}
