package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gleicon/edged/internal/config"
	"github.com/gleicon/edged/internal/edge"
	"github.com/gleicon/edged/internal/edge/middleware"
)

var (
	version    = "0.1.0-dev"
	configPath string
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd := &cobra.Command{
		Use:   "edged",
		Short: "Configuration-driven HTTP edge server",
		Long: `edged serves files from a confined local directory or reverse-proxies
to upstream origins, selected per URL prefix by a declarative YAML
configuration.`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printConfig(cfg)
			return nil
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath prefers the flag, then $EDGED_CONFIG, then the default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv(config.EnvVar); env != "" {
		return env
	}
	return config.DefaultPath
}

// loadConfig reads the configuration file. A missing file falls back to the
// built-in defaults with a warning; a file that exists but does not parse
// is fatal.
func loadConfig() (*config.Config, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("config file not found, using built-in defaults")
			return config.Default(), nil
		}
		return nil, err
	}
	log.Info().Str("path", path).Msg("loaded configuration")
	return cfg, nil
}

// applyLogLevel sets the global level from config. An unknown level name
// keeps info and warns.
func applyLogLevel(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Obs.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Obs.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLogLevel(cfg)
	printConfig(cfg)

	state := edge.NewAppState(cfg)
	handler := buildHandler(state)

	srv, err := edge.NewServer(cfg, handler)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// buildHandler wraps the route table in the middleware pipeline. Listed
// innermost first: the rate limiter runs closest to the router so its 429
// still passes the outgoing header injectors, and the access log sits
// outermost to observe final statuses.
func buildHandler(state *edge.AppState) http.Handler {
	cfg := state.Cfg
	handler := http.Handler(edge.BuildRouter(state))

	if state.Limiter != nil {
		handler = state.Limiter.Middleware(handler)
	}
	if cfg.Security.CORS.Enabled {
		handler = middleware.CORS(cfg.Security.CORS)(handler)
	}
	if cfg.Compression.Enable && (cfg.Compression.Gzip || cfg.Compression.Brotli) {
		handler = middleware.Compress(cfg.Compression.Brotli)(handler)
	}
	if cfg.Assets.Cache.Enabled {
		handler = middleware.CacheControl(cfg.Assets.Cache.MaxAge.Std())(handler)
	}
	if len(cfg.Security.Headers) > 0 {
		handler = middleware.SecurityHeaders(cfg.Security.Headers)(handler)
	}
	return middleware.AccessLog(handler)
}

// printConfig writes the resolved configuration summary to stdout.
func printConfig(cfg *config.Config) {
	fmt.Println("=== Configuration ===")
	fmt.Printf("Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Root: %s\n", cfg.Server.Root)
	fmt.Printf("Index: %s\n", cfg.Server.Index)
	fmt.Printf("Auto-index: %v\n", cfg.Server.AutoIndex)

	if cfg.TLS.Enabled {
		if cfg.TLS.ACME.Enabled {
			fmt.Printf("TLS: enabled (acme, domains: %v)\n", cfg.TLS.ACME.Domains)
		} else {
			fmt.Println("TLS: enabled")
		}
	}

	if len(cfg.Routing) == 0 {
		fmt.Println("Routes: default (serve static at /)")
	} else {
		fmt.Printf("Routes: %d\n", len(cfg.Routing))
		for _, route := range cfg.Routing {
			if route.Serve == "static" {
				fmt.Printf("  - %s -> serve: static\n", route.Path)
			}
			if route.Proxy != nil {
				fmt.Printf("  - %s -> proxy: %s\n", route.Path, route.Proxy.URL)
			}
		}
	}

	if cfg.SPA.Enabled {
		fmt.Printf("SPA: enabled (fallback: %s)\n", cfg.SPA.Fallback)
	}

	if cfg.Compression.Enable {
		var methods []string
		if cfg.Compression.Gzip {
			methods = append(methods, "gzip")
		}
		if cfg.Compression.Brotli {
			methods = append(methods, "brotli")
		}
		fmt.Printf("Compression: enabled (%v)\n", methods)
	}

	if cfg.Security.CORS.Enabled {
		fmt.Println("CORS: enabled")
	}
	if cfg.Security.RateLimit.Enabled {
		fmt.Printf("Rate limit: %d req/min\n", cfg.Security.RateLimit.RequestsPerMin)
	}
	if len(cfg.Security.Headers) > 0 {
		fmt.Printf("Security headers: %d configured\n", len(cfg.Security.Headers))
	}
	if cfg.Assets.Cache.Enabled {
		fmt.Printf("Asset cache: enabled (max-age: %ds)\n", int64(cfg.Assets.Cache.MaxAge.Std().Seconds()))
	}

	fmt.Printf("Log level: %s\n", cfg.Obs.Level)
	fmt.Println("====================")
}
