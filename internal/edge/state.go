package edge

import (
	"net/http"
	"time"

	"github.com/gleicon/edged/internal/config"
	"github.com/gleicon/edged/internal/edge/middleware"
)

// AppState is the process-wide, read-mostly state shared by every request
// handler: resolved configuration, the confinement root, the optional rate
// limiter, and the pooled outbound client used for proxying. It is built
// once at startup and never mutated afterwards; only the limiter's internal
// counters change, and those are safe for concurrent keyed access.
type AppState struct {
	Cfg     *config.Config
	Root    string
	Limiter *middleware.KeyedLimiter
	Client  *http.Client
}

// NewAppState builds the shared state from the resolved configuration.
func NewAppState(cfg *config.Config) *AppState {
	state := &AppState{
		Cfg:    cfg,
		Root:   cfg.Server.Root,
		Client: newProxyClient(),
	}
	if cfg.Security.RateLimit.Enabled {
		state.Limiter = middleware.NewKeyedLimiter(cfg.Security.RateLimit.RequestsPerMin)
	}
	return state
}

// newProxyClient builds the single long-lived outbound client. Pooling
// upstream connections across requests is required for throughput; per-route
// timeouts are enforced per request via context, so the client itself has
// no deadline.
func newProxyClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
