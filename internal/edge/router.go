package edge

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Router dispatches requests over the declared routes in configuration
// order: first matching prefix wins. Unmatched requests hit the SPA
// fallback when one is installed, otherwise 404.
type Router struct {
	routes   []mountedRoute
	fallback http.Handler
}

type mountedRoute struct {
	prefix  string
	handler http.Handler
}

// BuildRouter mounts every declared route. A route declaring both static
// and proxy modes is a configuration mistake: the router warns and keeps
// the static mode. With no routes declared at all, a single static route
// at "/" covers the whole confinement root.
func BuildRouter(state *AppState) *Router {
	r := &Router{}
	cfg := state.Cfg

	for _, route := range cfg.Routing {
		switch {
		case route.Serve == "static":
			if route.Proxy != nil {
				log.Warn().Str("route", route.Path).
					Msg("route declares both 'serve: static' and 'proxy'; ignoring proxy, routes are mutually exclusive")
			}
			r.mountStatic(state, route.Path)
		case route.Proxy != nil:
			log.Info().Str("route", route.Path).Str("upstream", route.Proxy.URL).Msg("mounting proxy route")
			r.routes = append(r.routes, mountedRoute{
				prefix: route.Path,
				handler: &Forwarder{
					Target: NewProxyTarget(route.Proxy),
					Prefix: route.Path,
					Client: state.Client,
				},
			})
		default:
			log.Warn().Str("route", route.Path).Msg("route declares neither 'serve: static' nor 'proxy'; skipping")
		}
	}

	if len(r.routes) == 0 {
		log.Info().Msg("no routes configured, defaulting to static serving at /")
		r.mountStatic(state, "/")
	}

	if cfg.SPA.Enabled {
		r.fallback = buildSPAFallback(state)
	}

	return r
}

// mountStatic installs a static route rooted at the confinement root.
func (r *Router) mountStatic(state *AppState, prefix string) {
	log.Info().Str("route", prefix).Msg("mounting static route")
	r.routes = append(r.routes, mountedRoute{
		prefix: prefix,
		handler: &StaticHandler{
			Root:      state.Root,
			Index:     state.Cfg.Server.Index,
			AutoIndex: state.Cfg.Server.AutoIndex,
			Prefix:    prefix,
		},
	})
}

// buildSPAFallback resolves the configured fallback file through the
// confinement resolver. A fallback path that fails confinement is a
// warning, never a startup failure: the root index.html is served instead.
func buildSPAFallback(state *AppState) http.Handler {
	rel := strings.TrimPrefix(state.Cfg.SPA.Fallback, "/")
	fallbackPath, err := ResolveWithinRoot(state.Root, rel)
	if err != nil {
		log.Warn().Str("fallback", state.Cfg.SPA.Fallback).
			Msg("SPA fallback path fails confinement, using default index.html")
		fallbackPath = filepath.Join(state.Root, "index.html")
	}
	return &spaFallback{path: fallbackPath}
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	for _, route := range r.routes {
		if matchPrefix(route.prefix, req.URL.Path) {
			route.handler.ServeHTTP(w, req)
			return
		}
	}
	if r.fallback != nil {
		r.fallback.ServeHTTP(w, req)
		return
	}
	http.NotFound(w, req)
}

// matchPrefix reports whether a request path falls under a route prefix.
// The root route matches everything; a non-root prefix matches itself and
// its own sub-tree only.
func matchPrefix(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	p := strings.TrimSuffix(prefix, "/")
	return path == p || strings.HasPrefix(path, p+"/")
}

// spaFallback serves one pre-resolved file for every unmatched path,
// following the static rules: GET/HEAD only, 404 when the file is absent.
type spaFallback struct {
	path string
}

func (s *spaFallback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	info, err := os.Stat(s.path)
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	serveFile(w, r, s.path, info.Size())
}
