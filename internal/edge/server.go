package edge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/acme/autocert"

	"github.com/gleicon/edged/internal/config"
)

// Server owns the HTTP listener pair: the main listener (plain or TLS) and,
// when ACME auto-redirect is on, a plain listener that answers HTTP-01
// challenges and redirects everything else to HTTPS.
type Server struct {
	cfg         *config.Config
	handler     http.Handler
	tlsManager  *autocert.Manager
	httpServer  *http.Server
	httpsServer *http.Server
}

// NewServer validates the TLS configuration and prepares the listeners.
// TLS misconfiguration is fatal here, before any socket is bound.
func NewServer(cfg *config.Config, handler http.Handler) (*Server, error) {
	if err := ValidateTLS(cfg); err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, handler: handler}
	if cfg.TLS.Enabled && cfg.TLS.ACME.Enabled {
		s.setupACME()
	}
	return s, nil
}

// ValidateTLS checks the TLS configuration once at startup. With TLS off it
// is a no-op; with TLS on, either ACME domains or a loadable cert/key pair
// must be present.
func ValidateTLS(cfg *config.Config) error {
	if !cfg.TLS.Enabled {
		return nil
	}

	if cfg.TLS.ACME.Enabled {
		if len(cfg.TLS.ACME.Domains) == 0 {
			return errors.New("TLS ACME enabled but no domains configured")
		}
		return nil
	}

	if cfg.TLS.CertPath == "" || cfg.TLS.KeyPath == "" {
		return errors.New("TLS enabled but cert_path or key_path is empty; provide both or disable TLS")
	}
	for _, p := range []string{cfg.TLS.CertPath, cfg.TLS.KeyPath} {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("TLS material %s: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("TLS material %s is not a regular file", p)
		}
	}
	if _, err := tls.LoadX509KeyPair(cfg.TLS.CertPath, cfg.TLS.KeyPath); err != nil {
		return fmt.Errorf("loading TLS cert/key: %w", err)
	}
	return nil
}

// setupACME configures automatic certificate management.
func (s *Server) setupACME() {
	cacheDir := s.cfg.TLS.ACME.CacheDir
	if cacheDir == "" {
		cacheDir = ".edged/certs"
	}
	s.tlsManager = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      s.cfg.TLS.ACME.Email,
		HostPolicy: autocert.HostWhitelist(s.cfg.TLS.ACME.Domains...),
		Cache:      autocert.DirCache(cacheDir),
	}
}

// Start binds the listeners and serves until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	if !s.cfg.TLS.Enabled {
		s.httpServer = s.newServer(addr, s.handler)
		log.Info().Str("addr", addr).Msg("listening (http)")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}

	if s.cfg.TLS.AutoRedirect {
		go s.startRedirect(s.cfg.TLS.RedirectListen)
	}
	return s.startHTTPS(addr)
}

// newServer applies the shared listener timeouts. There is deliberately no
// WriteTimeout: proxied streams may outlive any fixed deadline.
func (s *Server) newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// startRedirect runs the plain listener that answers ACME HTTP-01
// challenges and redirects everything else to HTTPS.
func (s *Server) startRedirect(addr string) {
	redirect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := "https://" + r.Host + r.RequestURI
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})

	var handler http.Handler = redirect
	if s.tlsManager != nil {
		handler = s.tlsManager.HTTPHandler(redirect)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("listening (http redirect)")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("redirect listener error")
	}
}

// startHTTPS serves TLS from either the ACME manager or the configured
// certificate files.
func (s *Server) startHTTPS(addr string) error {
	s.httpsServer = s.newServer(addr, s.handler)

	if s.tlsManager != nil {
		s.httpsServer.TLSConfig = &tls.Config{
			GetCertificate: s.tlsManager.GetCertificate,
			NextProtos:     []string{"h2", "http/1.1", "acme-tls/1"},
			MinVersion:     tls.VersionTLS12,
		}
		log.Info().Str("addr", addr).Msg("listening (https, acme)")
		if err := s.httpsServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}

	s.httpsServer.TLSConfig = &tls.Config{
		NextProtos: []string{"h2", "http/1.1"},
		MinVersion: tls.VersionTLS12,
	}
	log.Info().Str("addr", addr).Msg("listening (https)")
	if err := s.httpsServer.ListenAndServeTLS(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains both listeners in parallel, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down")

	errChan := make(chan error, 2)
	for _, srv := range []*http.Server{s.httpServer, s.httpsServer} {
		go func(srv *http.Server) {
			if srv == nil {
				errChan <- nil
				return
			}
			errChan <- srv.Shutdown(ctx)
		}(srv)
	}

	err1 := <-errChan
	err2 := <-errChan
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}

	log.Info().Msg("shutdown complete")
	return nil
}
