package edge

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpguts"

	"github.com/gleicon/edged/internal/config"
)

// DefaultProxyTimeout bounds the upstream call when a route sets none.
const DefaultProxyTimeout = 5 * time.Second

// clientIPPlaceholder is substituted in configured header values.
const clientIPPlaceholder = "{client_ip}"

// hopByHopHeaders are connection-specific and must not cross the proxy
// boundary in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Upgrade",
	"Te",
	"Trailers",
}

// ProxyTarget is the immutable per-route upstream description, built once at
// startup and shared read-only across concurrent requests.
type ProxyTarget struct {
	BaseURL    string // no trailing slash
	Timeout    time.Duration
	AddHeaders []config.Header // declaration order preserved
}

// NewProxyTarget normalizes a route's proxy configuration: the base URL loses
// any trailing slash, a zero timeout becomes the 5s default, and headers with
// invalid names are dropped up front.
func NewProxyTarget(p *config.Proxy) *ProxyTarget {
	timeout := p.Timeout.Std()
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}
	headers := make([]config.Header, 0, len(p.AddHeaders))
	for _, h := range p.AddHeaders {
		if !httpguts.ValidHeaderFieldName(h.Name) {
			log.Warn().Str("header", h.Name).Msg("dropping proxy header with invalid name")
			continue
		}
		headers = append(headers, h)
	}
	return &ProxyTarget{
		BaseURL:    strings.TrimRight(p.URL, "/"),
		Timeout:    timeout,
		AddHeaders: headers,
	}
}

// Forwarder proxies requests for one route to its upstream. The outbound
// client is shared process-wide so upstream connections are pooled.
type Forwarder struct {
	Target *ProxyTarget
	Prefix string
	Client *http.Client
}

// ServeHTTP implements http.Handler. A single forwarding attempt is made:
// any transport failure or timeout surfaces as 502 with no retry.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(f.Prefix, "/"))
	tail = strings.TrimPrefix(tail, "/")

	upstream := f.Target.BaseURL + "/" + tail
	if r.URL.RawQuery != "" {
		upstream += "?" + r.URL.RawQuery
	}
	target, err := url.Parse(upstream)
	if err != nil {
		log.Error().Err(err).Str("upstream", upstream).Msg("invalid upstream URL")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	// The outbound context derives from Background, not the inbound request:
	// a client that disconnects must not abort the in-flight upstream call.
	// The timer bounds the header phase only; once the upstream responds it
	// is stopped so long-lived bodies stream past the deadline.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	timer := time.AfterFunc(f.Target.Timeout, cancel)

	out, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		timer.Stop()
		log.Error().Err(err).Str("upstream", upstream).Msg("building upstream request failed")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	out.Host = target.Host
	for name, values := range r.Header {
		out.Header[name] = values
	}

	clientIP := resolveClientIP(r)
	for _, h := range f.Target.AddHeaders {
		v := strings.ReplaceAll(h.Value, clientIPPlaceholder, clientIP)
		if !httpguts.ValidHeaderFieldValue(v) {
			log.Debug().Str("header", h.Name).Msg("skipping proxy header with invalid value")
			continue
		}
		out.Header.Set(h.Name, v)
	}

	stripHopByHop(out.Header)

	resp, err := f.Client.Do(out)
	timer.Stop()
	if err != nil {
		log.Error().Err(err).Str("upstream", upstream).Msg("upstream request failed")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	stripHopByHop(resp.Header)
	for name, values := range resp.Header {
		w.Header()[name] = values
	}
	w.WriteHeader(resp.StatusCode)
	streamBody(w, resp.Body)
}

// streamBody copies the upstream body to the client chunk by chunk, flushing
// after each chunk so large or long-lived responses are never buffered whole.
func streamBody(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Msg("upstream body stream interrupted")
			}
			return
		}
	}
}

// stripHopByHop removes the connection-specific headers from h.
func stripHopByHop(h http.Header) {
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

// resolveClientIP prefers the first X-Forwarded-For entry, then the
// transport-level peer address, then "unknown".
func resolveClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
