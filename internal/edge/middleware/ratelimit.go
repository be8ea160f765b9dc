// Package middleware holds the per-request decorators wrapped around the
// route table: rate-limit admission, response header injection, access
// logging, and the delegated CORS/compression layers.
package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// UnknownClientKey is the shared bucket for requests whose client address
// cannot be determined. Unknown clients must share one bucket rather than
// bypass limiting by omitting identifying headers.
const UnknownClientKey = "0.0.0.0"

// KeyedLimiter admits requests per client key using token buckets. Buckets
// live in a concurrent map so unrelated clients never serialize on a
// global lock; only same-key requests contend.
type KeyedLimiter struct {
	buckets sync.Map // key string -> *rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewKeyedLimiter builds a limiter admitting rpm requests per minute per
// key, with a burst of the same size. rpm floors at 1.
func NewKeyedLimiter(rpm int) *KeyedLimiter {
	if rpm < 1 {
		rpm = 1
	}
	return &KeyedLimiter{
		limit: rate.Limit(float64(rpm) / 60.0),
		burst: rpm,
	}
}

// Allow consumes one token from the key's bucket, creating it on first use.
func (kl *KeyedLimiter) Allow(key string) bool {
	if l, ok := kl.buckets.Load(key); ok {
		return l.(*rate.Limiter).Allow()
	}
	l, _ := kl.buckets.LoadOrStore(key, rate.NewLimiter(kl.limit, kl.burst))
	return l.(*rate.Limiter).Allow()
}

// Middleware rejects over-limit requests with 429 before the router runs.
func (kl *KeyedLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !kl.Allow(ClientKey(r)) {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey resolves the rate-limiting key for a request: the first
// X-Forwarded-For entry that parses as an IP, else the peer address, else
// the shared sentinel.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return UnknownClientKey
}
