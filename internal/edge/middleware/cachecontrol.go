package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// assetExtensions is the recognized static-asset set for cache-control
// injection. Matching is case-sensitive on the last dot-separated part.
var assetExtensions = map[string]bool{
	"css": true, "js": true, "mjs": true, "map": true,
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
	"svg": true, "ico": true,
	"ttf": true, "otf": true, "woff": true, "woff2": true,
	"mp4": true, "webm": true, "mp3": true,
}

// CacheControl sets "Cache-Control: public, max-age=N, immutable" on
// responses for recognized asset paths, overwriting any existing value.
// Non-asset paths pass through untouched.
func CacheControl(maxAge time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d, immutable", int64(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAssetPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(&headerInjector{
				ResponseWriter: w,
				inject: func(h http.Header) {
					h.Set("Cache-Control", value)
				},
			}, r)
		})
	}
}

// IsAssetPath reports whether p's extension is in the static-asset set.
func IsAssetPath(p string) bool {
	i := strings.LastIndexByte(p, '.')
	if i < 0 {
		return false
	}
	return assetExtensions[p[i+1:]]
}
