package middleware

import "net/http"

// SecurityHeaders injects every configured name/value pair onto the
// outgoing response at write time, overwriting any value a handler set for
// the same name. All responses pass through, including short-circuited
// rejections like 429.
func SecurityHeaders(headers map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&headerInjector{
				ResponseWriter: w,
				inject: func(h http.Header) {
					for name, value := range headers {
						h.Set(name, value)
					}
				},
			}, r)
		})
	}
}

// headerInjector applies a header mutation exactly once, just before the
// status line is written. Flush passes through so proxied streams survive
// the pipeline.
type headerInjector struct {
	http.ResponseWriter
	inject func(http.Header)
	wrote  bool
}

func (hi *headerInjector) WriteHeader(status int) {
	if !hi.wrote {
		hi.wrote = true
		hi.inject(hi.ResponseWriter.Header())
	}
	hi.ResponseWriter.WriteHeader(status)
}

func (hi *headerInjector) Write(b []byte) (int, error) {
	if !hi.wrote {
		hi.WriteHeader(http.StatusOK)
	}
	return hi.ResponseWriter.Write(b)
}

func (hi *headerInjector) Flush() {
	if f, ok := hi.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
