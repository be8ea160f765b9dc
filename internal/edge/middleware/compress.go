package middleware

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Compress wires the delegated response-compression layer. The negotiating
// compressor handles gzip out of the box; brotli is registered as an extra
// encoder when enabled.
func Compress(br bool) func(http.Handler) http.Handler {
	compressor := chimw.NewCompressor(5)
	if br {
		compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
			return brotli.NewWriterLevel(w, level)
		})
	}
	return compressor.Handler
}
