package edge

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// StaticHandler serves files from a confinement root. Requests are limited
// to GET/HEAD; directories try the configured index file first and fall back
// to a generated listing when AutoIndex is set.
type StaticHandler struct {
	Root      string
	Index     string
	AutoIndex bool
	Prefix    string // mounted route prefix, stripped to obtain the tail
}

// ServeHTTP implements http.Handler.
func (sh *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(sh.Prefix, "/"))
	tail = strings.TrimPrefix(tail, "/")

	// Checked again here even though the resolver repeats it: the string
	// check must hold before anything touches the filesystem.
	if hasDotDotSegment(tail) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	fsPath, err := ResolveWithinRoot(sh.Root, tail)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if info.Mode().IsRegular() {
		serveFile(w, r, fsPath, info.Size())
		return
	}

	if info.IsDir() {
		indexPath := filepath.Join(fsPath, sh.Index)
		if idx, err := os.Stat(indexPath); err == nil && idx.Mode().IsRegular() {
			serveFile(w, r, indexPath, idx.Size())
			return
		}
		if sh.AutoIndex {
			sh.serveListing(w, r, fsPath, tail)
			return
		}
		http.NotFound(w, r)
		return
	}

	http.NotFound(w, r)
}

// serveListing renders the directory index for dir.
func (sh *StaticHandler) serveListing(w http.ResponseWriter, r *http.Request, dir, rel string) {
	html, err := renderListing(dir, rel)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("directory listing failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(html)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	io.WriteString(w, html)
}

// serveFile streams a regular file of known size. Content-Length is always
// set, including for HEAD where the body stays empty.
func serveFile(w http.ResponseWriter, r *http.Request, fsPath string, size int64) {
	f, err := os.Open(fsPath)
	if err != nil {
		// The path was stat'd a moment ago; failing to open it now is a
		// local I/O problem, not a missing resource.
		log.Error().Err(err).Str("path", fsPath).Msg("opening static file failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	ctype := mime.TypeByExtension(filepath.Ext(fsPath))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, f); err != nil {
		log.Debug().Err(err).Str("path", fsPath).Msg("static body copy interrupted")
	}
}
