package edge

import (
	"html"
	"os"
	"path"
	"sort"
	"strings"
)

// renderListing produces a self-contained HTML index of dir. rel is the
// request path relative to the route root ("" for the root itself) and only
// influences the title and link targets, never which entries appear.
// Ordering is deterministic: directories first, then case-insensitive by
// name, so identical directory contents always render identical HTML.
func renderListing(dir, rel string) (string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	type entry struct {
		name  string
		isDir bool
	}
	items := make([]entry, 0, len(dirents))
	for _, de := range dirents {
		items = append(items, entry{name: de.Name(), isDir: de.IsDir()})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].isDir != items[j].isDir {
			return items[i].isDir
		}
		return strings.ToLower(items[i].name) < strings.ToLower(items[j].name)
	})

	title := "/"
	if rel != "" {
		title = "/" + rel
	}

	var b strings.Builder
	b.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>Index of ")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title><style>body { font-family: monospace; margin: 20px; } h1 { color: #333; } ul { list-style: none; padding: 0; } li { padding: 5px 0; } a { color: #0066cc; text-decoration: none; } a:hover { text-decoration: underline; } hr { margin-top: 20px; border: none; border-top: 1px solid #ccc; }</style></head><body><h1>Index of ")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</h1><ul>")

	if rel != "" {
		// Parent link points at the request path with its last segment
		// stripped, not at the directory's on-disk parent.
		parent := path.Dir(strings.TrimSuffix(rel, "/"))
		if parent == "." {
			parent = ""
		}
		b.WriteString("<li><a href=\"" + html.EscapeString("/"+parent) + "\">..</a></li>")
	}

	for _, it := range items {
		var url string
		if rel == "" {
			url = "/" + it.name
		} else {
			url = "/" + strings.TrimSuffix(rel, "/") + "/" + it.name
		}
		if it.isDir {
			url += "/"
		}
		b.WriteString("<li><a href=\"" + html.EscapeString(url) + "\">" + html.EscapeString(it.name) + "</a></li>")
	}

	b.WriteString("</ul><hr><address>edged</address></body></html>")
	return b.String(), nil
}
