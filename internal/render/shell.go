package render

import (
	"embed"
	"net/http"
	"path"
	"strconv"
)

//go:embed assets
var assetFS embed.FS

var shellTypes = map[string]string{
	".html":        "text/html; charset=utf-8",
	".webmanifest": "application/manifest+json",
	".png":         "image/png",
}

// ShellHandler serves the embedded app shell: the page, its manifest and icons.
// "/" serves index.html.
func ShellHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(r.URL.Path)
		if name == "/" {
			name = "/index.html"
		}
		body, err := assetFS.ReadFile("assets" + name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if ct, ok := shellTypes[path.Ext(name)]; ok {
			w.Header().Set("Content-Type", ct)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}
