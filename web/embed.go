// Package web ships the Challenge Lab host page inside the server binary.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

const indexFile = "index.html"

// SPAHandler serves the embedded host page. Asset paths are served as files;
// anything else, such as /challenges/{id}, is a client-side route and gets
// index.html so the page can route itself.
func SPAHandler() http.Handler {
	assets, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: dist is missing from the embedded files: " + err.Error())
	}
	files := http.FileServer(http.FS(assets))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name != "" && name != indexFile && isFile(assets, name) {
			files.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, assets, indexFile)
	})
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
