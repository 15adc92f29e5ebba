package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// staticHandler serves a built frontend from dir. Unknown paths fall back to
// index.html so client-side routes survive a reload.
func staticHandler(dir string) (http.Handler, error) {
	root := os.DirFS(dir)
	if _, err := fs.Stat(root, "index.html"); err != nil {
		return nil, fmt.Errorf("static dir %s: %w", dir, err)
	}
	files := http.FileServerFS(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name != "" {
			if _, err := fs.Stat(root, name); errors.Is(err, fs.ErrNotExist) {
				http.ServeFileFS(w, r, root, "index.html")
				return
			}
		}
		files.ServeHTTP(w, r)
	}), nil
}
