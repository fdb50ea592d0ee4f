package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// handleSPA serves the admin web client from dir, falling back to
// index.html for any path that is not a real file.
func handleSPA(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))

	return func(w http.ResponseWriter, r *http.Request) {
		// path.Clean on a rooted path cannot climb above dir.
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	}
}
