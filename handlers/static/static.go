package static

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
)

// Handler serves the built web client from assets. Unknown paths without an
// extension are client-side routes and get index.html; missing assets 404.
func Handler(assets fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		f, err := assets.Open(name)
		if err == nil {
			if stat, statErr := f.Stat(); statErr == nil && stat.IsDir() {
				f.Close()
				f, err = assets.Open(path.Join(name, "index.html"))
			}
		}
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) || strings.Contains(path.Base(name), ".") {
				http.NotFound(w, r)
				return
			}
			name = "index.html"
			f, err = assets.Open(name)
			if err != nil {
				http.Error(w, "File not found", http.StatusNotFound)
				return
			}
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			http.Error(w, "Error reading file", http.StatusInternalServerError)
			return
		}

		content, ok := f.(io.ReadSeeker)
		if !ok {
			logrus.WithField("path", name).Error("Static asset is not seekable")
			http.Error(w, "Error reading file", http.StatusInternalServerError)
			return
		}

		http.ServeContent(w, r, stat.Name(), stat.ModTime(), content)
	}
}
