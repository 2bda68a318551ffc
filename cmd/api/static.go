package main

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"statusgate/internal/gate"
)

// static serves files under the static root, with "/" mapped to index.html.
// Directories, dotfiles and missing files fall through to the JSON 404.
func (h *handlers) static(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + chi.URLParam(r, "*"))
	if name == "/" {
		name = "/index.html"
	}
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			gate.NotFound(w, r)
			return
		}
	}

	f, err := h.files.Open(name)
	if err != nil {
		gate.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		gate.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
