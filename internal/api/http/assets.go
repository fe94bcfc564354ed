package http

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/listenlab/listening-backend/internal/storage"
)

// GET /assets/* -> serves the blob behind an item's audio_source or
// thumbnail_source when the item uses a stored file instead of an
// external URL.
func ServeMediaHandler(media storage.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := media.Get(key)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Not found.")
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	}
}
