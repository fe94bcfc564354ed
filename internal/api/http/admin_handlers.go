package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/listenlab/listening-backend/internal/listening"
	"github.com/listenlab/listening-backend/internal/storage"
)

// RequireAdmin guards catalog management with HTTP basic auth checked
// against the configured bcrypt hash.
func RequireAdmin(adminUser, adminPassHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != adminUser ||
				bcrypt.CompareHashAndPassword([]byte(adminPassHash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
				writeDetail(w, http.StatusUnauthorized, "Admin credentials required.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PUT /admin/tests/{testID} -> upsert a full test (items, questions,
// options). Replaces the whole item tree and refreshes total_items.
func PutTestHandler(store listening.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t listening.Test
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid JSON body.")
			return
		}
		t.ID = chi.URLParam(r, "testID")
		stored, err := store.PutTest(r.Context(), t)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	}
}

// POST /admin/tests/{testID}/recount -> explicit refresh of the cached
// item count after items were added or removed.
func RecountHandler(store listening.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := store.RefreshItemCount(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"total_items": n})
	}
}

// POST /admin/media/{key...} -> store an audio or thumbnail blob under
// the given key; items reference it through their audio/thumbnail field.
func UploadMediaHandler(media storage.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if key == "" {
			writeDetail(w, http.StatusBadRequest, "Media key required.")
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Form file required.")
			return
		}
		defer f.Close()
		stored, err := media.Put(key, f)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Store error.")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": stored, "url": media.URL(stored)})
	}
}
