package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/listenlab/listening-backend/internal/listening"
	"github.com/listenlab/listening-backend/internal/storage"
)

// GET /tests/ -> active, non-archived tests.
func ListTestsHandler(store listening.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tests, err := store.ListTests(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if tests == nil {
			tests = []listening.Test{}
		}
		writeJSON(w, http.StatusOK, tests)
	}
}

// GET /items/{itemID}/ -> single item with nested questions and options.
// Correctness is never hidden on this route.
func GetItemHandler(store listening.Store, media storage.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := store.GetItem(r.Context(), chi.URLParam(r, "itemID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newItemView(item, false, media))
	}
}
