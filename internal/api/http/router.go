package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/listenlab/listening-backend/internal/auth"
	"github.com/listenlab/listening-backend/internal/config"
	"github.com/listenlab/listening-backend/internal/listening"
	"github.com/listenlab/listening-backend/internal/storage"
)

// New mounts the public quiz surface and the admin catalog surface.
// Server-level middleware (logging, CORS, timeouts) is wired by cmd.
func New(store listening.Store, media storage.MediaStore, authSvc *auth.AuthService, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.SubjectMiddleware(authSvc, auth.GuestUserID))

	r.Post("/auth/guest", auth.GuestLoginHandler(authSvc, cfg.EnableGuestAuth))

	r.Get("/tests/", ListTestsHandler(store))
	r.Get("/items/{itemID}/", GetItemHandler(store, media))

	r.Post("/sessions/start/", StartSessionHandler(store, media))
	r.Get("/sessions/{sessionID}/", GetSessionHandler(store))
	r.Post("/sessions/{sessionID}/answers/", SubmitAnswerHandler(store))
	r.Post("/sessions/{sessionID}/events/", LogEventHandler(store))
	r.Post("/sessions/{sessionID}/finish/", FinishSessionHandler(store))
	r.Get("/sessions/{sessionID}/score-report/", ScoreReportHandler(store))

	r.Get("/assets/*", ServeMediaHandler(media))

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(RequireAdmin(cfg.AdminUser, cfg.AdminPassHash))
		ar.Put("/tests/{testID}", PutTestHandler(store))
		ar.Post("/tests/{testID}/recount", RecountHandler(store))
		ar.Post("/media/*", UploadMediaHandler(media))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	return r
}
