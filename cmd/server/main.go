package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/listenlab/listening-backend/internal/api/http"
	"github.com/listenlab/listening-backend/internal/auth"
	"github.com/listenlab/listening-backend/internal/config"
	"github.com/listenlab/listening-backend/internal/db"
	"github.com/listenlab/listening-backend/internal/listening"
	"github.com/listenlab/listening-backend/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := listening.NewSQLStore(dbh)

	if err := auth.EnsureGuest(ctx, dbh); err != nil {
		log.Fatalf("guest provisioning failed: %v", err)
	}
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	media, err := storage.NewFSStore(cfg.MediaBasePath)
	if err != nil {
		log.Fatalf("media store: %v", err)
	}

	if cfg.SeedSample {
		n, err := listening.SeedSampleTests(ctx, store)
		if err != nil {
			log.Fatalf("seed sample tests: %v", err)
		}
		if n > 0 {
			log.Printf("seeded %d sample tests", n)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/", api.New(store, media, authSvc, cfg))

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
