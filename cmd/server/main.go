package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube-org/vidtube/backend/internal/audit"
	"github.com/vidtube-org/vidtube/backend/internal/auth"
	"github.com/vidtube-org/vidtube/backend/internal/config"
	"github.com/vidtube-org/vidtube/backend/internal/httpx"
	"github.com/vidtube-org/vidtube/backend/internal/middleware"
	"github.com/vidtube-org/vidtube/backend/internal/rate"
	"github.com/vidtube-org/vidtube/backend/internal/store"
	"github.com/vidtube-org/vidtube/backend/internal/token"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)
	httpx.Debug = cfg.Environment == "development"

	// ── Token managers ───────────────────────────────────────
	accessTokens, err := token.NewManager([]byte(cfg.AccessTokenSecret), cfg.AccessTokenTTL)
	if err != nil {
		fatal(log, "access token manager", err)
	}
	refreshTokens, err := token.NewManager([]byte(cfg.RefreshTokenSecret), cfg.RefreshTokenTTL)
	if err != nil {
		fatal(log, "refresh token manager", err)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		fatal(log, "mongo connect", err)
	}
	defer mongoClient.Disconnect(ctx)
	users := store.NewUserStore(mongoClient.Database(cfg.MongoDB))
	if err := users.EnsureIndexes(ctx); err != nil {
		fatal(log, "mongo indexes", err)
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		fatal(log, "redis connect", err)
	}
	defer rdb.Close()
	limiter := rate.New(rdb, cfg.LoginMaxAttempts, cfg.LoginCooldown)

	// ── PostgreSQL (audit trail) ─────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		fatal(log, "postgres connect", err)
	}
	defer pgPool.Close()
	auditStore := store.NewAuditStore(pgPool)
	if err := auditStore.Migrate(ctx); err != nil {
		fatal(log, "postgres migrate", err)
	}
	trail := audit.NewRecorder(auditStore, log)

	// ── MinIO ────────────────────────────────────────────────
	assets, err := store.NewAssetStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		fatal(log, "minio connect", err)
	}

	// ── Service & handlers ───────────────────────────────────
	svc := auth.NewService(users, assets, accessTokens, refreshTokens, limiter, trail, log)
	authHandler := auth.NewHandler(svc, log, cfg.SecureCookies)
	requireAuth := middleware.RequireAuth(accessTokens, users)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh-token", authHandler.RefreshToken)
		r.With(requireAuth).Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/profile", authHandler.Profile)
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}

	go func() {
		log.Info("backend listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(log, "server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
	trail.Close()
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
