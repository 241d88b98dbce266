package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/mentorlink/apiserver/config"
	"github.com/mentorlink/apiserver/internal/auth"
	"github.com/mentorlink/apiserver/internal/cache"
	"github.com/mentorlink/apiserver/internal/db"
	"github.com/mentorlink/apiserver/internal/handlers"
	"github.com/mentorlink/apiserver/internal/logging"
	"github.com/mentorlink/apiserver/internal/metrics"
	"github.com/mentorlink/apiserver/internal/mq"
	"github.com/mentorlink/apiserver/internal/services"
	"github.com/mentorlink/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	mq         *mq.MQ
	logger     logging.Logger
}

// Deps are the collaborators the router is built from. Limiter, Revocations
// and Ready entries are optional.
type Deps struct {
	Accounts    *services.AccountService
	Sessions    handlers.Authenticator
	Limiter     handlers.LoginLimiter
	Revocations handlers.TokenRevoker
	Metrics     *metrics.Metrics
	Logger      logging.Logger
	Ready       map[string]handlers.Pinger
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

const (
	// handlerTimeout must stay below writeTimeout so timed-out requests
	// still get a response.
	handlerTimeout = 10 * time.Second
	readTimeout    = 15 * time.Second
	writeTimeout   = 15 * time.Second
	idleTimeout    = 60 * time.Second
)

// New connects every backing service selected by cfg and constructs the
// Server. A missing or weak JWT secret is fatal.
func New(ctx context.Context, cfg config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	tokenCfg := auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	}
	issuer, err := auth.NewTokenIssuer(tokenCfg)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET: %w", err)
	}
	verifier, err := auth.NewTokenVerifier(tokenCfg)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET: %w", err)
	}
	hasher, err := auth.NewHasher(cfg.Auth.BcryptCost, int64(cfg.Auth.HashConcurrency))
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s := &Server{db: dbConn, logger: logger}

	s.redis, err = cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	s.mq, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("connect message queue: %w", err)
	}

	m := metrics.New()
	userRepo := store.NewUserRepository(dbConn, cfg.Database.QueryTimeout)
	opts := []services.Option{services.WithRecorder(m), services.WithLogger(logger)}
	if s.mq != nil {
		opts = append(opts, services.WithEvents(s.mq, cfg.MQ.AccountChannel))
	}
	accounts := services.NewAccountService(
		userRepo,
		services.NewSQLTransactor(dbConn, cfg.Database.QueryTimeout),
		hasher,
		issuer,
		opts...,
	)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		admin, created, err := accounts.EnsureAdmin(ctx, services.RegisterInput{
			FirstName: cfg.Admin.FirstName,
			LastName:  cfg.Admin.LastName,
			Email:     cfg.Admin.Email,
			Password:  cfg.Admin.Password,
		})
		if err != nil {
			s.close()
			return nil, fmt.Errorf("seed admin: %w", err)
		}
		logger.Info(ctx, "admin account ready", "user_id", admin.ID, "created", created)
	}

	deps := Deps{
		Accounts:          accounts,
		Metrics:           m,
		Logger:            logger,
		Ready:             map[string]handlers.Pinger{"postgres": dbConn},
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}
	var revocations auth.RevocationList
	if s.redis != nil {
		revocationStore := cache.NewRevocationStore(s.redis, cfg.Redis.KeyPrefix)
		revocations = revocationStore
		deps.Revocations = revocationStore
		deps.Limiter = cache.NewLoginLimiter(s.redis, cfg.Redis.KeyPrefix, cfg.RateLimit.LoginAttempts, cfg.RateLimit.Window)
		deps.Ready["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return s.redis.Ping(ctx).Err()
		})
	} else {
		logger.Warn(ctx, "redis disabled: logout revocation and login rate limiting are off")
	}
	deps.Sessions = auth.NewSessionValidator(verifier, userRepo, revocations)

	s.router = NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s, nil
}

// NewRouter builds the HTTP routes over deps.
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	var rejections handlers.RejectionRecorder
	if deps.Metrics != nil {
		rejections = deps.Metrics
	}
	guard := handlers.NewGuard(deps.Sessions, logger, rejections)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if deps.TrustProxyHeaders {
		router.Use(middleware.RealIP)
	}
	router.Use(
		middleware.Logger,
		handlers.Recoverer(logger),
		middleware.Timeout(handlerTimeout),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/readyz", handlers.Readyz(deps.Ready))
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler())
	}
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, deps.Accounts, guard, handlers.AuthOptions{
			Limiter: deps.Limiter,
			Revoker: deps.Revocations,
			Logger:  logger,
		})
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, deps.Accounts, guard, logger)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close message queue", "error", err)
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
