package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"captive-portal/internal/infra/redis"
	"captive-portal/internal/usecase"
)

// Options tune the HTTP surface.
type Options struct {
	RequestTimeout     time.Duration
	RateLimit          int
	RateWindow         time.Duration
	DeferredActivation bool // activate-code binds and waits for start-session
}

// Server exposes the portal use cases over JSON/HTTP.
type Server struct {
	transactions usecase.TransactionUseCase
	codes        usecase.AccessCodeUseCase
	access       usecase.AccessUseCase
	exclusions   usecase.ExclusionUseCase
	auth         *Authenticator
	health       func(ctx context.Context) error
	rate         rateGuard
	opts         Options
	log          *zerolog.Logger
}

func NewServer(
	transactions usecase.TransactionUseCase,
	codes usecase.AccessCodeUseCase,
	access usecase.AccessUseCase,
	exclusions usecase.ExclusionUseCase,
	auth *Authenticator,
	limiter Limiter,
	health func(ctx context.Context) error,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "API").Logger()
	return &Server{
		transactions: transactions,
		codes:        codes,
		access:       access,
		exclusions:   exclusions,
		auth:         auth,
		health:       health,
		rate: rateGuard{
			limiter: limiter,
			limit:   opts.RateLimit,
			window:  opts.RateWindow,
			keyFn:   redis.IdentifierKey,
			log:     &l,
		},
		opts: opts,
		log:  &l,
	}
}

// Routes builds the router. /metrics and /health sit outside the request timeout.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, Recover(s.log), RequestLog(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Route("/api/payments", func(r chi.Router) {
			r.Get("/packages", s.handlePackages)
			r.Post("/initiate", s.handleInitiate)
			r.Post("/verify/{transactionID}", s.handleVerify)
			r.Post("/momo/callback", s.handleProviderCallback)
			r.Get("/check-access", s.handleCheckAccess)
			r.Get("/history", s.handleHistory)
			r.Post("/activate-code", s.handleActivateCode)
			r.Post("/start-session", s.handleStartSession)
			r.Get("/check-code-access", s.handleCheckCodeAccess)
			r.With(s.auth.RequireAuth).Post("/generate-codes", s.handleGenerateCodes)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(s.auth.RequireAuth)
			r.Get("/exclusions", s.handleListExclusions)
			r.Post("/exclusions", s.handleAddExclusion)
			r.Delete("/exclusions/{id}", s.handleDeleteExclusion)
			r.Get("/transactions", s.handleListTransactions)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
