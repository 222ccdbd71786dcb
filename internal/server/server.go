package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"StreetBook/internal/observability"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port int
}

// Server is the HTTP/JSON API front of the wagering engine.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer registers all routes and builds the middleware chain.
func NewServer(
	cfg Config,
	handlers *Handlers,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	mux := http.NewServeMux()

	// Probes and metrics, no middleware.
	mux.HandleFunc("GET /healthz", health.LivenessHandler)
	mux.HandleFunc("GET /readyz", health.ReadinessHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Market lifecycle.
	mux.HandleFunc("POST /v1/markets", handlers.CreateMarket)
	mux.HandleFunc("GET /v1/markets/{id}", handlers.GetMarket)
	mux.HandleFunc("GET /v1/markets/{id}/quote", handlers.GetQuote)
	mux.HandleFunc("POST /v1/markets/{id}/buy", handlers.Buy)
	mux.HandleFunc("POST /v1/markets/{id}/sell", handlers.Sell)

	// Resolution.
	mux.HandleFunc("POST /v1/markets/{id}/propose", handlers.Propose)
	mux.HandleFunc("POST /v1/markets/{id}/dispute", handlers.Dispute)
	mux.HandleFunc("POST /v1/markets/{id}/vote", handlers.Vote)
	mux.HandleFunc("POST /v1/markets/{id}/finalize", handlers.Finalize)

	// Settlement.
	mux.HandleFunc("POST /v1/markets/{id}/claim", handlers.Claim)
	mux.HandleFunc("POST /v1/markets/{id}/refund", handlers.Refund)
	mux.HandleFunc("POST /v1/withdrawals", handlers.Withdraw)

	// Positions, balances, history.
	mux.HandleFunc("GET /v1/markets/{id}/positions/{account}", handlers.GetPosition)
	mux.HandleFunc("GET /v1/accounts/{account}/balance", handlers.GetBalance)
	mux.HandleFunc("GET /v1/accounts/{account}/payouts", handlers.ListPayouts)
	mux.HandleFunc("GET /v1/ops", handlers.ListOps)

	// Governance.
	mux.HandleFunc("GET /v1/params", handlers.GetParams)
	mux.HandleFunc("PUT /v1/admin/params", handlers.UpdateParams)
	mux.HandleFunc("PUT /v1/admin/pause", handlers.SetPaused)

	var h http.Handler = mux
	h = requestMiddleware(metrics, log)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Handler exposes the full route chain, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestMiddleware records request metrics and debug logs. The route
// pattern, not the raw path, keeps metric cardinality bounded.
func requestMiddleware(metrics *observability.Metrics, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			endpoint := r.Pattern
			if endpoint == "" {
				endpoint = "unmatched"
			}
			if metrics != nil {
				metrics.APIRequests.WithLabelValues(endpoint, fmt.Sprintf("%d", rec.status)).Inc()
				metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
				if rec.status >= 400 {
					metrics.APIErrors.WithLabelValues(endpoint, fmt.Sprintf("%d", rec.status)).Inc()
				}
			}
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
