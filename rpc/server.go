package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stakevault/crypto"
	"stakevault/native/rewards"
	"stakevault/native/stake"
	"stakevault/observability"
	"stakevault/observability/logging"
)

const (
	maxBodyBytes     = 1 << 20
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Config wires the server's transport concerns.
type Config struct {
	ServiceName string
	Auth        AuthConfig
	RateLimit   RateLimit
	Logger      *slog.Logger
	// Now drives the claimable preview. Defaults to time.Now.
	Now func() time.Time
}

// Server exposes both ledgers over HTTP. Every ledger call, read or write, is
// issued while holding one host mutex so the ledgers observe a single caller at
// a time.
type Server struct {
	stake   *stake.Engine
	rewards *rewards.Engine
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
	service string

	mu sync.Mutex

	router chi.Router
}

func NewServer(stakeEngine *stake.Engine, rewardsEngine *rewards.Engine, cfg Config) (*Server, error) {
	if stakeEngine == nil || rewardsEngine == nil {
		return nil, errors.New("rpc: both ledgers are required")
	}
	auth, err := NewAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "stakevaultd"
	}
	s := &Server{
		stake:   stakeEngine,
		rewards: rewardsEngine,
		auth:    auth,
		limiter: NewRateLimiter(cfg.RateLimit),
		logger:  logger,
		tracer:  otel.Tracer(service),
		now:     now,
		service: service,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, s.service)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimit)

		r.Route("/stake", func(r chi.Router) {
			r.With(s.instrument(stake.ModuleName, "deposit")).Post("/deposit", s.handleStakeDeposit)
			r.With(s.instrument(stake.ModuleName, "withdraw")).Post("/withdraw", s.handleStakeWithdraw)
			r.With(s.instrument(stake.ModuleName, "depositPrizePool")).Post("/prize-pool", s.handleStakePrizePool)
			r.With(s.instrument(stake.ModuleName, "getStake")).Get("/stakes/{id}", s.handleStakeGet)
			r.With(s.instrument(stake.ModuleName, "claimable")).Get("/stakes/{id}/claimable", s.handleStakeClaimable)
			r.With(s.instrument(stake.ModuleName, "stakesOf")).Get("/participants/{participant}/stakes", s.handleStakesOf)
			r.With(s.instrument(stake.ModuleName, "config")).Get("/config", s.handleStakeConfig)
			r.With(s.instrument(stake.ModuleName, "pools")).Get("/pools", s.handleStakePools)
		})

		r.Route("/rewards", func(r chi.Router) {
			r.With(s.instrument(rewards.ModuleName, "claim")).Post("/claim", s.handleRewardsClaim)
			r.With(s.instrument(rewards.ModuleName, "epoch")).Get("/epoch", s.handleRewardsEpoch)
			r.With(s.instrument(rewards.ModuleName, "participant")).Get("/participants/{participant}", s.handleRewardsParticipant)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(s.instrument(stake.ModuleName, "setConfig")).Put("/stake/config", s.handleAdminSetConfig)
			r.With(s.instrument(stake.ModuleName, "sweepPools")).Post("/stake/sweep", s.handleAdminSweep)
			r.With(s.instrument(stake.ModuleName, "setFundingAddress")).Put("/stake/funding-address", s.handleAdminFundingAddress)
			r.With(s.instrument(rewards.ModuleName, "advanceEpoch")).Post("/rewards/epoch", s.handleAdminAdvanceEpoch)
			r.With(s.instrument(rewards.ModuleName, "setTrustedSigner")).Put("/rewards/signer", s.handleAdminSetSigner)
			r.With(s.instrument("admin", "pause")).Post("/{module}/{action}", s.handleAdminPause)
		})
	})
	return r
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned to the current request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug("rpc request",
			slog.String("requestId", RequestIDFromContext(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.status),
			slog.Duration("duration", time.Since(start)),
			logging.MaskField("authorization", r.Header.Get("Authorization")),
		)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.auth.Authenticate(r)
		if err != nil {
			s.logger.Debug("rpc authentication failed",
				slog.String("requestId", RequestIDFromContext(r.Context())),
				slog.String("error", err.Error()))
			writeError(w, r, codeUnauthenticated, "invalid or missing bearer token")
			return
		}
		trace.SpanFromContext(r.Context()).SetAttributes(
			attribute.String("stakevault.sender", crypto.FormatAddress(caller.Sender)))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ := CallerFromContext(r.Context())
		if !s.limiter.Allow(crypto.FormatAddress(caller.Sender)) {
			observability.ModuleMetrics().RecordThrottle("rpc", "rate")
			writeError(w, r, codeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(module, method string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			observability.ModuleMetrics().Observe(module, method, recorder.status, time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// call runs fn under the host mutex inside a ledger span. Successful
// mutations refresh the ledger gauges before the mutex is released.
func (s *Server) call(ctx context.Context, module, op string, mutates bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, span := s.tracer.Start(ctx, module+"."+op, trace.WithAttributes(
		attribute.String("stakevault.module", module),
		attribute.Bool("stakevault.mutates", mutates),
	))
	defer span.End()
	err := fn()
	if err != nil {
		code := ledgerErrorCode(err)
		span.SetStatus(codes.Error, code)
		span.SetAttributes(attribute.String("stakevault.error_code", code))
		observability.ModuleMetrics().RecordRejection(module, code)
		return err
	}
	if mutates {
		s.refreshGaugesLocked()
	}
	return nil
}

// RefreshGauges publishes the current pool, stake and epoch values.
func (s *Server) RefreshGauges() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshGaugesLocked()
}

func (s *Server) refreshGaugesLocked() {
	metrics := observability.Ledger()
	if pools, err := s.stake.Pools(); err == nil {
		metrics.SetPool("fees_accrued", pools.FeesAccrued)
		metrics.SetPool("prize_pool_accrued", pools.PrizePoolAccrued)
		metrics.SetPool("prize_pool_deposited", pools.PrizePoolDeposited)
	} else {
		s.logger.Warn("read pools for metrics", slog.String("error", err.Error()))
	}
	if total, err := s.stake.TotalStakes(); err == nil {
		metrics.SetStakeCount(total)
	}
	if epoch, err := s.rewards.CurrentEpoch(); err == nil {
		metrics.SetCurrentEpoch(epoch)
	}
}

// writeLedgerError reports a ledger rejection with its stable code.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	code := ledgerErrorCode(err)
	if statusForCode(code) >= http.StatusInternalServerError {
		s.logger.Error("ledger call failed",
			slog.String("requestId", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, r, code, "internal error")
		return
	}
	writeError(w, r, code, err.Error())
}
