// Package http exposes the ledger over a small HTTP API: health probes,
// synchronous and queued reports, and transaction listing and entry.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

// ReportGenerator runs reports. *services.ReportService satisfies it.
type ReportGenerator interface {
	GenerateWithTimeout(ctx context.Context, from, to core.Date, timeout time.Duration) (*core.AnalyticsResult, error)
	Busy() bool
	DefaultRange() (core.Date, core.Date)
}

// RequestPublisher queues a report request. *amqp.Client satisfies it.
type RequestPublisher interface {
	PublishReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error
}

// TransactionService lists and records transactions.
// *services.TransactionService satisfies it.
type TransactionService interface {
	Create(ctx context.Context, in services.TransactionInput) (core.Transaction, error)
	List(ctx context.Context, from, to core.Date) ([]core.Transaction, error)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Options wires the server to the rest of the application. Reports is
// required; a nil Publisher or Transactions disables the matching routes.
type Options struct {
	Reports      ReportGenerator
	Publisher    RequestPublisher
	Transactions TransactionService
	Checks       []Check
	RateLimit    ratelimit.Config
}

type Server struct {
	http.Server
	reports      ReportGenerator
	publisher    RequestPublisher
	transactions TransactionService
	checks       []Check
	logger       *log.Logger

	tracer       *trace.Middleware
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	clientIP := security.NewClientIP()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		reports:      opts.Reports,
		publisher:    opts.Publisher,
		transactions: opts.Transactions,
		checks:       opts.Checks,
		logger:       logger,
		tracer:       trace.NewMiddleware(logger, clientIP.Extract),
		limiter:      ratelimit.NewLimiter(opts.RateLimit),
	}

	limited := s.limiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later", "rate_limited")
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /reports", s.handleReport)
	mux.Handle("POST /reports", limited(http.HandlerFunc(s.handleQueueReport)))
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.Handle("POST /transactions", limited(http.HandlerFunc(s.handleCreateTransaction)))

	headers := security.NewHeadersMiddleware(security.APIHeadersConfig())
	s.Handler = s.tracer.Middleware(headers.Middleware(mux))
	return s
}

// Shutdown stops accepting requests and waits for in-flight ones. Reports
// still running are cancelled when their request context ends.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
