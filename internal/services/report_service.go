package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"ledger/internal/analyzer"
	"ledger/internal/core"
	"ledger/internal/log"
)

// ErrReportInProgress is returned when a report is requested while another
// one from the same service is still running.
var ErrReportInProgress = errors.New("a report is already in progress")

// AnalyzerRunner runs one analyzer invocation. *analyzer.Runner satisfies it.
type AnalyzerRunner interface {
	Run(ctx context.Context, req analyzer.Request) (*core.AnalyticsResult, error)
}

// Report is the outcome of one Generate call.
type Report struct {
	From     core.Date
	To       core.Date
	Result   *core.AnalyticsResult
	Err      error
	Duration time.Duration
}

// Kind names the failure class of r.Err, empty on success.
func (r Report) Kind() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, context.Canceled), errors.Is(r.Err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(r.Err, ErrReportInProgress):
		return "busy"
	case analyzer.KindOf(r.Err) != 0:
		return analyzer.KindOf(r.Err).String()
	case errors.Is(r.Err, core.ErrInvalidDateRange):
		return "invalid_range"
	default:
		return "internal"
	}
}

// ReportService runs analyzer reports for one database, at most one at a time.
type ReportService struct {
	runner AnalyzerRunner
	dbPath string
	logger *log.Logger
	now    func() time.Time

	busy atomic.Bool
}

func NewReportService(runner AnalyzerRunner, dbPath string, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportService{
		runner: runner,
		dbPath: dbPath,
		logger: logger.WithComponent(log.ComponentReport),
		now:    time.Now,
	}
}

// Busy reports whether a report is currently running.
func (s *ReportService) Busy() bool {
	return s.busy.Load()
}

// DefaultRange is the first day of the current month through today.
func (s *ReportService) DefaultRange() (core.Date, core.Date) {
	today := core.DateOf(s.now())
	return today.MonthStart(), today
}

// Generate runs the analyzer over from..to, both days included. Cancelling
// ctx stops the analyzer; the error then wraps the context's cause.
func (s *ReportService) Generate(ctx context.Context, from, to core.Date) (*core.AnalyticsResult, error) {
	return s.GenerateWithTimeout(ctx, from, to, 0)
}

// GenerateWithTimeout is Generate with a per-call analyzer timeout; zero keeps
// the runner's.
func (s *ReportService) GenerateWithTimeout(ctx context.Context, from, to core.Date, timeout time.Duration) (*core.AnalyticsResult, error) {
	if err := core.ValidateRange(from, to); err != nil {
		return nil, fmt.Errorf("report %s..%s: %w", from, to, err)
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrReportInProgress
	}
	defer s.busy.Store(false)

	start := time.Now()
	fields := log.NewFields().WithRange(from.Time, to.Time).WithOperation(log.OpReport)
	s.logger.InfoContext(ctx, "Generating report", fields.ToSlice()...)

	// The analyzer's upper bound is exclusive
	res, err := s.runner.Run(ctx, analyzer.Request{
		DBPath:  s.dbPath,
		From:    from.Time,
		To:      to.AddDays(1).Time,
		Timeout: timeout,
	})

	report := Report{From: from, To: to, Result: res, Err: err, Duration: time.Since(start)}
	fields = fields.WithDuration(report.Duration)
	if err != nil {
		fields[log.FieldErrorKind] = report.Kind()
		if report.Kind() == "cancelled" {
			s.logger.InfoContext(ctx, "Report cancelled", fields.ToSlice()...)
		} else {
			s.logger.LogError(ctx, "Report failed", err, log.OpReport, fields)
		}
	} else {
		s.logger.InfoContext(ctx, "Report ready", append(fields.ToSlice(), log.FieldTotal, res.Total)...)
	}
	return res, err
}
