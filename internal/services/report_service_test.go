package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ledger/internal/analyzer"
	"ledger/internal/core"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []analyzer.Request
	result  *core.AnalyticsResult
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, req analyzer.Request) (*core.AnalyticsResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, fmt.Errorf("analyzer run cancelled: %w", context.Cause(ctx))
		}
	}
	return f.result, f.err
}

func (f *fakeRunner) requests() []analyzer.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]analyzer.Request(nil), f.calls...)
}

func TestReportService_Generate(t *testing.T) {
	want := &core.AnalyticsResult{ByCategory: []core.CategorySum{}, ByMonth: []core.MonthSum{}, Total: 0}
	runner := &fakeRunner{result: want}
	svc := NewReportService(runner, "/data/finance.db", nil)

	got, err := svc.Generate(context.Background(), core.NewDate(2025, 2, 1), core.NewDate(2025, 2, 28))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected runner result to be returned unchanged")
	}

	calls := runner.requests()
	if len(calls) != 1 {
		t.Fatalf("expected 1 run, got %d", len(calls))
	}
	req := calls[0]
	if req.DBPath != "/data/finance.db" {
		t.Errorf("db path = %q", req.DBPath)
	}
	if req.From.Format(core.DateLayout) != "2025-02-01" || req.To.Format(core.DateLayout) != "2025-03-01" {
		t.Errorf("range = %s..%s, want 2025-02-01..2025-03-01", req.From.Format(core.DateLayout), req.To.Format(core.DateLayout))
	}
	if req.Timeout != 0 {
		t.Errorf("timeout = %v, want runner default", req.Timeout)
	}
	if svc.Busy() {
		t.Error("service should not be busy after Generate returns")
	}
}

func TestReportService_GenerateWithTimeout(t *testing.T) {
	runner := &fakeRunner{result: &core.AnalyticsResult{}}
	svc := NewReportService(runner, "db", nil)
	if _, err := svc.GenerateWithTimeout(context.Background(), core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 1), 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := runner.requests()[0].Timeout; got != 3*time.Second {
		t.Fatalf("timeout = %v, want 3s", got)
	}
}

func TestReportService_InvalidRange(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewReportService(runner, "db", nil)

	_, err := svc.Generate(context.Background(), core.NewDate(2025, 3, 1), core.NewDate(2025, 2, 1))
	if !errors.Is(err, core.ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	if len(runner.requests()) != 0 {
		t.Fatal("runner must not be called for an invalid range")
	}
}

func TestReportService_OneAtATime(t *testing.T) {
	runner := &fakeRunner{
		result:  &core.AnalyticsResult{},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc := NewReportService(runner, "db", nil)
	from, to := core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), from, to)
		done <- err
	}()
	<-runner.started

	if !svc.Busy() {
		t.Fatal("service should be busy while a report runs")
	}
	if _, err := svc.Generate(context.Background(), from, to); !errors.Is(err, ErrReportInProgress) {
		t.Fatalf("expected ErrReportInProgress, got %v", err)
	}

	close(runner.release)
	if err := <-done; err != nil {
		t.Fatalf("first report failed: %v", err)
	}
	if svc.Busy() {
		t.Fatal("service should be idle after the report finished")
	}

	runner.started = nil
	if _, err := svc.Generate(context.Background(), from, to); err != nil {
		t.Fatalf("a new report should be accepted once idle: %v", err)
	}
}

func TestReportService_Cancellation(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := NewReportService(runner, "db", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(ctx, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 2))
		done <- err
	}()
	<-runner.started
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if svc.Busy() {
		t.Fatal("busy flag must be cleared after cancellation")
	}
}

func TestReportService_PropagatesAnalyzerError(t *testing.T) {
	want := &analyzer.Error{Kind: analyzer.KindNonZeroExit, ExitCode: 2, Msg: "analyzer exited with code 2: boom"}
	svc := NewReportService(&fakeRunner{err: want}, "db", nil)

	_, err := svc.Generate(context.Background(), core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 2))
	var aerr *analyzer.Error
	if !errors.As(err, &aerr) || aerr != want {
		t.Fatalf("expected the analyzer error unchanged, got %v", err)
	}
}

func TestReportService_DefaultRange(t *testing.T) {
	svc := NewReportService(&fakeRunner{}, "db", nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 17, 22, 30, 0, 0, time.UTC) }

	from, to := svc.DefaultRange()
	if from.String() != "2025-03-01" || to.String() != "2025-03-17" {
		t.Fatalf("DefaultRange() = %s..%s", from, to)
	}
}

func TestReport_Kind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("analyzer run cancelled: %w", context.Canceled), "cancelled"},
		{&analyzer.Error{Kind: analyzer.KindTimeout}, "timeout"},
		{&analyzer.Error{Kind: analyzer.KindNotFound}, "not_found"},
		{&analyzer.Error{Kind: analyzer.KindParse}, "parse_error"},
		{fmt.Errorf("report: %w", core.ErrInvalidDateRange), "invalid_range"},
		{ErrReportInProgress, "busy"},
		{errors.New("disk on fire"), "internal"},
	}
	for _, tt := range tests {
		if got := (Report{Err: tt.err}).Kind(); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
