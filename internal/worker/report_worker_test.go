package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ledger/internal/amqp"
	"ledger/internal/analyzer"
	"ledger/internal/core"
	"ledger/internal/services"
)

type fakeGenerator struct {
	calls  int
	from   core.Date
	to     core.Date
	result *core.AnalyticsResult
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, from, to core.Date) (*core.AnalyticsResult, error) {
	f.calls++
	f.from, f.to = from, to
	return f.result, f.err
}

type fakePublisher struct {
	published []*amqp.ReportResultMessage
	err       error
}

func (f *fakePublisher) PublishReportResult(ctx context.Context, msg *amqp.ReportResultMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func request(from, to string) *amqp.ReportRequestMessage {
	return &amqp.ReportRequestMessage{ID: "req-1", From: from, To: to}
}

func TestHandleReportRequest_Success(t *testing.T) {
	gen := &fakeGenerator{result: &core.AnalyticsResult{Total: 42}}
	pub := &fakePublisher{}
	w := NewReportWorker(gen, pub, nil)

	if err := w.HandleReportRequest(context.Background(), request("2025-01-01", "2025-01-31")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 1 || gen.from.String() != "2025-01-01" || gen.to.String() != "2025-01-31" {
		t.Fatalf("unexpected generate call: %+v", gen)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published result, got %d", len(pub.published))
	}
	msg := pub.published[0]
	if msg.RequestID != "req-1" || msg.Failed() || msg.Result.Total != 42 {
		t.Fatalf("unexpected result message %+v", msg)
	}
}

func TestHandleReportRequest_AnalyzerFailureIsPublished(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"timeout", &analyzer.Error{Kind: analyzer.KindTimeout, Msg: "analyzer exceeded 15s"}, "timeout"},
		{"exit", &analyzer.Error{Kind: analyzer.KindNonZeroExit, ExitCode: 2, Msg: "analyzer exited with code 2"}, "non_zero_exit"},
		{"missing", &analyzer.Error{Kind: analyzer.KindNotFound, Msg: "analyzer entry point not found"}, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{err: tt.err}
			pub := &fakePublisher{}
			w := NewReportWorker(gen, pub, nil)

			if err := w.HandleReportRequest(context.Background(), request("2025-01-01", "2025-01-31")); err != nil {
				t.Fatalf("analyzer failures must not be redelivered: %v", err)
			}
			if len(pub.published) != 1 {
				t.Fatalf("expected failure to be published")
			}
			msg := pub.published[0]
			if !msg.Failed() || msg.Kind != tt.kind || msg.Error != tt.err.Error() {
				t.Fatalf("unexpected message %+v", msg)
			}
		})
	}
}

func TestHandleReportRequest_InvalidRange(t *testing.T) {
	gen := &fakeGenerator{}
	pub := &fakePublisher{}
	w := NewReportWorker(gen, pub, nil)

	if err := w.HandleReportRequest(context.Background(), request("2025-02-01", "2025-01-01")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not run for an invalid request")
	}
	if len(pub.published) != 1 || pub.published[0].Kind != "invalid_request" {
		t.Fatalf("expected invalid_request result, got %+v", pub.published)
	}
}

func TestHandleReportRequest_Redelivery(t *testing.T) {
	t.Run("shutdown", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		gen := &fakeGenerator{err: fmt.Errorf("analyzer run cancelled: %w", context.Canceled)}
		pub := &fakePublisher{}
		w := NewReportWorker(gen, pub, nil)

		err := w.HandleReportRequest(ctx, request("2025-01-01", "2025-01-31"))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation error, got %v", err)
		}
		if len(pub.published) != 0 {
			t.Fatal("nothing should be published for an interrupted report")
		}
	})

	t.Run("busy", func(t *testing.T) {
		w := NewReportWorker(&fakeGenerator{err: services.ErrReportInProgress}, &fakePublisher{}, nil)
		err := w.HandleReportRequest(context.Background(), request("2025-01-01", "2025-01-31"))
		if !errors.Is(err, services.ErrReportInProgress) {
			t.Fatalf("expected ErrReportInProgress, got %v", err)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		pubErr := errors.New("circuit breaker is open")
		w := NewReportWorker(&fakeGenerator{result: &core.AnalyticsResult{}}, &fakePublisher{err: pubErr}, nil)
		err := w.HandleReportRequest(context.Background(), request("2025-01-01", "2025-01-31"))
		if !errors.Is(err, pubErr) {
			t.Fatalf("expected publish error, got %v", err)
		}
	})
}
