package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/subcommands"

	"ledger/internal/amqp"
	"ledger/internal/analyzer"
	"ledger/internal/core"
)

func TestParseRange(t *testing.T) {
	def := func() (core.Date, core.Date) { return core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 17) }

	tests := []struct {
		name     string
		from, to string
		want     string
		wantErr  bool
	}{
		{"defaults", "", "", "2025-03-01..2025-03-17", false},
		{"from only", "2025-03-10", "", "2025-03-10..2025-03-17", false},
		{"to only", "", "2025-03-05", "2025-03-01..2025-03-05", false},
		{"both", "2024-01-01", "2024-12-31", "2024-01-01..2024-12-31", false},
		{"reversed", "2025-04-01", "2025-03-01", "", true},
		{"from after default to", "2025-03-20", "", "", true},
		{"bad date", "2025/03/01", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := parseRange(tt.from, tt.to, def)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s..%s", from, to)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := from.String() + ".." + to.String(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReportFailureExitStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want subcommands.ExitStatus
	}{
		{"cancelled", fmt.Errorf("analyzer run cancelled: %w", context.Canceled), exitCancelled},
		{"timeout", &analyzer.Error{Kind: analyzer.KindTimeout, Msg: "analyzer exceeded 15s"}, subcommands.ExitFailure},
		{"not found", &analyzer.Error{Kind: analyzer.KindNotFound, Msg: "analyzer entry point not found"}, subcommands.ExitFailure},
		{"invalid range", core.ErrInvalidDateRange, subcommands.ExitUsageError},
		{"other", errors.New("boom"), subcommands.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reportFailure(tt.err); got != tt.want {
				t.Errorf("reportFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestResultMarkdown(t *testing.T) {
	ok := &amqp.ReportResultMessage{
		RequestID: "r1", From: "2025-01-01", To: "2025-01-31",
		Result: &core.AnalyticsResult{ByCategory: []core.CategorySum{{Name: "Food", Sum: 5}}, ByMonth: []core.MonthSum{{Month: "2025-01", Sum: 5}}, Total: 5},
	}
	if md := resultMarkdown(ok); !strings.Contains(md, "| Food | 5.00 |") {
		t.Errorf("unexpected markdown:\n%s", md)
	}

	failed := &amqp.ReportResultMessage{RequestID: "r2", Error: "analyzer exceeded 15s", Kind: "timeout"}
	if md := resultMarkdown(failed); !strings.Contains(md, "r2 failed") || !strings.Contains(md, "timeout") {
		t.Errorf("unexpected markdown:\n%s", md)
	}
}
