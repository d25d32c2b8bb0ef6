package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ledger/internal/analyzer"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// parseRange reads from/to query parameters, both inclusive. Missing values
// fall back to def.
func parseRange(r *http.Request, def func() (core.Date, core.Date)) (core.Date, core.Date, error) {
	from, to := def()
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("invalid from %q: expected yyyy-MM-dd", v)
		}
		from = d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("invalid to %q: expected yyyy-MM-dd", v)
		}
		to = d
	}
	if err := core.ValidateRange(from, to); err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("from %s is after to %s: %w", from, to, err)
	}
	return from, to, nil
}

// parseTimeout reads the optional timeout query parameter; zero means the
// runner default.
func parseTimeout(r *http.Request) (time.Duration, error) {
	v := strings.TrimSpace(r.URL.Query().Get("timeout"))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", v)
	}
	if d < config.MinAnalyzerTimeout || d > config.MaxAnalyzerTimeout {
		return 0, fmt.Errorf("timeout must be between %v and %v", config.MinAnalyzerTimeout, config.MaxAnalyzerTimeout)
	}
	return d, nil
}

// reportStatus maps a report failure to a response status.
func reportStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrReportInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidDateRange):
		return http.StatusBadRequest
	case analyzer.KindOf(err) == analyzer.KindTimeout:
		return http.StatusGatewayTimeout
	case analyzer.KindOf(err) == analyzer.KindNotFound:
		return http.StatusServiceUnavailable
	case analyzer.KindOf(err) != 0:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type transactionJSON struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		Date:        t.Date.String(),
		Amount:      t.Amount.String(),
		AmountCents: t.Amount.Cents,
		Category:    t.Category,
		Description: t.Description,
	}
}
