package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/render"
	"ledger/internal/services"
)

const maxBodyBytes = 1 << 16

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for _, c := range s.checks {
		if err := c.Run(ctx); err != nil {
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", "checks", failed)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "failed": failed})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type statusResponse struct {
	ReportBusy      bool  `json:"report_busy"`
	TotalRequests   int64 `json:"total_requests"`
	FailedRequests  int64 `json:"failed_requests"`
	RateLimited     int64 `json:"rate_limited"`
	QueueingEnabled bool  `json:"queueing_enabled"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	m := s.tracer.GetMetrics()
	writeJSON(w, http.StatusOK, statusResponse{
		ReportBusy:      s.reports.Busy(),
		TotalRequests:   m.TotalRequests,
		FailedRequests:  m.FailedRequests,
		RateLimited:     s.limiter.Rejected(),
		QueueingEnabled: s.publisher != nil,
	})
}

type reportResponse struct {
	From       string                `json:"from"`
	To         string                `json:"to"`
	Result     *core.AnalyticsResult `json:"result"`
	DurationMs int64                 `json:"duration_ms"`
}

// handleReport runs the analyzer for the requested range and waits for it.
// The run is tied to the request: a client that disconnects cancels it.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to, err := parseRange(r, s.reports.DefaultRange)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_range")
		return
	}
	timeout, err := parseTimeout(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_timeout")
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && format != "json" && format != "markdown" {
		writeError(w, http.StatusBadRequest, "format must be json or markdown", "invalid_format")
		return
	}

	start := time.Now()
	res, err := s.reports.GenerateWithTimeout(ctx, from, to, timeout)
	if err != nil {
		report := services.Report{From: from, To: to, Err: err}
		if ctx.Err() != nil {
			// Nobody is left to read the response
			log.FromContext(ctx).InfoContext(ctx, "Report abandoned by client",
				log.NewFields().WithRange(from.Time, to.Time).ToSlice()...)
			writeError(w, http.StatusServiceUnavailable, "report cancelled", report.Kind())
			return
		}
		writeError(w, reportStatus(err), err.Error(), report.Kind())
		return
	}

	if format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, render.ReportMarkdown(from, to, res))
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		From:       from.String(),
		To:         to.String(),
		Result:     res,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// handleQueueReport publishes a report request for the worker and returns
// immediately with its ID.
func (s *Server) handleQueueReport(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "report queueing is not configured", "unavailable")
		return
	}
	from, to, err := parseRange(r, s.reports.DefaultRange)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_range")
		return
	}

	msg := amqp.NewReportRequestMessage(from, to)
	if err := s.publisher.PublishReportRequest(r.Context(), msg); err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "Failed to queue report request", err, log.OpPublish,
			log.NewFields().WithRange(from.Time, to.Time))
		writeError(w, http.StatusServiceUnavailable, "could not queue report request", "publish_failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": msg.ID, "from": msg.From, "to": msg.To})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if s.transactions == nil {
		writeError(w, http.StatusServiceUnavailable, "transactions are not available", "unavailable")
		return
	}
	var from, to core.Date
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		var err error
		from, to, err = parseRange(r, s.reports.DefaultRange)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "invalid_range")
			return
		}
	}

	list, err := s.transactions.List(r.Context(), from, to)
	if err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "Failed to list transactions", err, log.OpList, nil)
		writeError(w, http.StatusInternalServerError, "could not list transactions", "internal")
		return
	}
	out := make([]transactionJSON, 0, len(list))
	for _, t := range list {
		out = append(out, toTransactionJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

type createTransactionRequest struct {
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if s.transactions == nil {
		writeError(w, http.StatusServiceUnavailable, "transactions are not available", "unavailable")
		return
	}

	var req createTransactionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "invalid_body")
		return
	}

	in := services.TransactionInput(req)
	if _, err := in.Parse(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_transaction")
		return
	}

	t, err := s.transactions.Create(r.Context(), in)
	if err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "Failed to create transaction", err, log.OpCreate,
			log.NewFields().WithTransaction(0, in.Category, 0))
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "could not save transaction", "internal")
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(t))
}
