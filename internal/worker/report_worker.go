// Package worker turns queued report requests into published results.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
)

// ReportGenerator produces one report. *services.ReportService satisfies it.
type ReportGenerator interface {
	Generate(ctx context.Context, from, to core.Date) (*core.AnalyticsResult, error)
}

// ResultPublisher delivers results. *amqp.Client satisfies it.
type ResultPublisher interface {
	PublishReportResult(ctx context.Context, msg *amqp.ReportResultMessage) error
}

// ReportWorker handles report request messages
type ReportWorker struct {
	reports   ReportGenerator
	publisher ResultPublisher
	logger    *log.Logger
}

func NewReportWorker(reports ReportGenerator, publisher ResultPublisher, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportWorker{
		reports:   reports,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleReportRequest runs the requested report and publishes its outcome.
//
// Analyzer failures are published as failed results and the request is
// considered handled. An error is returned only when the request should be
// delivered again: the worker is shutting down, another report is running,
// or the result could not be published.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	start := time.Now()
	fields := log.NewFields().WithRequestID(msg.ID).WithOperation(log.OpConsume)

	from, to, err := msg.Range()
	if err != nil {
		w.logger.WarnContext(ctx, "Invalid report request", fields.WithError(err).ToSlice()...)
		return w.publish(ctx, amqp.NewReportResultMessage(msg, nil, err, "invalid_request"))
	}
	fields = fields.WithRange(from.Time, to.Time)
	w.logger.InfoContext(ctx, "Processing report request", fields.ToSlice()...)

	res, err := w.reports.Generate(ctx, from, to)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("report %s interrupted: %w", msg.ID, err)
	}
	if errors.Is(err, services.ErrReportInProgress) {
		return err
	}

	report := services.Report{From: from, To: to, Result: res, Err: err, Duration: time.Since(start)}
	if err := w.publish(ctx, amqp.NewReportResultMessage(msg, res, err, report.Kind())); err != nil {
		return err
	}

	fields = fields.WithDuration(report.Duration)
	fields[log.FieldSuccess] = err == nil
	w.logger.InfoContext(ctx, "Report request handled", fields.ToSlice()...)
	return nil
}

func (w *ReportWorker) publish(ctx context.Context, msg *amqp.ReportResultMessage) error {
	if err := w.publisher.PublishReportResult(ctx, msg); err != nil {
		return fmt.Errorf("publish result for %s: %w", msg.RequestID, err)
	}
	return nil
}
