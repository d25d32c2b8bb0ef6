package services

import (
	"context"
	"fmt"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
)

// TransactionStore is the persistence the service needs.
// *storage.SQLiteRepository satisfies it.
type TransactionStore interface {
	Add(ctx context.Context, t *core.Transaction) error
	Update(ctx context.Context, t core.Transaction) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (core.Transaction, error)
	GetAll(ctx context.Context) ([]core.Transaction, error)
	GetByDateRange(ctx context.Context, from, to core.Date) ([]core.Transaction, error)
}

// TransactionInput is a transaction as typed by a user: date as yyyy-MM-dd and
// amount with either decimal separator.
type TransactionInput struct {
	Date        string
	Amount      string
	Category    string
	Description string
}

// Parse converts in to a validated transaction.
func (in TransactionInput) Parse() (core.Transaction, error) {
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid date %q: %w", in.Date, err)
	}
	cents, err := core.ParseDecimalToCents(in.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid amount %q: %w", in.Amount, err)
	}
	t := core.Transaction{
		Date:        date,
		Amount:      core.Money{Cents: cents},
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// TransactionService orchestrates ledger edits on top of the store
type TransactionService struct {
	store  TransactionStore
	logger *log.Logger
}

func NewTransactionService(store TransactionStore, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionService{store: store, logger: logger.WithComponent(log.ComponentStorage)}
}

// Create parses and stores a new transaction.
func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	t, err := in.Parse()
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.Add(ctx, &t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	return t, nil
}

// Patch changes the non-empty fields of in on transaction id.
func (s *TransactionService) Patch(ctx context.Context, id int64, in TransactionInput) (core.Transaction, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	merged := TransactionInput{
		Date:        current.Date.String(),
		Amount:      current.Amount.String(),
		Category:    current.Category,
		Description: current.Description,
	}
	if in.Date != "" {
		merged.Date = in.Date
	}
	if in.Amount != "" {
		merged.Amount = in.Amount
	}
	if in.Category != "" {
		merged.Category = in.Category
	}
	if in.Description != "" {
		merged.Description = in.Description
	}

	t, err := merged.Parse()
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = id
	if err := s.store.Update(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// List returns all transactions, or those in from..to when both are set.
func (s *TransactionService) List(ctx context.Context, from, to core.Date) ([]core.Transaction, error) {
	if from.IsZero() && to.IsZero() {
		return s.store.GetAll(ctx)
	}
	if err := core.ValidateRange(from, to); err != nil {
		return nil, err
	}
	list, err := s.store.GetByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Listed transactions", append(log.NewFields().
		WithRange(from.Time, to.Time).
		WithOperation(log.OpList).ToSlice(), "count", len(list))...)
	return list, nil
}
