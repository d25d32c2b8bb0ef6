// Package storage persists ledger transactions in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"

	_ "modernc.org/sqlite"
)

// DefaultPath is the database location relative to the application directory.
var DefaultPath = filepath.Join("Database", "finance.db")

var (
	ErrNotFound   = errors.New("transaction not found")
	ErrReadOnly   = errors.New("repository is read-only")
	ErrDBNotFound = errors.New("database file not found")
)

const selectColumns = "SELECT Id, Date, Amount, Category, Description FROM Transactions"

type SQLiteRepository struct {
	db       *sql.DB
	path     string
	readOnly bool
	logger   *log.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if dbPath == "" {
		dbPath = DefaultPath
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newRepository(db, dbPath, false, logger), nil
}

// OpenReadOnly opens an existing database without creating or migrating it.
func OpenReadOnly(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDBNotFound, dbPath)
		}
		return nil, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrDBNotFound, dbPath)
	}

	dsn := "file:" + filepath.ToSlash(dbPath) + "?mode=ro"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return newRepository(db, dbPath, true, logger), nil
}

func newRepository(db *sql.DB, path string, readOnly bool, logger *log.Logger) *SQLiteRepository {
	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{
		db:       db,
		path:     path,
		readOnly: readOnly,
		logger:   logger.WithComponent(log.ComponentStorage),
	}
}

// Path returns the database file path as given to the constructor.
func (r *SQLiteRepository) Path() string {
	return r.path
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Add validates and inserts t, storing the new ID in t.ID.
func (r *SQLiteRepository) Add(ctx context.Context, t *core.Transaction) error {
	if r.readOnly {
		return ErrReadOnly
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO Transactions (Date, Amount, Category, Description) VALUES (?, ?, ?, ?)",
		t.Date.String(), t.Amount.Units(), strings.TrimSpace(t.Category), strings.TrimSpace(t.Description))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted id: %w", err)
	}
	t.ID = id

	r.logger.InfoContext(ctx, "Transaction saved", log.NewFields().
		WithTransaction(t.ID, t.Category, t.Amount.Cents).
		WithOperation(log.OpCreate).ToSlice()...)
	return nil
}

// Update overwrites the stored row with t's ID.
func (r *SQLiteRepository) Update(ctx context.Context, t core.Transaction) error {
	if r.readOnly {
		return ErrReadOnly
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE Transactions SET Date = ?, Amount = ?, Category = ?, Description = ? WHERE Id = ?",
		t.Date.String(), t.Amount.Units(), strings.TrimSpace(t.Category), strings.TrimSpace(t.Description), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if err := expectRow(res, t.ID); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Transaction updated", log.NewFields().
		WithTransaction(t.ID, t.Category, t.Amount.Cents).
		WithOperation(log.OpUpdate).ToSlice()...)
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if r.readOnly {
		return ErrReadOnly
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM Transactions WHERE Id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if err := expectRow(res, id); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Transaction deleted", log.FieldTxID, id, log.FieldOperation, log.OpDelete)
	return nil
}

// Get returns the transaction with the given ID.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" WHERE Id = ?", id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	list, err := scanTransactions(rows)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(list) == 0 {
		return core.Transaction{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return list[0], nil
}

// GetAll returns every transaction, newest first.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY Date DESC, Id DESC")
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTransactions(rows)
}

// GetByDateRange returns transactions dated from..to, both days included,
// newest first.
func (r *SQLiteRepository) GetByDateRange(ctx context.Context, from, to core.Date) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+" WHERE Date >= ? AND Date < ? ORDER BY Date DESC, Id DESC",
		from.String(), to.AddDays(1).String())
	if err != nil {
		return nil, fmt.Errorf("list transactions %s..%s: %w", from, to, err)
	}
	return scanTransactions(rows)
}

// Summarize aggregates amounts with from <= Date < to: per category sorted by
// name, per month ascending, and the grand total.
func (r *SQLiteRepository) Summarize(ctx context.Context, from, to core.Date) (*core.AnalyticsResult, error) {
	start := time.Now()
	args := []any{from.String(), to.String()}
	res := &core.AnalyticsResult{}

	err := r.withReadTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT Category, SUM(Amount) FROM Transactions WHERE Date >= ? AND Date < ? GROUP BY Category ORDER BY Category", args...)
		if err != nil {
			return fmt.Errorf("sum by category: %w", err)
		}
		for rows.Next() {
			var c core.CategorySum
			if err := rows.Scan(&c.Name, &c.Sum); err != nil {
				rows.Close()
				return fmt.Errorf("scan category sum: %w", err)
			}
			res.ByCategory = append(res.ByCategory, c)
		}
		if err := closeRows(rows); err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx,
			"SELECT substr(Date, 1, 7) AS Month, SUM(Amount) FROM Transactions WHERE Date >= ? AND Date < ? GROUP BY Month ORDER BY Month", args...)
		if err != nil {
			return fmt.Errorf("sum by month: %w", err)
		}
		for rows.Next() {
			var m core.MonthSum
			if err := rows.Scan(&m.Month, &m.Sum); err != nil {
				rows.Close()
				return fmt.Errorf("scan month sum: %w", err)
			}
			res.ByMonth = append(res.ByMonth, m)
		}
		if err := closeRows(rows); err != nil {
			return err
		}

		var total sql.NullFloat64
		if err := tx.QueryRowContext(ctx,
			"SELECT SUM(Amount) FROM Transactions WHERE Date >= ? AND Date < ?", args...).Scan(&total); err != nil {
			return fmt.Errorf("sum total: %w", err)
		}
		res.Total = total.Float64
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Normalize()
	r.logger.DebugContext(ctx, "Transactions summarized", append(log.NewFields().
		WithRange(from.Time, to.Time).
		WithDuration(time.Since(start)).
		WithOperation(log.OpReport).ToSlice(), log.FieldTotal, res.Total)...)
	return res, nil
}

func (r *SQLiteRepository) withReadTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	list := []core.Transaction{}
	for rows.Next() {
		var (
			t      core.Transaction
			date   string
			amount float64
			desc   sql.NullString
		)
		if err := rows.Scan(&t.ID, &date, &amount, &t.Category, &desc); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := core.ParseDate(firstDay(date))
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("transaction %d has invalid date %q: %w", t.ID, date, err)
		}
		t.Date = d
		t.Amount = core.MoneyFromUnits(amount)
		t.Description = desc.String
		list = append(list, t)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return list, nil
}

// firstDay keeps the yyyy-MM-dd prefix of ISO-8601 values written by other
// tools with a time component.
func firstDay(s string) string {
	if len(s) > len(core.DateLayout) {
		return s[:len(core.DateLayout)]
	}
	return s
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate rows: %w", err)
	}
	return rows.Close()
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}
