// Command ledger-analyzer aggregates ledger transactions for a period and
// prints the result as JSON.
//
// Usage:
//
//	ledger-analyzer --db <finance.db> --from <yyyy-MM-dd> --to <yyyy-MM-dd>
//
// Transactions with from <= Date < to are included. Exit status is 1 when
// the database file does not exist, 2 on usage or read errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

const (
	exitMissingDB = 1
	exitReadError = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ledger-analyzer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "Path to finance.db")
	fromS := fs.String("from", "", "Start of the period, included (yyyy-MM-dd)")
	toS := fs.String("to", "", "End of the period, excluded (yyyy-MM-dd)")
	if err := fs.Parse(args); err != nil {
		return exitReadError
	}
	if *dbPath == "" || *fromS == "" || *toS == "" {
		fmt.Fprintln(stderr, "--db, --from and --to are required")
		return exitReadError
	}

	from, err := core.ParseDate(*fromS)
	if err != nil {
		fmt.Fprintf(stderr, "invalid --from %q: %v\n", *fromS, err)
		return exitReadError
	}
	to, err := core.ParseDate(*toS)
	if err != nil {
		fmt.Fprintf(stderr, "invalid --to %q: %v\n", *toS, err)
		return exitReadError
	}

	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(firstNonEmpty(os.Getenv("LEDGER_LOG_LEVEL"), "warn"))
	logCfg.Output = stderr
	logCfg.Component = log.ComponentAnalyzer
	logger := log.New(logCfg)

	repo, err := storage.OpenReadOnly(*dbPath, logger)
	if errors.Is(err, storage.ErrDBNotFound) {
		fmt.Fprintf(stderr, "database file not found: %s\n", *dbPath)
		return exitMissingDB
	}
	if err != nil {
		fmt.Fprintf(stderr, "read database: %v\n", err)
		return exitReadError
	}
	defer repo.Close()

	res, err := repo.Summarize(ctx, from, to)
	if err != nil {
		fmt.Fprintf(stderr, "read database: %v\n", err)
		return exitReadError
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(stderr, "write result: %v\n", err)
		return exitReadError
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
