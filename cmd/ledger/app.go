package main

import (
	"fmt"
	"os"
	"time"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/render"
	"ledger/internal/storage"
)

var timeNow = time.Now

// app lazily builds the pieces a subcommand needs.
type app struct {
	verbose bool

	cfg    *config.Config
	logger *log.Logger
	repo   *storage.SQLiteRepository
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// log writes to stderr so stdout stays clean for reports.
func (a *app) log() *log.Logger {
	if a.logger != nil {
		return a.logger
	}
	level := "warn"
	if a.cfg != nil && a.cfg.LogLevel != "" {
		level = a.cfg.LogLevel
	}
	if a.verbose {
		level = "debug"
	}
	a.logger = cli.SetupLogger(level, os.Stderr).WithComponent(log.ComponentCLI)
	return a.logger
}

func (a *app) store() (*storage.SQLiteRepository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	repo, err := storage.NewSQLiteRepository(cfg.DBPath, a.log())
	if err != nil {
		return nil, err
	}
	a.repo = repo
	return repo, nil
}

func (a *app) close() {
	if a.repo != nil {
		a.repo.Close()
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

func printMarkdown(md string, raw bool) {
	if raw {
		fmt.Print(md)
		return
	}
	fmt.Print(render.Terminal(md, render.StyleAuto))
}

// parseRange resolves optional -from/-to flags. With both empty it returns
// def(); with only one set the other falls back to the matching end of def.
func parseRange(from, to string, def func() (core.Date, core.Date)) (core.Date, core.Date, error) {
	dFrom, dTo := def()
	if from != "" {
		d, err := core.ParseDate(from)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("invalid -from %q: %w", from, err)
		}
		dFrom = d
	}
	if to != "" {
		d, err := core.ParseDate(to)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("invalid -to %q: %w", to, err)
		}
		dTo = d
	}
	if err := core.ValidateRange(dFrom, dTo); err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("-from %s is after -to %s: %w", dFrom, dTo, err)
	}
	return dFrom, dTo, nil
}
