package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"ledger/internal/amqp"
	"ledger/internal/analyzer"
	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/render"
	"ledger/internal/services"
)

// exitCancelled is the conventional status of a process stopped by SIGINT.
const exitCancelled subcommands.ExitStatus = 130

type reportCmd struct {
	app     *app
	from    string
	to      string
	timeout time.Duration
	json    bool
	raw     bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "run the analyzer and print spending by category and month" }
func (*reportCmd) Usage() string {
	return `ledger report [-from <yyyy-MM-dd>] [-to <yyyy-MM-dd>] [-timeout <duration>] [-json | -raw]

  Runs the external analyzer over the period, both days included. The period
  defaults to the current month up to today. Press Ctrl-C to abort; the
  analyzer process is stopped before the command exits.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "First day (default: first day of this month)")
	f.StringVar(&c.to, "to", "", "Last day (default: today)")
	f.DurationVar(&c.timeout, "timeout", 0, "Analyzer timeout (default: LEDGER_ANALYZER_TIMEOUT)")
	f.BoolVar(&c.json, "json", false, "Print the analyzer result as JSON")
	f.BoolVar(&c.raw, "raw", false, "Print markdown without terminal styling")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.app.config()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	if c.timeout < 0 {
		fail("-timeout must be positive")
		return subcommands.ExitUsageError
	}

	svc := services.NewReportService(cli.NewRunner(cfg, c.app.log()), cfg.DBPath, c.app.log())
	from, to, err := parseRange(c.from, c.to, svc.DefaultRange)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitUsageError
	}

	res, err := svc.GenerateWithTimeout(ctx, from, to, c.timeout)
	if err != nil {
		return reportFailure(err)
	}

	if c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(render.ReportMarkdown(from, to, res), c.raw)
	return subcommands.ExitSuccess
}

// reportFailure prints err the way a user should see it and picks the exit
// status.
func reportFailure(err error) subcommands.ExitStatus {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Report cancelled.")
		return exitCancelled
	}

	var aerr *analyzer.Error
	if errors.As(err, &aerr) {
		switch aerr.Kind {
		case analyzer.KindNotFound:
			fail("%v (set LEDGER_ANALYZER_ENTRYPOINT or install the analyzer)", aerr)
		case analyzer.KindTimeout:
			fail("%v (try a longer -timeout)", aerr)
		default:
			fail("%v", aerr)
		}
		return subcommands.ExitFailure
	}

	if errors.Is(err, core.ErrInvalidDateRange) {
		fail("%v", err)
		return subcommands.ExitUsageError
	}
	fail("%v", err)
	return subcommands.ExitFailure
}

type requestCmd struct {
	app  *app
	from string
	to   string
}

func (*requestCmd) Name() string     { return "request" }
func (*requestCmd) Synopsis() string { return "queue a report for ledger-worker" }
func (*requestCmd) Usage() string {
	return `ledger request [-from <yyyy-MM-dd>] [-to <yyyy-MM-dd>]

  Publishes a report request over AMQP and prints its ID. Use "ledger results"
  to read the outcome.
`
}

func (c *requestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "First day (default: first day of this month)")
	f.StringVar(&c.to, "to", "", "Last day (default: today)")
}

func (c *requestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.app.config()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	from, to, err := parseRange(c.from, c.to, func() (core.Date, core.Date) {
		today := core.DateOf(timeNow())
		return today.MonthStart(), today
	})
	if err != nil {
		fail("%v", err)
		return subcommands.ExitUsageError
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPResultQueue, c.app.log())
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer client.Close()

	msg := amqp.NewReportRequestMessage(from, to)
	if err := client.PublishReportRequest(ctx, msg); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Println(msg.ID)
	return subcommands.ExitSuccess
}

var errEnough = errors.New("result limit reached")

type resultsCmd struct {
	app   *app
	count int
	raw   bool
}

func (*resultsCmd) Name() string     { return "results" }
func (*resultsCmd) Synopsis() string { return "print report results published by ledger-worker" }
func (*resultsCmd) Usage() string {
	return `ledger results [-n <count>] [-raw]

  Consumes report results and prints them until -n results were read or
  Ctrl-C is pressed.
`
}

func (c *resultsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.count, "n", 1, "Number of results to read, 0 for no limit")
	f.BoolVar(&c.raw, "raw", false, "Print markdown without terminal styling")
}

func (c *resultsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.app.config()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPResultQueue, c.app.log())
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	read := 0
	err = client.ConsumeReportResults(ctx, func(_ context.Context, msg *amqp.ReportResultMessage) error {
		if c.count > 0 && read >= c.count {
			// Leave it queued for the next reader
			return errEnough
		}
		printMarkdown(resultMarkdown(msg), c.raw)
		read++
		if c.count > 0 && read >= c.count {
			cancel()
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func resultMarkdown(msg *amqp.ReportResultMessage) string {
	if msg.Failed() {
		return fmt.Sprintf("# Report %s failed\n\n`%s`: %s\n", msg.RequestID, msg.Kind, msg.Error)
	}
	from, errFrom := core.ParseDate(msg.From)
	to, errTo := core.ParseDate(msg.To)
	if errFrom != nil || errTo != nil {
		return fmt.Sprintf("# Report %s\n\n_Invalid period %s to %s._\n", msg.RequestID, msg.From, msg.To)
	}
	return render.ReportMarkdown(from, to, msg.Result)
}
