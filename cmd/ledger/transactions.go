package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"ledger/internal/core"
	"ledger/internal/render"
	"ledger/internal/services"
)

type txFlags struct {
	date        string
	amount      string
	category    string
	description string
}

func (t *txFlags) set(f *flag.FlagSet, dateDefault string) {
	f.StringVar(&t.date, "date", dateDefault, "Transaction date (yyyy-MM-dd)")
	f.StringVar(&t.amount, "amount", "", "Positive amount, '.' or ',' as decimal separator")
	f.StringVar(&t.category, "category", "", "Category")
	f.StringVar(&t.description, "description", "", "Optional description")
}

func (t *txFlags) input() services.TransactionInput {
	return services.TransactionInput{Date: t.date, Amount: t.amount, Category: t.category, Description: t.description}
}

func (a *app) transactions() (*services.TransactionService, error) {
	repo, err := a.store()
	if err != nil {
		return nil, err
	}
	return services.NewTransactionService(repo, a.log()), nil
}

type addCmd struct {
	app *app
	tx  txFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a new transaction" }
func (*addCmd) Usage() string {
	return `ledger add -amount <amount> -category <category> [-date <yyyy-MM-dd>] [-description <text>]

  Records a transaction. The date defaults to today.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	c.tx.set(f, core.DateOf(timeNow()).String())
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, err := c.app.transactions()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	t, err := svc.Create(ctx, c.tx.input())
	if err != nil {
		fail("%v", err)
		return subcommands.ExitUsageError
	}
	fmt.Printf("Added transaction %d: %s %s %s\n", t.ID, t.Date, t.Amount, t.Category)
	return subcommands.ExitSuccess
}

type listCmd struct {
	app  *app
	from string
	to   string
	raw  bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list transactions" }
func (*listCmd) Usage() string {
	return `ledger list [-from <yyyy-MM-dd>] [-to <yyyy-MM-dd>] [-raw]

  Lists transactions, newest first. Both bounds are included.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "First day to include")
	f.StringVar(&c.to, "to", "", "Last day to include")
	f.BoolVar(&c.raw, "raw", false, "Print markdown without terminal styling")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var from, to core.Date
	if c.from != "" || c.to != "" {
		var err error
		from, to, err = parseRange(c.from, c.to, func() (core.Date, core.Date) {
			today := core.DateOf(timeNow())
			return core.NewDate(1970, 1, 1), today
		})
		if err != nil {
			fail("%v", err)
			return subcommands.ExitUsageError
		}
	}

	svc, err := c.app.transactions()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	list, err := svc.List(ctx, from, to)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	printMarkdown(render.TransactionsMarkdown(list), c.raw)
	return subcommands.ExitSuccess
}

type updateCmd struct {
	app *app
	id  int64
	tx  txFlags
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "change an existing transaction" }
func (*updateCmd) Usage() string {
	return `ledger update -id <id> [-date <yyyy-MM-dd>] [-amount <amount>] [-category <category>] [-description <text>]

  Changes the given fields of a transaction and keeps the others.
`
}

func (c *updateCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Transaction ID")
	c.tx.set(f, "")
}

func (c *updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		fail("-id is required")
		return subcommands.ExitUsageError
	}
	svc, err := c.app.transactions()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	t, err := svc.Patch(ctx, c.id, c.tx.input())
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Updated transaction %d: %s %s %s\n", t.ID, t.Date, t.Amount, t.Category)
	return subcommands.ExitSuccess
}

type deleteCmd struct {
	app *app
	id  int64
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete a transaction" }
func (*deleteCmd) Usage() string {
	return `ledger delete -id <id>
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Transaction ID")
}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		fail("-id is required")
		return subcommands.ExitUsageError
	}
	svc, err := c.app.transactions()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	if err := svc.Delete(ctx, c.id); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted transaction %d\n", c.id)
	return subcommands.ExitSuccess
}
