package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"finboard/internal/core"
)

// expenseList collects repeated -expense category=amount flags.
type expenseList []core.Expense

func (l *expenseList) String() string {
	parts := make([]string, 0, len(*l))
	for _, e := range *l {
		parts = append(parts, string(e.Category)+"="+e.Amount.String())
	}
	return strings.Join(parts, ",")
}

func (l *expenseList) Set(v string) error {
	e, err := parseExpense(v)
	if err != nil {
		return err
	}
	*l = append(*l, e)
	return nil
}

func parseExpense(v string) (core.Expense, error) {
	cat, amount, ok := strings.Cut(v, "=")
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %q: want category=amount", v)
	}
	c := core.Category(strings.ToLower(strings.TrimSpace(cat)))
	if !c.Valid() {
		return core.Expense{}, fmt.Errorf("expense %q: unknown category %q", v, cat)
	}
	d, err := core.ParseAmount(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %q: %w", v, err)
	}
	return core.Expense{Category: c, Amount: d}, nil
}

type saveCmd struct {
	month     string
	revenue   string
	labor     string
	headcount int
	expenses  expenseList
}

func (*saveCmd) Name() string     { return "save" }
func (*saveCmd) Synopsis() string { return "create or replace the record of a month" }
func (*saveCmd) Usage() string {
	return `finctl save -month <YYYY-MM> -revenue <amount> -labor <amount> -headcount <n> [-expense category=amount]...

  Upserts a monthly record. Categories are personnel, operating and marketing.
  Saving a month that already exists replaces its figures and keeps its id.
`
}

func (c *saveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.month, "month", "", "month key, YYYY-MM")
	f.StringVar(&c.revenue, "revenue", "0", "revenue for the month")
	f.StringVar(&c.labor, "labor", "0", "total labor cost")
	f.IntVar(&c.headcount, "headcount", 1, "number of staff")
	f.Var(&c.expenses, "expense", "expense line as category=amount (repeatable)")
}

func (c *saveCmd) record() (core.MonthlyRecord, error) {
	if !core.ValidMonth(c.month) {
		return core.MonthlyRecord{}, core.ErrInvalidMonth
	}
	revenue, err := core.ParseAmount(c.revenue)
	if err != nil {
		return core.MonthlyRecord{}, fmt.Errorf("revenue: %w", err)
	}
	labor, err := core.ParseAmount(c.labor)
	if err != nil {
		return core.MonthlyRecord{}, fmt.Errorf("labor: %w", err)
	}
	if c.headcount < 1 {
		return core.MonthlyRecord{}, fmt.Errorf("headcount must be at least 1")
	}
	expenses := append([]core.Expense{}, c.expenses...)
	return core.MonthlyRecord{
		Month:     c.month,
		Revenue:   revenue,
		LaborCost: labor,
		Headcount: c.headcount,
		Expenses:  expenses,
	}, nil
}

func (c *saveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rec, err := c.record()
	if err != nil {
		return usageError(err.Error())
	}
	saved, err := newClient().SaveRecord(ctx, rec)
	if err != nil {
		return fail(err)
	}
	rep := core.Derive(saved)
	fmt.Printf("Saved %s (id %s), profit %s\n", saved.Month, saved.ID, formatter().Format(rep.Profit))
	return subcommands.ExitSuccess
}

type deleteCmd struct {
	id string
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete a record by id" }
func (*deleteCmd) Usage() string {
	return `finctl delete -id <record id>

  Removes a record. Deleting an unknown id succeeds without changes.
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "record id")
}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.id) == "" {
		return usageError("-id is required")
	}
	res, err := newClient().DeleteRecord(ctx, c.id)
	if err != nil {
		return fail(err)
	}
	if res.Deleted {
		fmt.Printf("Deleted record %s\n", res.ID)
	} else {
		fmt.Printf("No record with id %s\n", res.ID)
	}
	return subcommands.ExitSuccess
}
