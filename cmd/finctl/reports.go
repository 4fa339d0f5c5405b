package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"finboard/internal/client"
	"finboard/internal/core"
	"finboard/internal/renderer"
)

type reportsCmd struct{}

func (*reportsCmd) Name() string     { return "reports" }
func (*reportsCmd) Synopsis() string { return "display every monthly report and category totals" }
func (*reportsCmd) Usage() string {
	return `finctl reports

  Fetches all derived monthly reports from the server and prints them as a table.
`
}

func (*reportsCmd) SetFlags(*flag.FlagSet) {}

func (*reportsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	reports, err := newClient().Reports(ctx)
	if err != nil {
		return fail(err)
	}
	if err := printMarkdown(os.Stdout, renderer.ReportsMarkdown(reports, formatter())); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type showCmd struct {
	month string
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display the report for one month" }
func (*showCmd) Usage() string {
	return `finctl show -month <YYYY-MM>

  Prints the stored record for a month together with its derived figures.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.month, "month", "", "month key, YYYY-MM")
}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !core.ValidMonth(c.month) {
		return usageError(core.ErrInvalidMonth.Error())
	}
	rec, err := newClient().RecordByMonth(ctx, c.month)
	if errors.Is(err, client.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "No record for %s\n", c.month)
		return subcommands.ExitFailure
	}
	if err != nil {
		return fail(err)
	}
	if err := printMarkdown(os.Stdout, renderer.RecordMarkdown(core.Derive(rec), formatter())); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type xlsxCmd struct {
	output string
}

func (*xlsxCmd) Name() string     { return "xlsx" }
func (*xlsxCmd) Synopsis() string { return "download the report workbook" }
func (*xlsxCmd) Usage() string {
	return `finctl xlsx [-o <file>]

  Downloads the reports as an Excel workbook.
`
}

func (c *xlsxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "finboard-reports.xlsx", "output file")
}

func (c *xlsxCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	body, err := newClient().DownloadXLSX(ctx)
	if err != nil {
		return fail(err)
	}
	if err := os.WriteFile(c.output, body, 0o644); err != nil {
		return fail(fmt.Errorf("write %s: %w", c.output, err))
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(body), c.output)
	return subcommands.ExitSuccess
}
