package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

func TestParseExpense(t *testing.T) {
	tests := []struct {
		in      string
		want    core.Expense
		wantErr bool
	}{
		{"operating=1200", core.Expense{Category: core.CategoryOperating, Amount: decimal.NewFromInt(1200)}, false},
		{" Marketing = 12.5", core.Expense{Category: core.CategoryMarketing, Amount: decimal.RequireFromString("12.5")}, false},
		{"travel=10", core.Expense{}, true},
		{"operating", core.Expense{}, true},
		{"operating=-1", core.Expense{}, true},
		{"operating=1,000", core.Expense{}, true},
	}
	for _, tt := range tests {
		got, err := parseExpense(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseExpense(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && (got.Category != tt.want.Category || !got.Amount.Equal(tt.want.Amount)) {
			t.Errorf("parseExpense(%q) = %+v", tt.in, got)
		}
	}
}

func TestSaveCmdFlags(t *testing.T) {
	c := &saveCmd{}
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	c.SetFlags(fs)
	err := fs.Parse([]string{
		"-month", "2024-03", "-revenue", "1000", "-labor", "400", "-headcount", "2",
		"-expense", "operating=100", "-expense", "marketing=50",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rec, err := c.record()
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Month != "2024-03" || rec.Headcount != 2 || len(rec.Expenses) != 2 {
		t.Fatalf("record = %+v", rec)
	}
	if p := core.Derive(rec).Profit; !p.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("profit = %s, want 450", p)
	}
	if got := c.expenses.String(); got != "operating=100,marketing=50" {
		t.Fatalf("expenses flag = %q", got)
	}
}

func TestSaveCmdRecordErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  saveCmd
	}{
		{"bad month", saveCmd{month: "2024-3", revenue: "0", labor: "0", headcount: 1}},
		{"negative revenue", saveCmd{month: "2024-03", revenue: "-5", labor: "0", headcount: 1}},
		{"bad labor", saveCmd{month: "2024-03", revenue: "0", labor: "abc", headcount: 1}},
		{"zero headcount", saveCmd{month: "2024-03", revenue: "0", labor: "0", headcount: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cmd.record(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPrintMarkdownFormats(t *testing.T) {
	defer func(old string) { *format = old }(*format)

	md := "# Title\n\n| A | B |\n|---|---|\n| 1 | 2 |\n"

	*format = "markdown"
	var buf bytes.Buffer
	if err := printMarkdown(&buf, md); err != nil {
		t.Fatalf("markdown: %v", err)
	}
	if buf.String() != md {
		t.Fatalf("markdown output = %q", buf.String())
	}

	*format = "html"
	buf.Reset()
	if err := printMarkdown(&buf, md); err != nil {
		t.Fatalf("html: %v", err)
	}
	if !strings.Contains(buf.String(), "<h1>Title</h1>") || !strings.Contains(buf.String(), "<table>") {
		t.Fatalf("html output = %q", buf.String())
	}

	*format = "pdf"
	if err := printMarkdown(&buf, md); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestCommandsAgainstServer(t *testing.T) {
	var saved core.MonthlyRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/records":
			_ = json.NewDecoder(r.Body).Decode(&saved)
			saved.ID = "id-1"
			_ = json.NewEncoder(w).Encode(saved)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/records/id-1":
			_, _ = w.Write([]byte(`{"id":"id-1","deleted":true}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/reports":
			_ = json.NewEncoder(w).Encode(core.DeriveAll(core.SampleRecords()))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"record not found"}`))
		}
	}))
	defer srv.Close()

	defer func(oldURL, oldFormat string) { *serverURL, *format = oldURL, oldFormat }(*serverURL, *format)
	*serverURL = srv.URL
	*format = "markdown"

	ctx := context.Background()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)

	save := &saveCmd{month: "2024-03", revenue: "1000", labor: "400", headcount: 2}
	if got := save.Execute(ctx, fs); got != subcommands.ExitSuccess {
		t.Fatalf("save exit = %v", got)
	}
	if saved.Month != "2024-03" || !saved.LaborCost.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("server received %+v", saved)
	}

	if got := (&deleteCmd{id: "id-1"}).Execute(ctx, fs); got != subcommands.ExitSuccess {
		t.Fatalf("delete exit = %v", got)
	}
	if got := (&deleteCmd{}).Execute(ctx, fs); got != subcommands.ExitUsageError {
		t.Fatalf("delete without id exit = %v", got)
	}
	if got := (&reportsCmd{}).Execute(ctx, fs); got != subcommands.ExitSuccess {
		t.Fatalf("reports exit = %v", got)
	}
	if got := (&showCmd{month: "2099-01"}).Execute(ctx, fs); got != subcommands.ExitFailure {
		t.Fatalf("show missing month exit = %v", got)
	}
	if got := (&showCmd{month: "bad"}).Execute(ctx, fs); got != subcommands.ExitUsageError {
		t.Fatalf("show bad month exit = %v", got)
	}
}
