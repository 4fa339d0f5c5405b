package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"finboard/internal/client"
	"finboard/internal/core"
	"finboard/internal/renderer"
)

// Register adds every finctl command to c.
func Register(c *subcommands.Commander) {
	c.Register(&reportsCmd{}, "reports")
	c.Register(&showCmd{}, "reports")
	c.Register(&xlsxCmd{}, "reports")

	c.Register(&saveCmd{}, "records")
	c.Register(&deleteCmd{}, "records")
}

// A CLI invocation is short lived, so package-level flags are fine.
var (
	serverURL = flag.String("server", envOr("FINBOARD_URL", "http://localhost:8081"), "finboard server base URL")
	currency  = flag.String("currency", envOr("DISPLAY_CURRENCY", core.DefaultCurrency), "display currency (ISO 4217)")
	format    = flag.String("format", "terminal", "output format: terminal, markdown or html")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	return client.New(*serverURL)
}

func formatter() core.Formatter {
	return core.NewFormatter(*currency)
}

// printMarkdown writes md in the selected output format.
func printMarkdown(w io.Writer, md string) error {
	switch strings.ToLower(*format) {
	case "markdown", "md":
		_, err := io.WriteString(w, md)
		return err
	case "html":
		html, err := renderer.HTML(md)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err
	case "terminal", "":
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(120),
		)
		if err != nil {
			return fmt.Errorf("create terminal renderer: %w", err)
		}
		out, err := r.Render(md)
		if err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func usageError(msg string) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	return subcommands.ExitUsageError
}
