package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/odvcencio/treesync/pkg/plan"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
)

func printSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprintf(w, "✓ %s\n", msg)
}

func printWarning(w io.Writer, msg string) {
	_, _ = warningColor.Fprintf(w, "⚠ %s\n", msg)
}

func printError(w io.Writer, msg string) {
	_, _ = errorColor.Fprintf(w, "✗ %s\n", msg)
}

func printLabelValue(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "  %s: ", label)
	_, _ = valueColor.Fprintln(w, value)
}

// renderPlan prints one row per path touched by res.
func renderPlan(w io.Writer, res plan.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"PATH", "ACTION", "BLOB"})
	for _, ref := range res.Reuse {
		t.AppendRow(table.Row{ref.Path, "keep", ref.Hash.Short()})
	}
	for _, f := range res.Upload {
		t.AppendRow(table.Row{f.Path, "upload", ""})
	}
	for _, p := range res.Removed {
		t.AppendRow(table.Row{p, "delete", ""})
	}
	t.SortBy([]table.SortBy{{Name: "PATH", Mode: table.Asc}})
	t.SetStyle(table.StyleLight)
	t.Render()
	fmt.Fprintf(w, "%d upload, %d keep, %d delete\n", len(res.Upload), len(res.Reuse), len(res.Removed))
}
