package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"collective/internal/preflight"
)

// field is one labelled row of a report.
type field struct {
	label string
	value string
}

// renderFields lays labelled values out under a rounded border. Headers keep
// their case. Numeric reports right align the value column.
func renderFields(labelHeader string, fields []field, numeric bool) string {
	if len(fields) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{labelHeader, "Value"})
	for _, f := range fields {
		tw.AppendRow(table.Row{f.label, f.value})
	}
	valueAlign := text.AlignLeft
	if numeric {
		valueAlign = text.AlignRight
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: valueAlign, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

type checkState int

const (
	checkPassed checkState = iota
	checkFailed
	checkSkipped
)

const checkLabelWidth = 24

func (s checkState) tag() string {
	switch s {
	case checkPassed:
		return "[OK]"
	case checkFailed:
		return "[ERROR]"
	default:
		return "[SKIP]"
	}
}

func (s checkState) colors() text.Colors {
	switch s {
	case checkPassed:
		return text.Colors{text.FgGreen}
	case checkFailed:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgYellow}
	}
}

// renderCheck formats one doctor line: an indented label column, the state
// tag and an optional detail.
func renderCheck(label string, state checkState, detail string, colorize bool) string {
	line := fmt.Sprintf("  %-*s %s", checkLabelWidth, label+":", state.tag())
	if detail != "" {
		line += " " + detail
	}
	if !colorize {
		return line
	}
	return state.colors().Sprint(line)
}

// renderCheckResult formats a preflight result. The ledger check is reported
// as skipped when the doctor runs offline.
func renderCheckResult(result preflight.Result, offline, colorize bool) string {
	switch {
	case offline && result.Name == preflight.LedgerCheck:
		return renderCheck(result.Name, checkSkipped, "skipped (--offline)", colorize)
	case result.Passed:
		return renderCheck(result.Name, checkPassed, result.Detail, colorize)
	default:
		return renderCheck(result.Name, checkFailed, result.Detail, colorize)
	}
}

func renderBanner(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(line))
	if colorize {
		blue := text.Colors{text.FgBlue}
		return []string{blue.Sprint(line), blue.Sprint(rule)}
	}
	return []string{line, rule}
}

// shouldColorize reports whether w is an interactive terminal.
func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeJSON prints v as indented JSON for scripts consuming --json output.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
