package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/kontra-dev/kontra/internal/result"
)

// Colors and icons mirror the teacher's box/severity styling, adapted from
// pass/fail/warning-severity to Kontra's blocking/warning/info rule
// severities.
var (
	colorSafe    = lipgloss.Color("#04B575")
	colorWarning = lipgloss.Color("#FFB800")
	colorDanger  = lipgloss.Color("#FF4040")
	colorMuted   = lipgloss.Color("#666666")

	titleStyle = lipgloss.NewStyle().Bold(true)
	safeText   = lipgloss.NewStyle().Foreground(colorSafe).Bold(true)
	warnText   = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	dangerText = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	mutedText  = lipgloss.NewStyle().Foreground(colorMuted)
)

const (
	iconPass = "✓"
	iconFail = "✗"
)

// render writes out in the requested format ("json" or anything else,
// treated as the default rich/text rendering).
func render(w io.Writer, format string, out *result.RunOutput) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	renderRich(w, out)
	return nil
}

func renderRich(w io.Writer, out *result.RunOutput) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("kontra validate: %s", out.Dataset)))
	fmt.Fprintln(w)

	for _, r := range out.Results {
		fmt.Fprintln(w, renderRule(r))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, renderSummary(out.Summary))
}

func renderRule(r result.RuleResult) string {
	icon, style := iconFail, dangerText
	if r.Passed {
		icon, style = iconPass, safeText
	} else if r.Severity == result.Warning {
		style = warnText
	}
	line := fmt.Sprintf("%s %s  %s", style.Render(icon), r.RuleID, r.Message)
	if r.Severity == result.Warning && !r.Passed {
		line += mutedText.Render(" (warning)")
	}
	line += mutedText.Render(fmt.Sprintf(" [%s]", r.ExecutionSource))
	return line
}

func renderSummary(s result.RunSummary) string {
	style := safeText
	verdict := "PASSED"
	if !s.Passed {
		style = dangerText
		verdict = "FAILED"
	}
	return fmt.Sprintf("%s — %d/%d rules passed (%d blocking, %d warning, %d info failures)",
		style.Render(verdict), s.RulesPassed, s.TotalRules, s.BlockingFailures, s.WarningFailures, s.InfoFailures)
}
