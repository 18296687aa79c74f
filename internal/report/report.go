// Package report renders driver status counters for terminals.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/roach88/tabledriver/internal/driver"
)

// Theme holds the styles used by the renderers.
type Theme struct {
	Header lipgloss.Style
	Muted  lipgloss.Style
	Pass   lipgloss.Style
	Fail   lipgloss.Style
	Warn   lipgloss.Style

	// Box frames the summary when Boxed is set.
	Box   lipgloss.Style
	Boxed bool
}

// DefaultTheme is the colored theme used on terminals.
func DefaultTheme() Theme {
	return Theme{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Pass:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Fail:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Box: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("245")).
			Padding(0, 1),
		Boxed: true,
	}
}

// PlainTheme renders without any styling, for pipes and golden files.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{Header: plain, Muted: plain, Pass: plain, Fail: plain, Warn: plain, Box: plain}
}

// Verdict names the overall result of s.
type Verdict string

const (
	VerdictPassed   Verdict = "PASSED"
	VerdictWarnings Verdict = "PASSED WITH WARNINGS"
	VerdictFailed   Verdict = "FAILED"
	VerdictEmpty    Verdict = "NO RECORDS"
)

// VerdictOf summarizes s. Any failure, IO failure included, fails.
func VerdictOf(s driver.StatusCounter) Verdict {
	switch {
	case s.Total() == 0:
		return VerdictEmpty
	case s.Failed():
		return VerdictFailed
	case s.TestWarnings > 0 || s.GeneralWarnings > 0:
		return VerdictWarnings
	}
	return VerdictPassed
}

func (t Theme) verdict(v Verdict) string {
	switch v {
	case VerdictFailed:
		return t.Fail.Render(string(v))
	case VerdictWarnings:
		return t.Warn.Render(string(v))
	case VerdictEmpty:
		return t.Muted.Render(string(v))
	}
	return t.Pass.Render(string(v))
}

// Summary renders the counters of one run.
func Summary(title string, s driver.StatusCounter, theme Theme) string {
	var sb strings.Builder

	sb.WriteString(theme.Header.Render(title))
	sb.WriteString("  ")
	sb.WriteString(theme.verdict(VerdictOf(s)))
	sb.WriteString("\n")

	line := func(label string, pass, fail, warn, io int) {
		sb.WriteString(theme.Muted.Render(runewidth.FillRight(label, 10)))
		sb.WriteString(styledCount(theme.Pass, "pass", pass))
		sb.WriteString("  ")
		sb.WriteString(styledCount(theme.Fail, "fail", fail))
		sb.WriteString("  ")
		sb.WriteString(styledCount(theme.Warn, "warn", warn))
		sb.WriteString("  ")
		sb.WriteString(styledCount(theme.Fail, "io", io))
		sb.WriteString("\n")
	}
	line("tests", s.TestPasses, s.TestFailures, s.TestWarnings, s.TestIOFailures)
	line("general", s.GeneralPasses, s.GeneralFailures, s.GeneralWarnings, s.GeneralIOFailures)

	sb.WriteString(theme.Muted.Render(runewidth.FillRight("skipped", 10)))
	sb.WriteString(fmt.Sprintf("%d", s.Skipped))
	sb.WriteString("\n")
	sb.WriteString(theme.Muted.Render(runewidth.FillRight("total", 10)))
	sb.WriteString(fmt.Sprintf("%d", s.Total()))

	if !theme.Boxed {
		return sb.String()
	}
	return theme.Box.Render(sb.String())
}

// zero counts stay unstyled so failures stand out
func styledCount(style lipgloss.Style, label string, n int) string {
	text := fmt.Sprintf("%s %3d", label, n)
	if n == 0 {
		return text
	}
	return style.Render(text)
}

// Row is one line of a table report.
type Row struct {
	Label  string
	Status driver.StatusCounter
}

var columns = []string{"T.PASS", "T.FAIL", "T.WARN", "T.IO", "G.PASS", "G.FAIL", "G.WARN", "G.IO", "SKIP"}

// Table renders one row per table, aligning labels by display width so
// wide characters in table names keep the columns straight.
func Table(rows []Row, theme Theme) string {
	width := runewidth.StringWidth("TABLE")
	for _, r := range rows {
		if w := runewidth.StringWidth(r.Label); w > width {
			width = w
		}
	}

	var sb strings.Builder
	header := runewidth.FillRight("TABLE", width)
	for _, c := range columns {
		header += fmt.Sprintf(" %7s", c)
	}
	sb.WriteString(theme.Header.Render(header))
	sb.WriteString("\n")

	for _, r := range rows {
		sb.WriteString(runewidth.FillRight(r.Label, width))
		s := r.Status
		values := []int{
			s.TestPasses, s.TestFailures, s.TestWarnings, s.TestIOFailures,
			s.GeneralPasses, s.GeneralFailures, s.GeneralWarnings, s.GeneralIOFailures,
			s.Skipped,
		}
		for i, v := range values {
			cell := fmt.Sprintf(" %7d", v)
			switch {
			case v == 0:
				cell = theme.Muted.Render(cell)
			case i == 1 || i == 3 || i == 5 || i == 7:
				cell = theme.Fail.Render(cell)
			case i == 2 || i == 6:
				cell = theme.Warn.Render(cell)
			}
			sb.WriteString(cell)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
