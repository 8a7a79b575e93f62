package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/waabox/builddeck/internal/audit"
	"github.com/waabox/builddeck/internal/domain"
)

const separator = "────────────────────────────────────────────────────────────\n"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	activeTabStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func statusIcon(s domain.BuildStatus) string {
	switch s {
	case domain.StatusCompleted:
		return okStyle.Render("✓")
	case domain.StatusFailed, domain.StatusFailedResourceLimit:
		return errorStyle.Render("✗")
	case domain.StatusRunning:
		return warnStyle.Render("●")
	case domain.StatusQueued, domain.StatusNeedsInput:
		return "↷"
	case domain.StatusCancelled:
		return "○"
	default:
		return "?"
	}
}

func severityStyle(s audit.Severity) lipgloss.Style {
	switch s {
	case audit.SeverityCritical, audit.SeverityHigh:
		return errorStyle
	case audit.SeverityMedium:
		return warnStyle
	default:
		return dimStyle
	}
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
