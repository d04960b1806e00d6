package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// Styles contains all lipgloss styles for terminal output
type Styles struct {
	enabled bool

	// Severity styles
	Critical lipgloss.Style
	High     lipgloss.Style
	Medium   lipgloss.Style
	Low      lipgloss.Style
	Success  lipgloss.Style

	// Structural styles
	Header    lipgloss.Style
	Subheader lipgloss.Style
	Path      lipgloss.Style
	Kind      lipgloss.Style
	Separator lipgloss.Style

	// Segment browser styles
	Dialogue  lipgloss.Style
	Narration lipgloss.Style
	Speaker   lipgloss.Style
	Review    lipgloss.Style

	// Icons (degraded to ASCII when not interactive)
	IconCritical string
	IconHigh     string
	IconMedium   string
	IconLow      string
	IconSuccess  string
	IconWarning  string
}

// NewStyles creates a new Styles instance
// When enabled is false, styles return text unchanged (for non-TTY output)
func NewStyles(enabled bool) *Styles {
	s := &Styles{enabled: enabled}

	if enabled {
		s.Critical = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
		s.High = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		s.Medium = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
		s.Low = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
		s.Success = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

		s.Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
		s.Subheader = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.Path = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.Kind = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.Separator = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

		s.Dialogue = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
		s.Narration = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		s.Speaker = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
		s.Review = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

		s.IconCritical = "✗"
		s.IconHigh = "✗"
		s.IconMedium = "⚠"
		s.IconLow = "ℹ"
		s.IconSuccess = "✓"
		s.IconWarning = "⚠"
	} else {
		s.Critical = lipgloss.NewStyle()
		s.High = lipgloss.NewStyle()
		s.Medium = lipgloss.NewStyle()
		s.Low = lipgloss.NewStyle()
		s.Success = lipgloss.NewStyle()

		s.Header = lipgloss.NewStyle()
		s.Subheader = lipgloss.NewStyle()
		s.Path = lipgloss.NewStyle()
		s.Kind = lipgloss.NewStyle()
		s.Separator = lipgloss.NewStyle()

		s.Dialogue = lipgloss.NewStyle()
		s.Narration = lipgloss.NewStyle()
		s.Speaker = lipgloss.NewStyle()
		s.Review = lipgloss.NewStyle()

		s.IconCritical = "CRITICAL:"
		s.IconHigh = "HIGH:"
		s.IconMedium = "MEDIUM:"
		s.IconLow = "LOW:"
		s.IconSuccess = "OK:"
		s.IconWarning = "WARN:"
	}

	return s
}

// Enabled returns whether styling is enabled
func (s *Styles) Enabled() bool {
	return s.enabled
}

// SeverityStyle maps an issue severity to its style.
func (s *Styles) SeverityStyle(sev lint.Severity) lipgloss.Style {
	switch sev {
	case lint.SeverityCritical:
		return s.Critical
	case lint.SeverityHigh:
		return s.High
	case lint.SeverityMedium:
		return s.Medium
	default:
		return s.Low
	}
}

// SeverityIcon maps an issue severity to its icon.
func (s *Styles) SeverityIcon(sev lint.Severity) string {
	switch sev {
	case lint.SeverityCritical:
		return s.IconCritical
	case lint.SeverityHigh:
		return s.IconHigh
	case lint.SeverityMedium:
		return s.IconMedium
	default:
		return s.IconLow
	}
}
