// Package styles defines the visual styling for the application.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color definitions for the report theme.
var (
	// Primary colors
	Primary   = lipgloss.Color("205") // Pink
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	// Status colors
	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow
	Info    = lipgloss.Color("39")  // Blue

	// Text colors
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// TitleStyle is used for report headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary)

// DateHeadingStyle styles the per-date block headings of the model breakdown.
var DateHeadingStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Info)

// RuleStyle styles horizontal separators.
var RuleStyle = lipgloss.NewStyle().
	Foreground(Subtle)

// TableHeaderStyle styles table header rows.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(TextPrimary)

// TotalRowStyle styles total and grand total rows.
var TotalRowStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(0, 2).
	MarginBottom(1)

// FocusedStyle is used for focused input elements.
var FocusedStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// BlurredStyle is used for unfocused input elements.
var BlurredStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// ListItemStyle styles list items.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedListItemStyle styles the selected list item.
var SelectedListItemStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// ProgressLabelStyle styles the counters next to the progress bar.
var ProgressLabelStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpKeyStyle styles keyboard shortcut keys.
var HelpKeyStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// HelpDescStyle styles help descriptions.
var HelpDescStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// SuccessTextStyle for success messages.
var SuccessTextStyle = lipgloss.NewStyle().
	Foreground(Success)

// WarningTextStyle for warning messages.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(Warning)

// InfoTextStyle for info messages.
var InfoTextStyle = lipgloss.NewStyle().
	Foreground(Info)

// ShareHighStyle for shares above 50% of the period total.
var ShareHighStyle = lipgloss.NewStyle().
	Foreground(Warning).
	Bold(true)

// ShareMediumStyle for shares between 20% and 50%.
var ShareMediumStyle = lipgloss.NewStyle().
	Foreground(TextPrimary)

// ShareLowStyle for shares below 20%.
var ShareLowStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// GetShareStyle returns the style for a share of the grand total.
func GetShareStyle(percent float64) lipgloss.Style {
	switch {
	case percent > 50:
		return ShareHighStyle
	case percent > 20:
		return ShareMediumStyle
	default:
		return ShareLowStyle
	}
}

// Rule renders a horizontal separator of the given width.
func Rule(char string, width int) string {
	if width < 1 {
		width = 1
	}
	return RuleStyle.Render(strings.Repeat(char, width))
}
