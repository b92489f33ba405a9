package wizard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/ui/styles"
)

const banner = "TEAM FLEX CREDITS ANALYTICS"

func (m Model) question() string {
	switch m.step {
	case stepKind:
		return "Which analysis do you want to run?"
	case stepRange:
		return "How do you want to choose the dates?"
	case stepYear:
		return fmt.Sprintf("Which year? (%d-%d)", MinYear, MaxYear)
	case stepMonth:
		return "Which month?"
	case stepStartMonth:
		return "Start month?"
	case stepEndMonth:
		return "End month?"
	case stepStartDate:
		return "Start date (YYYY-MM-DD):"
	case stepEndDate:
		return "End date (YYYY-MM-DD):"
	case stepWorkers:
		return "How many parallel workers?"
	case stepMapping:
		return "Which email mapping file?"
	case stepMappingPath:
		return "Path to the mapping file:"
	case stepConfirm:
		return "Run the analysis?"
	}
	return ""
}

// View implements tea.Model.
func (m Model) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.CardStyle.Render(styles.TitleStyle.Render(banner)))
	b.WriteString("\n")

	if m.step == stepConfirm {
		b.WriteString(m.summary())
		b.WriteString("\n")
	}

	b.WriteString(styles.SubTitleStyle.Render(m.question()))
	b.WriteString("\n\n")

	if m.isInputStep() {
		b.WriteString("  " + m.input.View())
		b.WriteString("\n")
	} else {
		for i, opt := range m.options() {
			if i == m.cursor {
				b.WriteString(styles.SelectedListItemStyle.Render("> " + opt.label))
			} else {
				b.WriteString(styles.ListItemStyle.Render(opt.label))
			}
			b.WriteString("\n")
		}
	}

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorTextStyle.Render(m.err))
		b.WriteString("\n")
	}

	if m.step == stepWorkers && m.opts.LatestMapping == "" {
		b.WriteString("\n")
		b.WriteString(styles.WarningTextStyle.Render("No mapping file found; one will be generated when needed."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}

func (m Model) summary() string {
	mappingLine := "generated automatically"
	if m.mappingFile != "" {
		mappingLine = filepath.Base(m.mappingFile)
	}

	lines := []string{
		styles.SubTitleStyle.Render("Configuration summary"),
		"Analysis: " + analysisLabel(m.kind),
		fmt.Sprintf("Period:   %s to %s", m.period.StartDate(), m.period.EndDate()),
		fmt.Sprintf("Workers:  %d", m.workers),
		"Mapping:  " + mappingLine,
	}
	return styles.CardStyle.Render(strings.Join(lines, "\n"))
}

func analysisLabel(kind models.ReportKind) string {
	switch kind {
	case models.ReportDaily:
		return "Daily totals"
	case models.ReportByModel:
		return "Breakdown by model"
	case models.ReportMonthly:
		return "Monthly summary"
	case models.ReportBoth:
		return "Both (daily totals + by model)"
	}
	return string(kind)
}

func (m Model) helpView() string {
	bindings := m.keymap.ShortHelp()
	if m.isInputStep() {
		bindings = bindings[2:]
	}

	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	return styles.HelpStyle.Render(strings.Join(parts, "  "))
}
