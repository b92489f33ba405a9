package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/team-flex-credits/internal/aggregate"
	"github.com/j-veylop/team-flex-credits/internal/ui/styles"
)

// ProgressLine renders fetch progress as a static bar plus counters. It is
// redrawn in place with a carriage return, so no tea.Program is needed.
type ProgressLine struct {
	bar progress.Model
}

// NewProgressLine creates a progress line whose bar is width cells wide.
func NewProgressLine(width int) ProgressLine {
	if width < 10 {
		width = 10
	}
	p := progress.New(
		progress.WithScaledGradient("#7D56F4", "#51cf66"),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	return ProgressLine{bar: p}
}

// View renders the bar followed by processed/total, active users and data points.
func (l ProgressLine) View(p aggregate.Progress) string {
	var ratio float64
	if p.Total > 0 {
		ratio = float64(p.Processed) / float64(p.Total)
	}

	counters := fmt.Sprintf("%d/%d users | active %d | data points %s",
		p.Processed, p.Total, p.Active, humanize.Comma(int64(p.DataPoints)))
	if p.Failed > 0 {
		counters += " | " + styles.ErrorTextStyle.Render(fmt.Sprintf("failed %d", p.Failed))
	}

	return l.bar.ViewAs(ratio) + "  " + styles.ProgressLabelStyle.Render(counters)
}
