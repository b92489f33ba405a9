// Package components provides reusable rendering pieces for console output
// and the interactive wizard.
package components

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/ui/styles"
)

// RenderDailyChart plots daily flex credit totals as an ASCII line chart.
func RenderDailyChart(days []models.DailyTotal, width, height int) string {
	if len(days) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	// Ensure minimum dimensions
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	data := make([]float64, len(days))
	for i, d := range days {
		data[i] = d.Flex.Float()
	}
	// asciigraph needs two points to draw a line
	if len(data) == 1 {
		data = append(data, data[0])
	}

	caption := fmt.Sprintf("Flex credits per day (%s to %s)", days[0].Date, days[len(days)-1].Date)
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// RenderBarChart creates a simple horizontal bar chart.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		if len(l) > maxLabelLen {
			maxLabelLen = len(l)
		}
	}

	barWidth := width - maxLabelLen - 12 // label, separator and value
	if barWidth < 10 {
		barWidth = 10
	}

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}

		barLen := int((v / maxVal) * float64(barWidth))
		if barLen < 0 {
			barLen = 0
		}

		lines = append(lines, fmt.Sprintf("%-*s │%s %.1f", maxLabelLen, label, strings.Repeat("█", barLen), v))
	}

	return strings.Join(lines, "\n")
}
