package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/team-flex-credits/internal/aggregate"
	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
	"github.com/j-veylop/team-flex-credits/internal/ui/components"
	"github.com/j-veylop/team-flex-credits/internal/ui/styles"
)

const (
	defaultWidth = 100
	modelColumn  = 48
)

// Printer renders console summaries.
type Printer struct {
	w io.Writer
	// Width is the width of rules and charts.
	Width int
	// Chart adds charts below the tables.
	Chart bool
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, Width: defaultWidth}
}

// FormatCredits formats an amount as #,###.##.
func FormatCredits(c models.Credits) string {
	return humanize.FormatFloat("#,###.##", c.Float())
}

func (p *Printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *Printer) styled(style lipgloss.Style, format string, args ...any) {
	p.line(style.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) rule(char string) {
	p.line(styles.Rule(char, p.Width))
}

func (p *Printer) banner(title string) {
	p.line("")
	p.rule("=")
	p.line(styles.TitleStyle.Render(title))
	p.rule("=")
}

func (p *Printer) stat(label string, value any) {
	p.line(fmt.Sprintf("   - %s: %v", label, value))
}

// PrintHeader prints a banner followed by detail lines.
func (p *Printer) PrintHeader(title string, details ...string) {
	p.banner(title)
	for _, d := range details {
		p.line(d)
	}
	p.line("")
}

// Status prints an informational line.
func (p *Printer) Status(format string, args ...any) {
	p.styled(styles.InfoTextStyle, format, args...)
}

// Notice prints a warning line.
func (p *Printer) Notice(format string, args ...any) {
	p.styled(styles.WarningTextStyle, format, args...)
}

// Saved reports a written file.
func (p *Printer) Saved(path string) {
	p.styled(styles.SuccessTextStyle, "Report saved: %s", path)
}

// PrintFetchSummary prints the one-line outcome of the fan-out.
func (p *Printer) PrintFetchSummary(stats aggregate.Stats) {
	msg := fmt.Sprintf("Complete! Processed %d users | Active: %d | Data points: %s",
		stats.Processed, stats.Active, humanize.Comma(int64(stats.DataPoints)))
	p.line(styles.SuccessTextStyle.Render(msg))
	if stats.Failed > 0 {
		p.line(styles.WarningTextStyle.Render(fmt.Sprintf("%d user(s) could not be fetched and contribute no usage", stats.Failed)))
	}
}

// PrintDaily prints the daily totals table with per-day share of the period.
func (p *Printer) PrintDaily(per period.Period, snap aggregate.Snapshot) {
	rows := DailyRows(snap)
	total := snap.TotalFlex()

	var prompt models.Credits
	var points int
	for _, r := range rows {
		prompt += r.Prompt
		points += r.DataPoints
	}

	p.banner("TEAM DAILY FLEX CREDITS - " + per.Title())
	p.styled(styles.TableHeaderStyle, "%-12s %-20s %16s %16s %12s %8s",
		"Date", "Day", "Flex Credits", "Prompt Credits", "Data Points", "Share")
	p.rule("-")
	for _, r := range rows {
		share := percentOf(r.Flex, total)
		p.line(fmt.Sprintf("%-12s %-20s %16s %16s %12s ", r.Date, r.DateFormatted,
			FormatCredits(r.Flex), FormatCredits(r.Prompt), humanize.Comma(int64(r.DataPoints))) +
			styles.GetShareStyle(share).Render(fmt.Sprintf("%7.1f%%", share)))
	}
	p.rule("-")
	p.styled(styles.TotalRowStyle, "%-33s %16s %16s %12s %7.1f%%", "TOTAL",
		FormatCredits(total), FormatCredits(prompt), humanize.Comma(int64(points)), percentOf(total, total))
	p.rule("=")

	if p.Chart && len(snap.Daily) > 1 {
		p.line("")
		p.line(components.RenderDailyChart(snap.Daily, p.Width-12, 10))
	}

	p.line("")
	p.line(styles.SubTitleStyle.Render("Statistics:"))
	p.stat("Days with data", len(rows))
	p.stat("Total flex credits", FormatCredits(total))
	p.stat("Total prompt credits", FormatCredits(prompt))
	if len(rows) > 0 {
		p.stat("Avg flex credits/day", FormatCredits(total/models.Credits(len(rows))))
	}
	p.flexDays(len(DaysWithFlex(snap)), len(rows), "days", per.Title())
}

// PrintByModel prints per-date model blocks followed by totals per model.
func (p *Printer) PrintByModel(per period.Period, snap aggregate.Snapshot) {
	p.banner("FLEX CREDITS BY MODEL - " + per.Title())

	for _, date := range snap.Dates() {
		p.line("")
		p.styled(styles.DateHeadingStyle, "%s - %s", date, period.FormatDay(date))
		p.rule("-")

		var dayTotal models.Credits
		for _, mt := range snap.ByModel[date] {
			dayTotal += mt.Flex
			if mt.Flex > 0 {
				p.line(fmt.Sprintf("   %-*s %16s", modelColumn, modelLabel(mt.Model), FormatCredits(mt.Flex)))
			}
		}
		p.styled(styles.TotalRowStyle, "   %-*s %16s", modelColumn, "DAILY TOTAL", FormatCredits(dayTotal))
	}

	var shares []ModelShare
	for _, s := range ModelShares(snap) {
		if s.Flex > 0 {
			shares = append(shares, s)
		}
	}
	grand := snap.TotalFlex()

	p.line("")
	p.rule("=")
	p.line(styles.SubTitleStyle.Render("TOTALS BY MODEL"))
	p.rule("=")
	for _, s := range shares {
		p.line(fmt.Sprintf("%-*s    %16s  ", modelColumn, modelLabel(s.Model), FormatCredits(s.Flex)) +
			styles.GetShareStyle(s.Percent).Render(fmt.Sprintf("(%5.1f%%)", s.Percent)))
	}
	p.rule("-")
	p.styled(styles.TotalRowStyle, "%-*s    %16s  (%5.1f%%)", modelColumn, "GRAND TOTAL", FormatCredits(grand), 100.0)
	p.rule("=")

	if p.Chart && len(shares) > 1 {
		values := make([]float64, len(shares))
		labels := make([]string, len(shares))
		for i, s := range shares {
			values[i] = s.Flex.Float()
			labels[i] = ansi.Truncate(s.Name, 28, "…")
		}
		p.line("")
		p.line(components.RenderBarChart(values, labels, p.Width))
	}

	days := snap.Dates()
	p.line("")
	p.line(styles.SubTitleStyle.Render("Statistics:"))
	p.stat("Days with data", len(days))
	p.stat("Total models used", len(shares))
	p.stat("Total flex credits", FormatCredits(grand))
	if len(days) > 0 {
		p.stat("Avg flex credits/day", FormatCredits(grand/models.Credits(len(days))))
	}
	p.flexDays(len(DaysWithFlex(snap)), len(days), "days", per.Title())
}

// PrintMonthly prints the monthly summary table.
func (p *Printer) PrintMonthly(snap aggregate.Snapshot) {
	rows := MonthlyRows(snap)

	p.banner("TEAM MONTHLY CREDITS SUMMARY")
	if len(rows) > 0 {
		p.line(fmt.Sprintf("Period: %s to %s", rows[0].MonthFormatted, rows[len(rows)-1].MonthFormatted))
		p.rule("=")
	}

	p.styled(styles.TableHeaderStyle, "%-20s %18s %18s %18s %15s",
		"Month", "Flex Credits", "Prompt Credits", "Total Credits", "Data Points")
	p.rule("-")

	var flex, prompt, total models.Credits
	var points, withFlex int
	for _, r := range rows {
		p.line(fmt.Sprintf("%-20s %18s %18s %18s %15s", r.MonthFormatted,
			FormatCredits(r.Flex), FormatCredits(r.Prompt), FormatCredits(r.Total), humanize.Comma(int64(r.DataPoints))))
		flex += r.Flex
		prompt += r.Prompt
		total += r.Total
		points += r.DataPoints
		if r.Flex > 0 {
			withFlex++
		}
	}
	p.rule("-")
	p.styled(styles.TotalRowStyle, "%-20s %18s %18s %18s %15s", "TOTAL",
		FormatCredits(flex), FormatCredits(prompt), FormatCredits(total), humanize.Comma(int64(points)))
	p.rule("=")

	p.line("")
	p.line(styles.SubTitleStyle.Render("Statistics:"))
	p.stat("Total months with data", len(rows))
	p.stat("Total flex credits", FormatCredits(flex))
	p.stat("Total prompt credits", FormatCredits(prompt))
	p.stat("Total credits used", FormatCredits(total))
	if len(rows) > 0 {
		p.stat("Average credits per month", FormatCredits(total/models.Credits(len(rows))))
	}
	p.flexDays(withFlex, len(rows), "months", "any month")
}

func (p *Printer) flexDays(withFlex, total int, unit, where string) {
	p.line("")
	if withFlex > 0 {
		p.line(styles.WarningTextStyle.Render(fmt.Sprintf("%s with flex credits: %d of %d", capitalize(unit), withFlex, total)))
		return
	}
	p.line(styles.SuccessTextStyle.Render("No flex credits used in " + where))
}

// PrintRuns lists stored runs, newest first.
func (p *Printer) PrintRuns(runs []models.Run) {
	if len(runs) == 0 {
		p.line(styles.HelpStyle.Render("No runs recorded yet."))
		return
	}

	p.styled(styles.TableHeaderStyle, "%-10s %-17s %-9s %-25s %7s %7s %7s %14s",
		"ID", "Created", "Kind", "Period", "Users", "Active", "Failed", "Flex Credits")
	p.rule("-")
	for _, r := range runs {
		p.line(fmt.Sprintf("%-10s %-17s %-9s %-25s %7d %7d %7d %14s",
			shortID(r.ID), r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Kind,
			r.StartDate+" to "+r.EndDate, r.Users, r.Active, r.Failed, FormatCredits(r.TotalFlex)))
	}
}

// PrintRun prints one stored run with its daily and per-model totals.
func (p *Printer) PrintRun(run models.Run, daily []models.DailyTotal, byModel []models.ModelTotal) {
	p.banner(fmt.Sprintf("RUN %s - %s", run.ID, strings.ToUpper(string(run.Kind))))
	p.line(fmt.Sprintf("Created: %s (%s)", run.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(run.CreatedAt)))
	p.line(fmt.Sprintf("Period:  %s to %s", run.StartDate, run.EndDate))
	p.line(fmt.Sprintf("Users:   %d (active %d, failed %d) with %d workers", run.Users, run.Active, run.Failed, run.Workers))
	p.line(fmt.Sprintf("Data points: %s", humanize.Comma(int64(run.DataPoints))))

	if len(daily) > 0 {
		p.line("")
		p.styled(styles.TableHeaderStyle, "%-12s %16s %16s %12s", "Date", "Flex Credits", "Prompt Credits", "Data Points")
		p.rule("-")
		for _, d := range daily {
			p.line(fmt.Sprintf("%-12s %16s %16s %12s", d.Date, FormatCredits(d.Flex), FormatCredits(d.Prompt), humanize.Comma(int64(d.DataPoints))))
		}
		if p.Chart && len(daily) > 1 {
			p.line("")
			p.line(components.RenderDailyChart(daily, p.Width-12, 8))
		}
	}

	if len(byModel) > 0 {
		p.line("")
		p.styled(styles.TableHeaderStyle, "%-*s %16s %8s", modelColumn, "Model", "Flex Credits", "Share")
		p.rule("-")
		for _, mt := range byModel {
			p.line(fmt.Sprintf("%-*s %16s %7.1f%%", modelColumn, modelLabel(mt.Model), FormatCredits(mt.Flex), percentOf(mt.Flex, run.TotalFlex)))
		}
	}

	p.rule("=")
	p.styled(styles.TotalRowStyle, "Total flex credits: %s", FormatCredits(run.TotalFlex))
}

func modelLabel(model string) string {
	return ansi.Truncate(FriendlyModelName(model), modelColumn, "…")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
