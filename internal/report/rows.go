// Package report turns aggregated usage into report rows, CSV files and
// console summaries.
package report

import (
	"github.com/j-veylop/team-flex-credits/internal/aggregate"
	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
)

// DailyRow is one line of the daily totals report.
type DailyRow struct {
	Date          string
	DateFormatted string
	Flex          models.Credits
	Prompt        models.Credits
	DataPoints    int
}

// ModelRow is one line of the per-model breakdown.
type ModelRow struct {
	Date          string
	DateFormatted string
	Model         string
	ModelName     string
	Flex          models.Credits
}

// MonthlyRow is one line of the monthly summary.
type MonthlyRow struct {
	Month          string
	MonthFormatted string
	Flex           models.Credits
	Prompt         models.Credits
	Total          models.Credits
	DataPoints     int
}

// ModelShare is a model's total over the whole period.
type ModelShare struct {
	Model   string
	Name    string
	Flex    models.Credits
	Percent float64
}

// DailyRows returns one row per date, sorted by date.
func DailyRows(snap aggregate.Snapshot) []DailyRow {
	rows := make([]DailyRow, 0, len(snap.Daily))
	for _, d := range snap.Daily {
		rows = append(rows, DailyRow{
			Date:          d.Date,
			DateFormatted: period.FormatDay(d.Date),
			Flex:          d.Flex,
			Prompt:        d.Prompt,
			DataPoints:    d.DataPoints,
		})
	}
	return rows
}

// ModelRows returns one row per (date, model), sorted by date, then credits
// descending, then model name.
func ModelRows(snap aggregate.Snapshot) []ModelRow {
	var rows []ModelRow
	for _, date := range snap.Dates() {
		formatted := period.FormatDay(date)
		for _, mt := range snap.ByModel[date] {
			rows = append(rows, ModelRow{
				Date:          date,
				DateFormatted: formatted,
				Model:         mt.Model,
				ModelName:     FriendlyModelName(mt.Model),
				Flex:          mt.Flex,
			})
		}
	}
	return rows
}

// MonthlyRows returns one row per month, sorted by month.
func MonthlyRows(snap aggregate.Snapshot) []MonthlyRow {
	rows := make([]MonthlyRow, 0, len(snap.Monthly))
	for _, m := range snap.Monthly {
		rows = append(rows, MonthlyRow{
			Month:          m.Month,
			MonthFormatted: period.FormatMonth(m.Month),
			Flex:           m.Flex,
			Prompt:         m.Prompt,
			Total:          m.Total(),
			DataPoints:     m.DataPoints,
		})
	}
	return rows
}

// ModelShares sums each model over every date and returns the totals sorted
// by credits descending. Percent is the share of the grand total, or zero
// when nothing was used.
func ModelShares(snap aggregate.Snapshot) []ModelShare {
	totals := make(map[string]models.Credits)
	var grand models.Credits
	for _, perModel := range snap.ByModel {
		for _, mt := range perModel {
			totals[mt.Model] += mt.Flex
			grand += mt.Flex
		}
	}

	flat := make([]models.ModelTotal, 0, len(totals))
	for name, flex := range totals {
		flat = append(flat, models.ModelTotal{Model: name, Flex: flex})
	}
	aggregate.SortModelTotals(flat)

	shares := make([]ModelShare, 0, len(flat))
	for _, mt := range flat {
		shares = append(shares, ModelShare{
			Model:   mt.Model,
			Name:    FriendlyModelName(mt.Model),
			Flex:    mt.Flex,
			Percent: percentOf(mt.Flex, grand),
		})
	}
	return shares
}

// DaysWithFlex returns the dates on which any flex credits were used.
func DaysWithFlex(snap aggregate.Snapshot) []string {
	var days []string
	for _, d := range snap.Daily {
		if d.Flex > 0 {
			days = append(days, d.Date)
		}
	}
	return days
}

func percentOf(part, whole models.Credits) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
