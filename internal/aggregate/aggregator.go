// Package aggregate fetches usage for a team with a bounded pool of workers
// and folds the events into date, model and month keyed totals.
package aggregate

import (
	"sort"
	"sync"

	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
)

// Aggregator accumulates usage events. It is safe for concurrent use.
type Aggregator struct {
	daily   map[string]*models.DailyTotal
	byModel map[string]map[string]models.Credits
	monthly map[string]*models.MonthlyTotal
	mu      sync.Mutex
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		daily:   make(map[string]*models.DailyTotal),
		byModel: make(map[string]map[string]models.Credits),
		monthly: make(map[string]*models.MonthlyTotal),
	}
}

// Add folds events into the totals. Events without a date are ignored.
func (a *Aggregator) Add(events []models.UsageEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, ev := range events {
		if ev.Date == "" {
			continue
		}

		day, ok := a.daily[ev.Date]
		if !ok {
			day = &models.DailyTotal{Date: ev.Date}
			a.daily[ev.Date] = day
		}
		day.Flex += ev.FlexCredits
		day.Prompt += ev.PromptCredits
		day.DataPoints++

		modelName := ev.Model
		if modelName == "" {
			modelName = models.UnknownModel
		}
		perModel, ok := a.byModel[ev.Date]
		if !ok {
			perModel = make(map[string]models.Credits)
			a.byModel[ev.Date] = perModel
		}
		perModel[modelName] += ev.FlexCredits

		key := period.MonthKey(ev.Date)
		month, ok := a.monthly[key]
		if !ok {
			month = &models.MonthlyTotal{Month: key}
			a.monthly[key] = month
		}
		month.Flex += ev.FlexCredits
		month.Prompt += ev.PromptCredits
		month.DataPoints++
	}
}

// Snapshot is a point-in-time copy of the aggregated totals.
type Snapshot struct {
	// ByModel maps date to per-model flex totals, sorted by credits descending
	// then model name.
	ByModel map[string][]models.ModelTotal
	// Daily is sorted by date.
	Daily []models.DailyTotal
	// Monthly is sorted by month.
	Monthly []models.MonthlyTotal
}

// Snapshot copies the current totals.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		ByModel: make(map[string][]models.ModelTotal, len(a.byModel)),
		Daily:   make([]models.DailyTotal, 0, len(a.daily)),
		Monthly: make([]models.MonthlyTotal, 0, len(a.monthly)),
	}

	for _, d := range a.daily {
		snap.Daily = append(snap.Daily, *d)
	}
	sort.Slice(snap.Daily, func(i, j int) bool { return snap.Daily[i].Date < snap.Daily[j].Date })

	for _, m := range a.monthly {
		snap.Monthly = append(snap.Monthly, *m)
	}
	sort.Slice(snap.Monthly, func(i, j int) bool { return snap.Monthly[i].Month < snap.Monthly[j].Month })

	for date, perModel := range a.byModel {
		totals := make([]models.ModelTotal, 0, len(perModel))
		for name, flex := range perModel {
			totals = append(totals, models.ModelTotal{Model: name, Flex: flex})
		}
		SortModelTotals(totals)
		snap.ByModel[date] = totals
	}

	return snap
}

// Dates returns the dates that have model totals, sorted.
func (s Snapshot) Dates() []string {
	dates := make([]string, 0, len(s.ByModel))
	for d := range s.ByModel {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// TotalFlex returns the flex credits summed over every day.
func (s Snapshot) TotalFlex() models.Credits {
	var total models.Credits
	for _, d := range s.Daily {
		total += d.Flex
	}
	return total
}

// Empty reports whether no events were aggregated.
func (s Snapshot) Empty() bool {
	return len(s.Daily) == 0
}

// SortModelTotals orders totals by credits descending, then model name.
func SortModelTotals(totals []models.ModelTotal) {
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Flex != totals[j].Flex {
			return totals[i].Flex > totals[j].Flex
		}
		return totals[i].Model < totals[j].Model
	})
}
