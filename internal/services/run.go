package services

import (
	"context"
	"fmt"
	"io"

	"github.com/j-veylop/team-flex-credits/internal/aggregate"
	"github.com/j-veylop/team-flex-credits/internal/logger"
	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
	"github.com/j-veylop/team-flex-credits/internal/report"
)

// Request describes one report run.
type Request struct {
	Kind        models.ReportKind
	Period      period.Period
	MappingFile string
	Workers     int
	Notify      bool
	Chart       bool
}

// Outcome is the result of a run.
type Outcome struct {
	Result      *aggregate.Result
	MappingFile string
	RunID       string
	Files       []string
}

// Empty reports whether the run produced no usage data.
func (o *Outcome) Empty() bool {
	return o.Result == nil || o.Result.Snapshot.Empty()
}

func title(kind models.ReportKind, p period.Period) string {
	switch kind {
	case models.ReportDaily:
		return "TEAM DAILY FLEX CREDITS - " + p.Title()
	case models.ReportByModel:
		return "FLEX CREDITS BY MODEL - " + p.Title()
	case models.ReportMonthly:
		return "TEAM MONTHLY CREDITS SUMMARY"
	default:
		return "TEAM FLEX CREDITS - " + p.Title()
	}
}

// Run resolves the team, fetches every user's usage concurrently, writes the
// CSV file(s) for the requested kind and prints the console summary. With
// kind both, usage is fetched once and both reports are written. A run that
// finds no usage prints a notice and writes no files.
func (m *Manager) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Workers < 1 {
		return nil, fmt.Errorf("%w (got %d)", aggregate.ErrInvalidWorkers, req.Workers)
	}
	if _, err := models.ParseReportKind(string(req.Kind)); err != nil {
		return nil, err
	}

	p := m.printer
	p.Chart = req.Chart
	p.PrintHeader(title(req.Kind, req.Period),
		fmt.Sprintf("Date range: %s to %s", req.Period.StartDate(), req.Period.EndDate()),
		fmt.Sprintf("Parallel workers: %d", req.Workers))

	path, users, err := m.LoadUsers(ctx, req.MappingFile)
	if err != nil {
		return nil, err
	}
	p.Status("Loading: %s", path)
	p.Status("Loaded: %d API keys", len(users))
	p.Status("Starting parallel data fetch with %d workers...", req.Workers)

	result, err := aggregate.Run(ctx, m.fetcher, users, req.Period, aggregate.Options{
		Workers:    req.Workers,
		OnProgress: m.progressFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("run interrupted: %w", err)
	}

	outcome := &Outcome{Result: result, MappingFile: path}
	p.PrintFetchSummary(result.Stats)

	if result.Snapshot.Empty() {
		p.Notice("No usage data found for %s", req.Period)
		return outcome, nil
	}

	files, err := m.writeReports(req, result.Snapshot)
	outcome.Files = files
	if err != nil {
		return outcome, err
	}

	m.printSummaries(req, result.Snapshot)

	if id, err := m.saveHistory(ctx, req, result); err != nil {
		logger.Warn("failed to save run history", "error", err)
	} else {
		outcome.RunID = id
	}

	if req.Notify {
		m.notifyDone(req.Kind, req.Period.Title(), result.Snapshot, result.Stats)
	}

	logger.Info("report run finished",
		"kind", req.Kind, "period", req.Period.String(), "files", len(files), "run_id", outcome.RunID)
	return outcome, nil
}

func (m *Manager) writeReports(req Request, snap aggregate.Snapshot) ([]string, error) {
	today := m.clock.Now()
	dir := m.cfg.OutputDir

	type output struct {
		name  string
		write func(io.Writer) error
	}
	var outputs []output

	if req.Kind == models.ReportDaily || req.Kind == models.ReportBoth {
		rows := report.DailyRows(snap)
		outputs = append(outputs, output{report.DailyFilename(req.Period, today), func(w io.Writer) error {
			return report.WriteDailyCSV(w, rows)
		}})
	}
	if req.Kind == models.ReportByModel || req.Kind == models.ReportBoth {
		rows := report.ModelRows(snap)
		outputs = append(outputs, output{report.ModelFilename(req.Period, today), func(w io.Writer) error {
			return report.WriteModelCSV(w, rows)
		}})
	}
	if req.Kind == models.ReportMonthly {
		rows := report.MonthlyRows(snap)
		outputs = append(outputs, output{report.MonthlyFilename(req.Period, today), func(w io.Writer) error {
			return report.WriteMonthlyCSV(w, rows)
		}})
	}

	files := make([]string, 0, len(outputs))
	for _, o := range outputs {
		path, err := report.SaveCSV(dir, o.name, o.write)
		if err != nil {
			return files, err
		}
		m.printer.Saved(path)
		files = append(files, path)
	}
	return files, nil
}

func (m *Manager) printSummaries(req Request, snap aggregate.Snapshot) {
	switch req.Kind {
	case models.ReportDaily:
		m.printer.PrintDaily(req.Period, snap)
	case models.ReportByModel:
		m.printer.PrintByModel(req.Period, snap)
	case models.ReportBoth:
		m.printer.PrintDaily(req.Period, snap)
		m.printer.PrintByModel(req.Period, snap)
	case models.ReportMonthly:
		m.printer.PrintMonthly(snap)
	}
}

func (m *Manager) saveHistory(ctx context.Context, req Request, result *aggregate.Result) (string, error) {
	if m.database == nil {
		return "", nil
	}

	run := &models.Run{
		CreatedAt:  m.clock.Now().UTC(),
		Kind:       req.Kind,
		StartDate:  req.Period.StartDate(),
		EndDate:    req.Period.EndDate(),
		Workers:    req.Workers,
		Users:      result.Stats.Users,
		Active:     result.Stats.Active,
		Failed:     result.Stats.Failed,
		DataPoints: result.Stats.DataPoints,
		TotalFlex:  result.Snapshot.TotalFlex(),
	}

	shares := report.ModelShares(result.Snapshot)
	byModel := make([]models.ModelTotal, len(shares))
	for i, s := range shares {
		byModel[i] = models.ModelTotal{Model: s.Model, Flex: s.Flex}
	}

	if err := m.database.SaveRun(ctx, run, result.Snapshot.Daily, byModel); err != nil {
		return "", err
	}
	return run.ID, nil
}
