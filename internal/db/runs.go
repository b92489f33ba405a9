package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/team-flex-credits/internal/logger"
	"github.com/j-veylop/team-flex-credits/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// ErrRunNotFound is returned when no run matches an ID or prefix.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRun is returned when an ID prefix matches more than one run.
var ErrAmbiguousRun = errors.New("run ID prefix is ambiguous")

// SaveRun stores a run with its daily and per-model totals in one
// transaction. An empty ID is replaced with a new UUID and a zero CreatedAt
// with the current time.
func (db *DB) SaveRun(ctx context.Context, run *models.Run, daily []models.DailyTotal, byModel []models.ModelTotal) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, kind, start_date, end_date, workers,
			users, active_users, failed_users, data_points, total_flex
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(timeLayout),
		string(run.Kind),
		run.StartDate,
		run.EndDate,
		run.Workers,
		run.Users,
		run.Active,
		run.Failed,
		run.DataPoints,
		int64(run.TotalFlex),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	dailyStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_daily_totals (run_id, event_date, flex_credits, prompt_credits, data_points)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare daily insert: %w", err)
	}
	defer func() { _ = dailyStmt.Close() }()

	for _, d := range daily {
		if _, err := dailyStmt.ExecContext(ctx, run.ID, d.Date, int64(d.Flex), int64(d.Prompt), d.DataPoints); err != nil {
			return fmt.Errorf("failed to insert daily total for %s: %w", d.Date, err)
		}
	}

	modelStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_model_totals (run_id, model, flex_credits)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, model) DO UPDATE SET flex_credits = flex_credits + excluded.flex_credits`)
	if err != nil {
		return fmt.Errorf("failed to prepare model insert: %w", err)
	}
	defer func() { _ = modelStmt.Close() }()

	for _, m := range byModel {
		if _, err := modelStmt.ExecContext(ctx, run.ID, m.Model, int64(m.Flex)); err != nil {
			return fmt.Errorf("failed to insert model total for %s: %w", m.Model, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	logger.Debug("saved run", "id", run.ID, "days", len(daily), "models", len(byModel))
	return nil
}

const runColumns = `id, created_at, kind, start_date, end_date, workers,
	users, active_users, failed_users, data_points, total_flex`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (models.Run, error) {
	var (
		run       models.Run
		createdAt string
		kind      string
		totalFlex int64
	)
	err := row.Scan(
		&run.ID,
		&createdAt,
		&kind,
		&run.StartDate,
		&run.EndDate,
		&run.Workers,
		&run.Users,
		&run.Active,
		&run.Failed,
		&run.DataPoints,
		&totalFlex,
	)
	if err != nil {
		return models.Run{}, err
	}

	run.Kind = models.ReportKind(kind)
	run.TotalFlex = models.Credits(totalFlex)
	run.CreatedAt, err = time.ParseInLocation(timeLayout, createdAt, time.UTC)
	if err != nil {
		return models.Run{}, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun returns the run whose ID equals or starts with id. The prefix is
// compared literally, so % and _ are not wildcards.
func (db *DB) GetRun(ctx context.Context, id string) (models.Run, error) {
	if id == "" {
		return models.Run{}, ErrRunNotFound
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY id = ? DESC LIMIT 2`,
		id, id, id)
	if err != nil {
		return models.Run{}, fmt.Errorf("failed to query run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return models.Run{}, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return models.Run{}, err
	}

	switch {
	case len(found) == 0:
		return models.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case found[0].ID == id, len(found) == 1:
		return found[0], nil
	default:
		return models.Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
	}
}

// GetRunDailyTotals returns the daily totals of a run sorted by date.
func (db *DB) GetRunDailyTotals(ctx context.Context, runID string) ([]models.DailyTotal, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_date, flex_credits, prompt_credits, data_points
		FROM run_daily_totals
		WHERE run_id = ?
		ORDER BY event_date`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []models.DailyTotal
	for rows.Next() {
		var (
			d            models.DailyTotal
			flex, prompt int64
		)
		if err := rows.Scan(&d.Date, &flex, &prompt, &d.DataPoints); err != nil {
			return nil, fmt.Errorf("failed to scan daily total: %w", err)
		}
		d.Flex = models.Credits(flex)
		d.Prompt = models.Credits(prompt)
		totals = append(totals, d)
	}

	return totals, rows.Err()
}

// GetRunModelTotals returns the per-model totals of a run, largest first.
func (db *DB) GetRunModelTotals(ctx context.Context, runID string) ([]models.ModelTotal, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT model, flex_credits
		FROM run_model_totals
		WHERE run_id = ?
		ORDER BY flex_credits DESC, model`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query model totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []models.ModelTotal
	for rows.Next() {
		var (
			m    models.ModelTotal
			flex int64
		)
		if err := rows.Scan(&m.Model, &flex); err != nil {
			return nil, fmt.Errorf("failed to scan model total: %w", err)
		}
		m.Flex = models.Credits(flex)
		totals = append(totals, m)
	}

	return totals, rows.Err()
}

// DeleteRun removes a run and its totals.
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
