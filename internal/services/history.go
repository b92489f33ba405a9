package services

import (
	"context"

	"github.com/j-veylop/team-flex-credits/internal/logger"
	"github.com/j-veylop/team-flex-credits/internal/models"
)

// RunDetail is a stored run with its totals.
type RunDetail struct {
	Run     models.Run
	Daily   []models.DailyTotal
	ByModel []models.ModelTotal
}

// History returns the most recent runs, newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]models.Run, error) {
	if m.database == nil {
		return nil, ErrHistoryDisabled
	}
	return m.database.ListRuns(ctx, limit)
}

// HistoryRun returns one stored run by ID or unique ID prefix.
func (m *Manager) HistoryRun(ctx context.Context, id string) (*RunDetail, error) {
	if m.database == nil {
		return nil, ErrHistoryDisabled
	}

	run, err := m.database.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	daily, err := m.database.GetRunDailyTotals(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	byModel, err := m.database.GetRunModelTotals(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	return &RunDetail{Run: run, Daily: daily, ByModel: byModel}, nil
}

// DeleteRun removes a stored run by ID or unique ID prefix and compacts the
// database file.
func (m *Manager) DeleteRun(ctx context.Context, id string) (string, error) {
	if m.database == nil {
		return "", ErrHistoryDisabled
	}

	run, err := m.database.GetRun(ctx, id)
	if err != nil {
		return "", err
	}
	if err := m.database.DeleteRun(ctx, run.ID); err != nil {
		return "", err
	}
	if err := m.database.Vacuum(); err != nil {
		logger.Warn("failed to compact run history", "error", err)
	}
	return run.ID, nil
}
