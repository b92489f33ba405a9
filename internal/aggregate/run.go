package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/j-veylop/team-flex-credits/internal/logger"
	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 20

// ErrInvalidWorkers is returned for a worker count below one.
var ErrInvalidWorkers = errors.New("workers must be a positive integer")

// Fetcher returns the usage events of one user.
type Fetcher interface {
	FetchUsage(ctx context.Context, apiKey string, p period.Period) ([]models.UsageEvent, error)
}

// Progress is reported after every user completes.
type Progress struct {
	Total      int
	Processed  int
	Active     int
	Failed     int
	DataPoints int
}

// Options configures Run.
type Options struct {
	// OnProgress is called serially after each user, success or failure.
	OnProgress func(Progress)
	Workers    int
}

// Stats summarises a run.
type Stats struct {
	Users      int
	Processed  int
	Active     int
	Failed     int
	DataPoints int
}

// Failure records a user whose fetch failed.
type Failure struct {
	Err  error
	User models.User
}

// Result is the outcome of Run.
type Result struct {
	Snapshot Snapshot
	Failures []Failure
	Stats    Stats
}

// tracker serializes progress accounting across workers.
type tracker struct {
	onProgress func(Progress)
	failures   []Failure
	progress   Progress
	mu         sync.Mutex
}

func (t *tracker) done(user models.User, events int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress.Processed++
	switch {
	case err != nil:
		t.progress.Failed++
		t.failures = append(t.failures, Failure{User: user, Err: err})
	case events > 0:
		t.progress.Active++
		t.progress.DataPoints += events
	}

	if t.onProgress != nil {
		t.onProgress(t.progress)
	}
}

// Run fetches every user's usage for the period with at most opts.Workers
// requests in flight and aggregates the results. A failed user contributes
// nothing and does not stop the others. When ctx is cancelled the partial
// result is returned together with ctx.Err().
func Run(ctx context.Context, fetcher Fetcher, users []models.User, p period.Period, opts Options) (*Result, error) {
	if opts.Workers < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidWorkers, opts.Workers)
	}

	users = uniqueUsers(users)
	agg := NewAggregator()
	t := &tracker{
		onProgress: opts.OnProgress,
		progress:   Progress{Total: len(users)},
	}

	workers := pool.New().WithMaxGoroutines(opts.Workers)
	for _, user := range users {
		workers.Go(func() {
			events, err := fetcher.FetchUsage(ctx, user.APIKey, p)
			if err != nil {
				logger.Warn("failed to fetch usage", "email", user.Email, "error", err)
				t.done(user, 0, err)
				return
			}
			agg.Add(events)
			t.done(user, len(events), nil)
		})
	}
	workers.Wait()

	result := &Result{
		Snapshot: agg.Snapshot(),
		Failures: t.failures,
		Stats: Stats{
			Users:      len(users),
			Processed:  t.progress.Processed,
			Active:     t.progress.Active,
			Failed:     t.progress.Failed,
			DataPoints: t.progress.DataPoints,
		},
	}

	logger.Debug("aggregation finished",
		"users", result.Stats.Users,
		"active", result.Stats.Active,
		"failed", result.Stats.Failed,
		"data_points", result.Stats.DataPoints)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func uniqueUsers(users []models.User) []models.User {
	seen := make(map[string]bool, len(users))
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.APIKey == "" || seen[u.APIKey] {
			continue
		}
		seen[u.APIKey] = true
		out = append(out, u)
	}
	return out
}
