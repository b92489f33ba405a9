// Package services orchestrates a report run end to end.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gen2brain/beeep"
	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-isatty"

	"github.com/j-veylop/team-flex-credits/internal/aggregate"
	"github.com/j-veylop/team-flex-credits/internal/analytics"
	"github.com/j-veylop/team-flex-credits/internal/config"
	"github.com/j-veylop/team-flex-credits/internal/db"
	"github.com/j-veylop/team-flex-credits/internal/logger"
	"github.com/j-veylop/team-flex-credits/internal/mapping"
	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/report"
	"github.com/j-veylop/team-flex-credits/internal/ui/components"
)

// ErrHistoryDisabled is returned by history queries when no database is open.
var ErrHistoryDisabled = errors.New("run history is disabled")

// Notifier shows a desktop notification.
type Notifier func(title, message string) error

func beeepNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for file names and history timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithOutput sets where console output is written.
func WithOutput(w io.Writer) Option {
	return func(m *Manager) { m.out = w }
}

// WithFetcher replaces the usage fetcher.
func WithFetcher(f aggregate.Fetcher) Option {
	return func(m *Manager) { m.fetcher = f }
}

// WithUserSource replaces the source used to generate mapping files.
func WithUserSource(s mapping.UserSource) Option {
	return func(m *Manager) { m.users = s }
}

// WithNotifier replaces the desktop notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notify = n }
}

// WithDatabase uses an already open history database.
func WithDatabase(d *db.DB) Option {
	return func(m *Manager) { m.database = d }
}

// Manager runs reports.
type Manager struct {
	cfg      *config.Config
	fetcher  aggregate.Fetcher
	users    mapping.UserSource
	database *db.DB
	clock    clockwork.Clock
	out      io.Writer
	printer  *report.Printer
	notify   Notifier
	live     bool
}

// NewManager creates a manager wired to the analytics API described by cfg.
// History is kept in cfg.DatabasePath when enabled; a database that cannot
// be opened disables history instead of failing.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	client := analytics.New(analytics.Config{
		BaseURL:      cfg.APIBaseURL,
		ServiceKey:   cfg.ServiceKey,
		Timeout:      cfg.RequestTimeout,
		RetryBackoff: cfg.RetryBackoff,
		MaxRetries:   cfg.MaxRetries,
	})

	m := &Manager{
		cfg:     cfg,
		fetcher: client,
		users:   client,
		clock:   clockwork.NewRealClock(),
		out:     os.Stdout,
		notify:  beeepNotify,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.database == nil && cfg.HistoryEnabled && cfg.DatabasePath != "" {
		database, err := db.New(cfg.DatabasePath)
		if err != nil {
			logger.Warn("run history disabled", "path", cfg.DatabasePath, "error", err)
		} else {
			m.database = database
		}
	}

	if f, ok := m.out.(*os.File); ok {
		m.live = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	m.printer = report.NewPrinter(m.out)

	return m, nil
}

// Printer returns the console printer used by the manager.
func (m *Manager) Printer() *report.Printer {
	return m.printer
}

// Close releases the history database.
func (m *Manager) Close() error {
	if m.database != nil {
		return m.database.Close()
	}
	return nil
}

func (m *Manager) generator() *mapping.Generator {
	if m.users == nil {
		return nil
	}
	return &mapping.Generator{Source: m.users, Clock: m.clock, Dir: m.cfg.OutputDir}
}

// GenerateMapping fetches the users active in the last 30 days and writes a
// new mapping file to the output directory.
func (m *Manager) GenerateMapping(ctx context.Context) (string, error) {
	gen := m.generator()
	if gen == nil {
		return "", errors.New("no user source configured")
	}
	return gen.Generate(ctx)
}

// LoadUsers resolves the mapping file (explicit, latest, or generated) and
// loads its users.
func (m *Manager) LoadUsers(ctx context.Context, explicit string) (string, []models.User, error) {
	path, err := mapping.Resolve(ctx, explicit, m.cfg.MappingSearchDirs(), m.generator())
	if err != nil {
		return "", nil, err
	}
	users, err := mapping.Load(path)
	if err != nil {
		return path, nil, err
	}
	return path, users, nil
}

func (m *Manager) progressFunc() func(aggregate.Progress) {
	if !m.live {
		return func(p aggregate.Progress) {
			logger.Debug("progress", "processed", p.Processed, "total", p.Total, "active", p.Active)
			if p.Processed%progressStep(p.Total) == 0 || p.Processed == p.Total {
				fmt.Fprintf(m.out, "Progress: %d/%d users | active %d | data points %d\n",
					p.Processed, p.Total, p.Active, p.DataPoints)
			}
		}
	}
	line := components.NewProgressLine(30)
	return func(p aggregate.Progress) {
		fmt.Fprint(m.out, "\r\033[K"+line.View(p))
		if p.Processed == p.Total {
			fmt.Fprintln(m.out)
		}
	}
}

// progressStep spaces plain progress lines to roughly one per tenth of the team.
func progressStep(total int) int {
	return max(total/10, 1)
}

func (m *Manager) notifyDone(kind models.ReportKind, label string, snap aggregate.Snapshot, stats aggregate.Stats) {
	msg := fmt.Sprintf("%s: %s flex credits across %d active users",
		label, report.FormatCredits(snap.TotalFlex()), stats.Active)
	if err := m.notify("Flex credits report ready ("+string(kind)+")", msg); err != nil {
		logger.Warn("failed to send notification", "error", err)
	}
}
