// Package mapping loads, discovers and generates the email to API key
// mapping file that lists the team.
package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/j-veylop/team-flex-credits/internal/logger"
	"github.com/j-veylop/team-flex-credits/internal/models"
)

const (
	filePrefix  = "email_api_mapping_"
	filePattern = filePrefix + "*.json"

	// lookback is how far back Generate looks for active users.
	lookback = 30 * 24 * time.Hour
)

var (
	// ErrNotFound is returned when no mapping file exists.
	ErrNotFound = errors.New("no email_api_mapping file found")
	// ErrEmpty is returned when a mapping contains no users.
	ErrEmpty = errors.New("no email-API key pairs found")
)

// Load reads a mapping file ({"email": "api key", ...}) and returns its users
// sorted by email. Users sharing an API key are collapsed to the first email.
func Load(path string) ([]models.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var pairs map[string]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}

	users := FromPairs(pairs)
	if len(users) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrEmpty, path)
	}
	return users, nil
}

// FromPairs converts email to API key pairs into users, sorted by email and
// unique by API key. Blank entries are skipped.
func FromPairs(pairs map[string]string) []models.User {
	emails := make([]string, 0, len(pairs))
	for email := range pairs {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	seen := make(map[string]bool, len(pairs))
	users := make([]models.User, 0, len(pairs))
	for _, email := range emails {
		key := pairs[email]
		if email == "" || key == "" || seen[key] {
			continue
		}
		seen[key] = true
		users = append(users, models.User{Email: email, APIKey: key})
	}
	return users
}

// FindLatest returns the newest mapping file in the first directory that has
// any, or "" when none of the directories contain one.
func FindLatest(dirs ...string) string {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		files, err := filepath.Glob(filepath.Join(dir, filePattern))
		if err != nil || len(files) == 0 {
			continue
		}
		// Names embed YYYY-MM-DD, so lexical order is chronological.
		sort.Strings(files)
		return files[len(files)-1]
	}
	return ""
}

// FindAll returns every mapping file in the given directories, oldest first.
func FindAll(dirs ...string) []string {
	seen := make(map[string]bool)
	var all []string
	for _, dir := range dirs {
		files, _ := filepath.Glob(filepath.Join(dir, filePattern))
		for _, f := range files {
			if abs, err := filepath.Abs(f); err == nil {
				f = abs
			}
			if !seen[f] {
				seen[f] = true
				all = append(all, f)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return filepath.Base(all[i]) < filepath.Base(all[j])
	})
	return all
}

// Save writes pairs to dir as email_api_mapping_<YYYY-MM-DD>.json.
func Save(dir string, pairs map[string]string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create mapping directory: %w", err)
	}

	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode mapping: %w", err)
	}

	path := filepath.Join(dir, filePrefix+now.Format("2006-01-02")+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write mapping file: %w", err)
	}
	return path, nil
}

// UserSource lists the users active in a time window.
type UserSource interface {
	FetchUserTable(ctx context.Context, start, end time.Time) (map[string]string, error)
}

// Generator builds a mapping file from the users active in the last 30 days.
type Generator struct {
	Source UserSource
	Clock  clockwork.Clock
	Dir    string
}

// Generate fetches the user table and saves it, returning the file path.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	clock := g.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	now := clock.Now()

	logger.Info("generating email API mapping",
		"from", now.Add(-lookback).Format("2006-01-02"), "to", now.Format("2006-01-02"))

	pairs, err := g.Source.FetchUserTable(ctx, now.Add(-lookback), now)
	if err != nil {
		return "", fmt.Errorf("failed to fetch user table: %w", err)
	}
	if len(pairs) == 0 {
		return "", ErrEmpty
	}

	path, err := Save(g.Dir, pairs, now)
	if err != nil {
		return "", err
	}
	logger.Info("saved email API mapping", "path", path, "users", len(pairs))
	return path, nil
}

// Resolve picks the mapping file for a run: the explicit path when given,
// otherwise the latest file in dirs, otherwise a freshly generated one when
// gen is non-nil.
func Resolve(ctx context.Context, explicit string, dirs []string, gen *Generator) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, explicit)
		}
		return explicit, nil
	}

	if latest := FindLatest(dirs...); latest != "" {
		return latest, nil
	}

	if gen == nil {
		return "", ErrNotFound
	}
	logger.Warn("no email_api_mapping file found, attempting to generate one")
	path, err := gen.Generate(ctx)
	if err != nil {
		return "", fmt.Errorf("%w and generation failed: %w", ErrNotFound, err)
	}
	return path, nil
}
