package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/j-veylop/team-flex-credits/internal/aggregate"
	"github.com/j-veylop/team-flex-credits/internal/config"
	"github.com/j-veylop/team-flex-credits/internal/mapping"
	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
	"github.com/j-veylop/team-flex-credits/internal/report"
)

// fakeAPI serves the analytics endpoints from canned per-key items.
type fakeAPI struct {
	items   map[string]string // api key -> responseItems JSON array
	failing map[string]int    // api key -> status code
	users   string            // userTableStats JSON array

	mu    sync.Mutex
	calls int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)

	switch r.URL.Path {
	case "/api/v1/UserPageAnalytics":
		fmt.Fprintf(w, `{"userTableStats": %s}`, f.users)
	case "/api/v1/Analytics":
		var req struct {
			QueryRequests []struct {
				Filters []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"filters"`
			} `json:"query_requests"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var key string
		for _, flt := range req.QueryRequests[0].Filters {
			if flt.Name == "api_key" {
				key = flt.Value
			}
		}
		if code, ok := f.failing[key]; ok {
			http.Error(w, "unavailable", code)
			return
		}
		items, ok := f.items[key]
		if !ok {
			items = "[]"
		}
		fmt.Fprintf(w, `{"queryResults": [{"responseItems": %s}]}`, items)
	default:
		http.NotFound(w, r)
	}
}

func item(key, date, model string, flex int) string {
	return fmt.Sprintf(`{"item": {"api_key": %q, "date": %q, "model": %q, "flex_credits_used": "%d", "prompts_used": "100"}}`,
		key, date, model, flex)
}

func threeUserAPI() *fakeAPI {
	return &fakeAPI{
		items: map[string]string{
			"key-a": "[" + item("key-a", "2025-09-01", "gpt-4", 10000) + "]",
			"key-b": "[" + item("key-b", "2025-09-01", "claude", 5000) + "]",
			"key-c": "[" + item("key-c", "2025-09-02", "gpt-4", 3000) + "]",
		},
		users: `[{"email": "a@example.com", "apiKey": "key-a"}]`,
	}
}

type harness struct {
	mgr      *Manager
	out      *bytes.Buffer
	cfg      *config.Config
	notified []string
}

func newHarness(t *testing.T, api http.Handler, history bool) *harness {
	t.Helper()

	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	tmp := t.TempDir()
	cfg := &config.Config{
		ServiceKey:     "service-key",
		APIBaseURL:     server.URL,
		OutputDir:      filepath.Join(tmp, "project", "output"),
		DatabasePath:   filepath.Join(tmp, "history.db"),
		HistoryEnabled: history,
		RequestTimeout: 5 * time.Second,
		DefaultWorkers: 20,
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}

	h := &harness{out: &bytes.Buffer{}, cfg: cfg}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC))
	mgr, err := NewManager(cfg,
		WithOutput(h.out),
		WithClock(clock),
		WithNotifier(func(title, message string) error {
			h.notified = append(h.notified, title+": "+message)
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	h.mgr = mgr
	return h
}

func (h *harness) writeMapping(t *testing.T, pairs map[string]string) string {
	t.Helper()
	path, err := mapping.Save(h.cfg.OutputDir, pairs, time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("mapping.Save failed: %v", err)
	}
	return path
}

var threePairs = map[string]string{
	"a@example.com": "key-a",
	"b@example.com": "key-b",
	"c@example.com": "key-c",
}

func september(t *testing.T) period.Period {
	t.Helper()
	p, err := period.Month(2025, 9)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestManager_RunByModel(t *testing.T) {
	h := newHarness(t, threeUserAPI(), true)
	h.writeMapping(t, threePairs)

	outcome, err := h.mgr.Run(context.Background(), Request{
		Kind:    models.ReportByModel,
		Period:  september(t),
		Workers: 2,
		Notify:  true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(outcome.Files) != 1 {
		t.Fatalf("Files = %v, want one file", outcome.Files)
	}
	wantName := "flex_credits_by_model_september_2025_2025-10-02.csv"
	if filepath.Base(outcome.Files[0]) != wantName {
		t.Errorf("file = %s, want %s", filepath.Base(outcome.Files[0]), wantName)
	}

	f, err := os.Open(outcome.Files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := report.ReadModelCSV(f)
	if err != nil {
		t.Fatalf("ReadModelCSV failed: %v", err)
	}
	if len(rows) != 3 || rows[0].Model != "gpt-4" || rows[0].Flex != 10000 {
		t.Errorf("rows = %+v", rows)
	}

	out := h.out.String()
	for _, want := range []string{"FLEX CREDITS BY MODEL - SEPTEMBER 2025", "Parallel workers: 2", "Loaded: 3 API keys", "180.00", "72.2%", "27.8%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	if outcome.RunID == "" {
		t.Fatal("expected run to be recorded")
	}
	detail, err := h.mgr.HistoryRun(context.Background(), outcome.RunID)
	if err != nil {
		t.Fatalf("HistoryRun failed: %v", err)
	}
	if detail.Run.TotalFlex != 18000 || detail.Run.Users != 3 || detail.Run.Kind != models.ReportByModel {
		t.Errorf("stored run = %+v", detail.Run)
	}
	if len(detail.Daily) != 2 || len(detail.ByModel) != 2 {
		t.Errorf("stored totals: %d days, %d models", len(detail.Daily), len(detail.ByModel))
	}

	if len(h.notified) != 1 || !strings.Contains(h.notified[0], "180.00") {
		t.Errorf("notifications = %v", h.notified)
	}
}

func TestManager_RunBothWritesTwoFiles(t *testing.T) {
	api := threeUserAPI()
	h := newHarness(t, api, false)
	h.writeMapping(t, threePairs)

	outcome, err := h.mgr.Run(context.Background(), Request{Kind: models.ReportBoth, Period: september(t), Workers: 5})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcome.Files) != 2 {
		t.Fatalf("Files = %v, want two", outcome.Files)
	}
	if got := filepath.Base(outcome.Files[0]); got != "team_daily_flex_credits_september_2025_2025-10-02.csv" {
		t.Errorf("daily file = %s", got)
	}
	if api.calls != 3 {
		t.Errorf("API calls = %d, want 3 (one fetch per user)", api.calls)
	}
	if outcome.RunID != "" {
		t.Errorf("history disabled but RunID = %q", outcome.RunID)
	}
	if _, err := h.mgr.History(context.Background(), 10); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("History err = %v, want ErrHistoryDisabled", err)
	}
	if len(h.notified) != 0 {
		t.Errorf("unexpected notifications: %v", h.notified)
	}
}

func TestManager_RunMonthly(t *testing.T) {
	api := threeUserAPI()
	api.items["key-c"] = "[" + item("key-c", "2025-10-02", "gpt-4", 3000) + "]"
	h := newHarness(t, api, false)
	h.writeMapping(t, threePairs)

	span, err := period.Months(2025, 9, 10)
	if err != nil {
		t.Fatal(err)
	}
	outcome, err := h.mgr.Run(context.Background(), Request{Kind: models.ReportMonthly, Period: span, Workers: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcome.Files) != 1 || filepath.Base(outcome.Files[0]) != "team_monthly_credits_202509_to_202510_2025-10-02.csv" {
		t.Fatalf("Files = %v", outcome.Files)
	}

	f, err := os.Open(outcome.Files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := report.ReadMonthlyCSV(f)
	if err != nil {
		t.Fatalf("ReadMonthlyCSV failed: %v", err)
	}
	if len(rows) != 2 || rows[0].Flex != 15000 || rows[1].Flex != 3000 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestManager_FailingUserContributesZero(t *testing.T) {
	api := threeUserAPI()
	api.failing = map[string]int{"key-b": http.StatusTooManyRequests}
	h := newHarness(t, api, false)
	h.writeMapping(t, threePairs)

	outcome, err := h.mgr.Run(context.Background(), Request{Kind: models.ReportDaily, Period: september(t), Workers: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	stats := outcome.Result.Stats
	if stats.Processed != 3 || stats.Failed != 1 {
		t.Errorf("Stats = %+v", stats)
	}
	if got := outcome.Result.Snapshot.TotalFlex(); got != 13000 {
		t.Errorf("TotalFlex = %s, want 130.00", got)
	}
}

func TestManager_RunNoData(t *testing.T) {
	h := newHarness(t, &fakeAPI{}, true)
	h.writeMapping(t, threePairs)

	outcome, err := h.mgr.Run(context.Background(), Request{Kind: models.ReportDaily, Period: september(t), Workers: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !outcome.Empty() || len(outcome.Files) != 0 {
		t.Errorf("expected empty outcome, got %+v", outcome)
	}
	if !strings.Contains(h.out.String(), "No usage data found") {
		t.Error("missing no-data notice")
	}
	entries, _ := os.ReadDir(h.cfg.OutputDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".csv") {
			t.Errorf("unexpected CSV %s", e.Name())
		}
	}
}

func TestManager_RunGeneratesMissingMapping(t *testing.T) {
	h := newHarness(t, threeUserAPI(), false)

	outcome, err := h.mgr.Run(context.Background(), Request{Kind: models.ReportDaily, Period: september(t), Workers: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if filepath.Base(outcome.MappingFile) != "email_api_mapping_2025-10-02.json" {
		t.Errorf("MappingFile = %s", outcome.MappingFile)
	}
	if outcome.Result.Stats.Users != 1 {
		t.Errorf("Users = %d, want 1", outcome.Result.Stats.Users)
	}
}

func TestManager_RunErrors(t *testing.T) {
	h := newHarness(t, &fakeAPI{users: "[]"}, false)

	_, err := h.mgr.Run(context.Background(), Request{Kind: models.ReportDaily, Period: september(t), Workers: 0})
	if !errors.Is(err, aggregate.ErrInvalidWorkers) {
		t.Errorf("workers=0 err = %v", err)
	}

	_, err = h.mgr.Run(context.Background(), Request{Kind: "weekly", Period: september(t), Workers: 1})
	if err == nil {
		t.Error("expected error for unknown kind")
	}

	_, err = h.mgr.Run(context.Background(), Request{Kind: models.ReportDaily, Period: september(t), Workers: 1})
	if !errors.Is(err, mapping.ErrNotFound) {
		t.Errorf("missing mapping err = %v, want ErrNotFound", err)
	}

	_, err = h.mgr.Run(context.Background(), Request{
		Kind:        models.ReportDaily,
		Period:      september(t),
		Workers:     1,
		MappingFile: filepath.Join(t.TempDir(), "nope.json"),
	})
	if !errors.Is(err, mapping.ErrNotFound) {
		t.Errorf("explicit missing mapping err = %v, want ErrNotFound", err)
	}
}

func TestManager_RunCancelled(t *testing.T) {
	h := newHarness(t, threeUserAPI(), false)
	h.writeMapping(t, threePairs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.mgr.Run(ctx, Request{Kind: models.ReportDaily, Period: september(t), Workers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestManager_GenerateMapping(t *testing.T) {
	h := newHarness(t, threeUserAPI(), false)

	path, err := h.mgr.GenerateMapping(context.Background())
	if err != nil {
		t.Fatalf("GenerateMapping failed: %v", err)
	}
	users, err := mapping.Load(path)
	if err != nil {
		t.Fatalf("mapping.Load failed: %v", err)
	}
	if len(users) != 1 || users[0].APIKey != "key-a" {
		t.Errorf("users = %+v", users)
	}
}

func TestManager_HistoryAndDelete(t *testing.T) {
	h := newHarness(t, threeUserAPI(), true)
	h.writeMapping(t, threePairs)

	outcome, err := h.mgr.Run(context.Background(), Request{Kind: models.ReportDaily, Period: september(t), Workers: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	runs, err := h.mgr.History(context.Background(), 5)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != outcome.RunID {
		t.Fatalf("runs = %+v", runs)
	}

	// Grow the run so deleting it leaves free pages behind.
	var daily []models.DailyTotal
	for i := 0; i < 3000; i++ {
		daily = append(daily, models.DailyTotal{Date: fmt.Sprintf("2025-09-01-%04d", i), Flex: 1})
	}
	big := &models.Run{ID: "bulk-run", Kind: models.ReportDaily, StartDate: "2025-09-01", EndDate: "2025-09-30"}
	if err := h.mgr.database.SaveRun(context.Background(), big, daily, nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if _, err := h.mgr.DeleteRun(context.Background(), "bulk-run"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	var free int
	if err := h.mgr.database.QueryRowContext(context.Background(), "PRAGMA freelist_count").Scan(&free); err != nil {
		t.Fatal(err)
	}
	if free != 0 {
		t.Errorf("freelist_count = %d after delete, want 0 (database not compacted)", free)
	}

	deleted, err := h.mgr.DeleteRun(context.Background(), outcome.RunID[:8])
	if err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if deleted != outcome.RunID {
		t.Errorf("deleted = %s, want %s", deleted, outcome.RunID)
	}
	runs, _ = h.mgr.History(context.Background(), 5)
	if len(runs) != 0 {
		t.Errorf("runs after delete = %+v", runs)
	}
}

func TestManager_PlainProgressLines(t *testing.T) {
	h := newHarness(t, threeUserAPI(), false)
	h.writeMapping(t, threePairs)

	if _, err := h.mgr.Run(context.Background(), Request{Kind: models.ReportDaily, Period: september(t), Workers: 1}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out := h.out.String()
	if n := strings.Count(out, "Progress: "); n != 3 {
		t.Errorf("progress lines = %d, want 3:\n%s", n, out)
	}
	if !strings.Contains(out, "Progress: 3/3 users | active 3") {
		t.Errorf("missing final progress line:\n%s", out)
	}
}

func TestProgressStep(t *testing.T) {
	tests := []struct {
		total, want int
	}{
		{0, 1},
		{3, 1},
		{10, 1},
		{25, 2},
		{200, 20},
	}
	for _, tt := range tests {
		if got := progressStep(tt.total); got != tt.want {
			t.Errorf("progressStep(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}
