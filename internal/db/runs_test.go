package db

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/j-veylop/team-flex-credits/internal/models"
)

func sampleRun(id string, created time.Time) *models.Run {
	return &models.Run{
		ID:         id,
		CreatedAt:  created,
		Kind:       models.ReportBoth,
		StartDate:  "2025-09-01",
		EndDate:    "2025-09-30",
		Workers:    20,
		Users:      3,
		Active:     2,
		Failed:     1,
		DataPoints: 3,
		TotalFlex:  18000,
	}
}

func TestSaveRun_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	created := time.Date(2025, 10, 2, 9, 30, 0, 0, time.UTC)
	run := sampleRun("", created)
	daily := []models.DailyTotal{
		{Date: "2025-09-02", Flex: 3000, Prompt: 100, DataPoints: 1},
		{Date: "2025-09-01", Flex: 15000, Prompt: 600, DataPoints: 2},
	}
	byModel := []models.ModelTotal{
		{Model: "claude", Flex: 5000},
		{Model: "gpt-4", Flex: 13000},
	}

	if err := db.SaveRun(ctx, run, daily, byModel); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("SaveRun should assign an ID")
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if !reflect.DeepEqual(got, *run) {
		t.Errorf("GetRun = %+v, want %+v", got, *run)
	}

	gotDaily, err := db.GetRunDailyTotals(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRunDailyTotals failed: %v", err)
	}
	wantDaily := []models.DailyTotal{daily[1], daily[0]}
	if !reflect.DeepEqual(gotDaily, wantDaily) {
		t.Errorf("daily = %+v, want %+v", gotDaily, wantDaily)
	}

	gotModels, err := db.GetRunModelTotals(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRunModelTotals failed: %v", err)
	}
	wantModels := []models.ModelTotal{byModel[1], byModel[0]}
	if !reflect.DeepEqual(gotModels, wantModels) {
		t.Errorf("models = %+v, want %+v", gotModels, wantModels)
	}
}

func TestSaveRun_DefaultsCreatedAt(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	run := sampleRun("run-1", time.Time{})
	before := time.Now().UTC().Add(-time.Second)
	if err := db.SaveRun(context.Background(), run, nil, nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if run.CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want now", run.CreatedAt)
	}
}

func TestSaveRun_DuplicateIDRollsBack(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	first := sampleRun("dup", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	if err := db.SaveRun(ctx, first, []models.DailyTotal{{Date: "2025-09-01", Flex: 1}}, nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	second := sampleRun("dup", time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC))
	err := db.SaveRun(ctx, second, []models.DailyTotal{{Date: "2025-09-05", Flex: 2}}, nil)
	if err == nil {
		t.Fatal("expected error for duplicate run ID")
	}

	daily, err := db.GetRunDailyTotals(ctx, "dup")
	if err != nil {
		t.Fatalf("GetRunDailyTotals failed: %v", err)
	}
	if len(daily) != 1 || daily[0].Date != "2025-09-01" {
		t.Errorf("daily totals changed by failed save: %+v", daily)
	}
}

func TestListRuns(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	base := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := db.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour)), nil, nil); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", id, err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 10, []string{"c", "b", "a"}},
		{"limited", 2, []string{"c", "b"}},
		{"default limit", 0, []string{"c", "b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := db.ListRuns(ctx, tt.limit)
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			var ids []string
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestGetRun_Prefix(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	for _, id := range []string{"abc123", "abd456", "abc"} {
		if err := db.SaveRun(ctx, sampleRun(id, time.Now()), nil, nil); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", id, err)
		}
	}

	tests := []struct {
		query   string
		wantID  string
		wantErr error
	}{
		{"abd", "abd456", nil},
		{"abc", "abc", nil},
		{"abc1", "abc123", nil},
		{"ab", "", ErrAmbiguousRun},
		{"zzz", "", ErrRunNotFound},
		{"", "", ErrRunNotFound},
		{"%", "", ErrRunNotFound},
		{"_", "", ErrRunNotFound},
		{"a_c", "", ErrRunNotFound},
		{"ab%", "", ErrRunNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			run, err := db.GetRun(ctx, tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetRun failed: %v", err)
			}
			if run.ID != tt.wantID {
				t.Errorf("ID = %s, want %s", run.ID, tt.wantID)
			}
		})
	}
}

func TestDeleteRun(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	run := sampleRun("gone", time.Now())
	if err := db.SaveRun(ctx, run, []models.DailyTotal{{Date: "2025-09-01", Flex: 5}}, []models.ModelTotal{{Model: "m", Flex: 5}}); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	if err := db.DeleteRun(ctx, "gone"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := db.GetRun(ctx, "gone"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun after delete err = %v", err)
	}
	daily, err := db.GetRunDailyTotals(ctx, "gone")
	if err != nil {
		t.Fatalf("GetRunDailyTotals failed: %v", err)
	}
	if len(daily) != 0 {
		t.Errorf("daily totals not cascaded: %+v", daily)
	}

	if err := db.DeleteRun(ctx, "gone"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second delete err = %v, want ErrRunNotFound", err)
	}
}
