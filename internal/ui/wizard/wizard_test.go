package wizard

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
)

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	upKey    = tea.KeyMsg{Type: tea.KeyUp}
	downKey  = tea.KeyMsg{Type: tea.KeyDown}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
	ctrlC    = tea.KeyMsg{Type: tea.KeyCtrlC}
)

func newTestModel(latest string) Model {
	return New(Options{
		Now:            time.Date(2025, 10, 2, 12, 0, 0, 0, time.UTC),
		LatestMapping:  latest,
		DefaultWorkers: 20,
	})
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		var ok bool
		m, ok = next.(Model)
		if !ok {
			t.Fatalf("Update returned %T", next)
		}
	}
	return m
}

func typeValue(t *testing.T, m Model, value string) Model {
	t.Helper()
	if !m.isInputStep() {
		t.Fatalf("step %d is not an input step", m.step)
	}
	m.input.SetValue(value)
	return press(t, m, enterKey)
}

func TestWizard_ByModelSpecificMonth(t *testing.T) {
	m := newTestModel("output/email_api_mapping_2025-09-30.json")

	m = press(t, m, downKey, enterKey) // by-model
	if m.step != stepRange {
		t.Fatalf("step = %d, want range", m.step)
	}
	m = press(t, m, enterKey) // specific month
	if m.step != stepYear || m.input.Value() != "2025" {
		t.Fatalf("step = %d value = %q, want year prefilled with 2025", m.step, m.input.Value())
	}
	m = typeValue(t, m, "2025")
	if m.step != stepMonth || m.cursor != 9 {
		t.Fatalf("step = %d cursor = %d, want month step on October", m.step, m.cursor)
	}
	m = press(t, m, upKey, enterKey) // September
	if m.step != stepWorkers || WorkerChoices[m.cursor] != 20 {
		t.Fatalf("step = %d cursor = %d, want workers preselected at 20", m.step, m.cursor)
	}
	m = press(t, m, enterKey)
	if m.step != stepMapping {
		t.Fatalf("step = %d, want mapping", m.step)
	}
	m = press(t, m, enterKey) // use latest
	if m.step != stepConfirm {
		t.Fatalf("step = %d, want confirm", m.step)
	}

	view := m.View()
	for _, want := range []string{"Breakdown by model", "2025-09-01 to 2025-09-30", "Workers:  20", "email_api_mapping_2025-09-30.json"} {
		if !strings.Contains(view, want) {
			t.Errorf("confirm view missing %q:\n%s", want, view)
		}
	}

	m = press(t, m, enterKey)
	if !m.Done() || m.Cancelled() {
		t.Fatal("wizard should be done")
	}

	sel := m.Selection()
	want, _ := period.Month(2025, 9)
	if sel.Kind != models.ReportByModel || sel.Period != want || sel.Workers != 20 {
		t.Errorf("Selection = %+v", sel)
	}
	if sel.MappingFile != "output/email_api_mapping_2025-09-30.json" {
		t.Errorf("MappingFile = %q", sel.MappingFile)
	}
}

func TestWizard_MonthlyRange(t *testing.T) {
	m := newTestModel("")

	m = press(t, m, downKey, downKey, enterKey) // monthly
	if m.step != stepYear {
		t.Fatalf("monthly should skip the range step, step = %d", m.step)
	}
	m = typeValue(t, m, "2025")
	if m.step != stepStartMonth {
		t.Fatalf("step = %d, want start month", m.step)
	}
	m = press(t, m, downKey, downKey, downKey, downKey, downKey, enterKey) // June
	if m.step != stepEndMonth {
		t.Fatalf("step = %d, want end month", m.step)
	}
	if opts := m.options(); len(opts) != 7 || opts[0].value != 6 {
		t.Errorf("end month options should start at June, got %+v", opts)
	}
	m = press(t, m, downKey, downKey, downKey, downKey, enterKey) // October
	m = press(t, m, upKey, enterKey)                              // 30 workers
	if m.step != stepConfirm {
		t.Fatalf("no mapping file: step = %d, want confirm", m.step)
	}
	m = press(t, m, enterKey)

	sel := m.Selection()
	want, _ := period.Months(2025, 6, 10)
	if sel.Kind != models.ReportMonthly || sel.Period != want || sel.Workers != 30 || sel.MappingFile != "" {
		t.Errorf("Selection = %+v", sel)
	}
}

func TestWizard_CustomRangeValidation(t *testing.T) {
	m := newTestModel("")

	m = press(t, m, enterKey)          // daily
	m = press(t, m, downKey, enterKey) // custom range
	if m.step != stepStartDate {
		t.Fatalf("step = %d, want start date", m.step)
	}

	m = typeValue(t, m, "2025-13-01")
	if m.step != stepStartDate || !strings.Contains(m.err, "YYYY-MM-DD") {
		t.Fatalf("bad start date accepted: step = %d err = %q", m.step, m.err)
	}
	if !strings.Contains(m.View(), "please use YYYY-MM-DD") {
		t.Error("error not shown in view")
	}

	m = typeValue(t, m, "2025-09-01")
	m = typeValue(t, m, "2025-08-01")
	if m.step != stepEndDate || m.err == "" {
		t.Fatalf("end before start accepted: step = %d", m.step)
	}

	m = typeValue(t, m, "2025-09-15")
	if m.step != stepWorkers {
		t.Fatalf("step = %d, want workers", m.step)
	}
	m = press(t, m, downKey, enterKey, enterKey) // 10 workers, confirm

	sel := m.Selection()
	want, _ := period.Between("2025-09-01", "2025-09-15")
	if sel.Kind != models.ReportDaily || sel.Period != want || sel.Workers != 10 {
		t.Errorf("Selection = %+v", sel)
	}
}

func TestWizard_YearValidation(t *testing.T) {
	m := newTestModel("")
	m = press(t, m, enterKey, enterKey)

	for _, bad := range []string{"2019", "2031", "abcd", ""} {
		m = typeValue(t, m, bad)
		if m.step != stepYear || m.err == "" {
			t.Errorf("year %q accepted", bad)
		}
	}
}

func TestWizard_MappingPath(t *testing.T) {
	m := newTestModel("output/latest.json")
	m = press(t, m, downKey, downKey, downKey, enterKey) // both
	m = press(t, m, enterKey)                            // specific month
	m = typeValue(t, m, "2025")
	m = press(t, m, enterKey, enterKey) // October, 20 workers
	m = press(t, m, downKey, enterKey)  // enter a path
	if m.step != stepMappingPath {
		t.Fatalf("step = %d, want mapping path", m.step)
	}
	m = typeValue(t, m, "")
	if m.step != stepMappingPath || m.err == "" {
		t.Fatal("empty path accepted")
	}
	m = typeValue(t, m, "/tmp/custom.json")
	m = press(t, m, enterKey)

	sel := m.Selection()
	if sel.Kind != models.ReportBoth || sel.MappingFile != "/tmp/custom.json" {
		t.Errorf("Selection = %+v", sel)
	}
}

func TestWizard_BackAndCancel(t *testing.T) {
	m := newTestModel("")
	m = press(t, m, downKey, enterKey, enterKey)
	if m.step != stepYear {
		t.Fatalf("step = %d, want year", m.step)
	}

	m = press(t, m, escKey)
	if m.step != stepRange {
		t.Fatalf("esc: step = %d, want range", m.step)
	}
	m = press(t, m, escKey)
	if m.step != stepKind {
		t.Fatalf("esc: step = %d, want kind", m.step)
	}
	m = press(t, m, escKey)
	if !m.Cancelled() {
		t.Error("esc on first step should cancel")
	}

	m = press(t, newTestModel(""), downKey, ctrlC)
	if !m.Cancelled() || m.Done() {
		t.Error("ctrl+c should cancel")
	}
	if m.View() != "" {
		t.Error("cancelled wizard should render nothing")
	}
}

func TestWizard_ExitAndDecline(t *testing.T) {
	m := newTestModel("")
	for range models.ReportKinds {
		m = press(t, m, downKey)
	}
	m = press(t, m, enterKey)
	if !m.Cancelled() {
		t.Error("Exit option should cancel")
	}

	m = newTestModel("")
	m = press(t, m, enterKey, enterKey)
	m = typeValue(t, m, "2025")
	m = press(t, m, enterKey, enterKey) // month, workers
	m = press(t, m, downKey, enterKey)  // Cancel
	if !m.Cancelled() || m.Done() {
		t.Error("declining confirmation should cancel")
	}
}

func TestWizard_CursorBounds(t *testing.T) {
	m := newTestModel("")
	m = press(t, m, upKey, upKey)
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
	for range 20 {
		m = press(t, m, downKey)
	}
	if m.cursor != len(m.options())-1 {
		t.Errorf("cursor = %d, want last option", m.cursor)
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"2025", 2025, false},
		{" 2020 ", 2020, false},
		{"2030", 2030, false},
		{"2019", 0, true},
		{"20x5", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseYear(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseYear(%q) err = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidYear) {
			t.Errorf("ParseYear(%q) err = %v, want ErrInvalidYear", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseYear(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestConfirmModel(t *testing.T) {
	tests := []struct {
		name string
		def  bool
		key  tea.KeyMsg
		want bool
	}{
		{"yes", false, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}}, true},
		{"no", true, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}}, false},
		{"enter keeps default true", true, enterKey, true},
		{"enter keeps default false", false, enterKey, false},
		{"esc declines", true, escKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfirm("Run another analysis?", tt.def)
			if !strings.Contains(c.View(), "Run another analysis?") {
				t.Errorf("View = %q", c.View())
			}
			next, cmd := c.Update(tt.key)
			if cmd == nil {
				t.Error("expected quit command")
			}
			got := next.(ConfirmModel)
			if got.Answer() != tt.want {
				t.Errorf("Answer = %v, want %v", got.Answer(), tt.want)
			}
		})
	}

	c := NewConfirm("?", true)
	next, cmd := c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if cmd != nil || next.(ConfirmModel).done {
		t.Error("unrelated key should be ignored")
	}
}
