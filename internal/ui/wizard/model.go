// Package wizard implements the interactive report wizard.
package wizard

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
)

// Year bounds accepted by the wizard.
const (
	MinYear = 2020
	MaxYear = 2030
)

// WorkerChoices are the worker counts offered, fastest first.
var WorkerChoices = []int{50, 30, 20, 10}

type step int

const (
	stepKind step = iota
	stepRange
	stepYear
	stepMonth
	stepStartMonth
	stepEndMonth
	stepStartDate
	stepEndDate
	stepWorkers
	stepMapping
	stepMappingPath
	stepConfirm
)

type rangeMode int

const (
	rangeMonth rangeMode = iota
	rangeCustom
	rangeMonths
)

// Selection is what the user chose.
type Selection struct {
	Kind        models.ReportKind
	Period      period.Period
	Workers     int
	MappingFile string
}

// Options configures a new wizard.
type Options struct {
	// Now is used for the default year and month.
	Now time.Time
	// LatestMapping is the newest mapping file found, if any.
	LatestMapping string
	// DefaultWorkers is preselected in the workers step.
	DefaultWorkers int
}

type option struct {
	label string
	value int
}

// Model is the wizard's Bubble Tea model.
type Model struct {
	keymap  KeyMap
	input   textinput.Model
	opts    Options
	history []step
	step    step
	cursor  int
	err     string

	kind        models.ReportKind
	mode        rangeMode
	year        int
	month       int
	startMonth  int
	endMonth    int
	startDate   string
	endDate     string
	workers     int
	mappingFile string
	period      period.Period

	done      bool
	cancelled bool
}

// New creates a wizard at its first step.
func New(opts Options) Model {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.DefaultWorkers < 1 {
		opts.DefaultWorkers = 20
	}

	ti := textinput.New()
	ti.CharLimit = 10
	ti.Width = 20

	return Model{
		keymap:  DefaultKeyMap(),
		input:   ti,
		opts:    opts,
		step:    stepKind,
		year:    opts.Now.Year(),
		month:   int(opts.Now.Month()),
		workers: opts.DefaultWorkers,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Done reports whether the user confirmed a selection.
func (m Model) Done() bool {
	return m.done
}

// Cancelled reports whether the user quit the wizard.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Selection returns the confirmed selection.
func (m Model) Selection() Selection {
	return Selection{
		Kind:        m.kind,
		Period:      m.period,
		Workers:     m.workers,
		MappingFile: m.mappingFile,
	}
}

func (m Model) isInputStep() bool {
	switch m.step {
	case stepYear, stepStartDate, stepEndDate, stepMappingPath:
		return true
	}
	return false
}

// options returns the choices of a list step.
func (m Model) options() []option {
	switch m.step {
	case stepKind:
		opts := make([]option, 0, len(models.ReportKinds)+1)
		for i, k := range models.ReportKinds {
			opts = append(opts, option{label: k.Description(), value: i})
		}
		return append(opts, option{label: "Exit", value: -1})
	case stepRange:
		return []option{
			{label: "Specific month", value: int(rangeMonth)},
			{label: "Custom date range", value: int(rangeCustom)},
		}
	case stepMonth, stepStartMonth:
		return monthOptions(1)
	case stepEndMonth:
		return monthOptions(m.startMonth)
	case stepWorkers:
		opts := make([]option, len(WorkerChoices))
		for i, w := range WorkerChoices {
			opts[i] = option{label: workerLabel(w), value: w}
		}
		return opts
	case stepMapping:
		return []option{
			{label: "Use latest: " + filepath.Base(m.opts.LatestMapping), value: 0},
			{label: "Enter a path", value: 1},
		}
	case stepConfirm:
		return []option{
			{label: "Run analysis", value: 1},
			{label: "Cancel", value: 0},
		}
	}
	return nil
}

func monthOptions(from int) []option {
	opts := make([]option, 0, 13-from)
	for mo := from; mo <= 12; mo++ {
		opts = append(opts, option{label: fmt.Sprintf("%s (%d)", time.Month(mo), mo), value: mo})
	}
	return opts
}

func workerLabel(w int) string {
	switch w {
	case 50:
		return "50 workers (fastest, recommended)"
	case 30:
		return "30 workers (fast and stable)"
	case 20:
		return "20 workers (default)"
	case 10:
		return "10 workers (conservative)"
	default:
		return fmt.Sprintf("%d workers", w)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.isInputStep() {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keymap.Cancel):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keymap.Back):
		return m.back()
	case key.Matches(keyMsg, m.keymap.Enter):
		return m.submit()
	}

	if m.isInputStep() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.err = ""
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keymap.Down):
		if m.cursor < len(m.options())-1 {
			m.cursor++
		}
	}
	return m, nil
}

// back returns to the previous step, or quits from the first one.
func (m Model) back() (tea.Model, tea.Cmd) {
	if len(m.history) == 0 {
		m.cancelled = true
		return m, tea.Quit
	}
	prev := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	return m.enter(prev), nil
}

// advance records the current step and moves to next.
func (m Model) advance(next step) Model {
	m.history = append(m.history, m.step)
	return m.enter(next)
}

// enter prepares a step's cursor or input.
func (m Model) enter(s step) Model {
	m.step = s
	m.err = ""
	m.cursor = 0
	m.input.Blur()

	switch s {
	case stepYear:
		m.focusInput(strconv.Itoa(m.year), "YYYY")
	case stepStartDate:
		m.focusInput(m.startDate, "YYYY-MM-DD")
	case stepEndDate:
		m.focusInput(m.endDate, "YYYY-MM-DD")
	case stepMappingPath:
		m.input.CharLimit = 512
		m.focusInput(m.mappingFile, "path/to/email_api_mapping.json")
	case stepMonth:
		m.cursor = m.month - 1
	case stepStartMonth:
		m.cursor = max(m.startMonth, 1) - 1
	case stepEndMonth:
		m.cursor = max(m.endMonth-m.startMonth, 0)
	case stepWorkers:
		for i, w := range WorkerChoices {
			if w == m.workers {
				m.cursor = i
			}
		}
	}
	return m
}

func (m *Model) focusInput(value, placeholder string) {
	if m.step != stepMappingPath {
		m.input.CharLimit = 10
	}
	m.input.SetValue(value)
	m.input.Placeholder = placeholder
	m.input.CursorEnd()
	m.input.Focus()
}

func (m Model) selected() option {
	opts := m.options()
	if m.cursor < 0 || m.cursor >= len(opts) {
		return option{}
	}
	return opts[m.cursor]
}

// submit validates the current step and moves on.
func (m Model) submit() (tea.Model, tea.Cmd) {
	switch m.step {
	case stepKind:
		choice := m.selected()
		if choice.value < 0 {
			m.cancelled = true
			return m, tea.Quit
		}
		m.kind = models.ReportKinds[choice.value]
		if m.kind == models.ReportMonthly {
			m.mode = rangeMonths
			return m.advance(stepYear), nil
		}
		return m.advance(stepRange), nil

	case stepRange:
		m.mode = rangeMode(m.selected().value)
		if m.mode == rangeCustom {
			return m.advance(stepStartDate), nil
		}
		return m.advance(stepYear), nil

	case stepYear:
		year, err := ParseYear(m.input.Value())
		if err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.year = year
		if m.mode == rangeMonths {
			return m.advance(stepStartMonth), nil
		}
		return m.advance(stepMonth), nil

	case stepMonth:
		m.month = m.selected().value
		p, err := period.Month(m.year, m.month)
		if err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.period = p
		return m.advance(stepWorkers), nil

	case stepStartMonth:
		m.startMonth = m.selected().value
		if m.endMonth < m.startMonth {
			m.endMonth = m.startMonth
		}
		return m.advance(stepEndMonth), nil

	case stepEndMonth:
		m.endMonth = m.selected().value
		p, err := period.Months(m.year, m.startMonth, m.endMonth)
		if err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.period = p
		return m.advance(stepWorkers), nil

	case stepStartDate:
		value := strings.TrimSpace(m.input.Value())
		if _, err := period.ParseDate(value); err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.startDate = value
		return m.advance(stepEndDate), nil

	case stepEndDate:
		value := strings.TrimSpace(m.input.Value())
		p, err := period.Between(m.startDate, value)
		if err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.endDate = value
		m.period = p
		return m.advance(stepWorkers), nil

	case stepWorkers:
		m.workers = m.selected().value
		if m.opts.LatestMapping != "" {
			return m.advance(stepMapping), nil
		}
		m.mappingFile = ""
		return m.advance(stepConfirm), nil

	case stepMapping:
		if m.selected().value == 0 {
			m.mappingFile = m.opts.LatestMapping
			return m.advance(stepConfirm), nil
		}
		return m.advance(stepMappingPath), nil

	case stepMappingPath:
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			m.err = "please enter a path"
			return m, nil
		}
		m.mappingFile = value
		return m.advance(stepConfirm), nil

	case stepConfirm:
		if m.selected().value == 1 {
			m.done = true
		} else {
			m.cancelled = true
		}
		return m, tea.Quit
	}

	return m, nil
}

// ErrInvalidYear is returned for years outside MinYear..MaxYear.
var ErrInvalidYear = errors.New("invalid year")

// ParseYear parses a year within the supported range.
func ParseYear(s string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || year < MinYear || year > MaxYear {
		return 0, fmt.Errorf("%w (%d-%d)", ErrInvalidYear, MinYear, MaxYear)
	}
	return year, nil
}
