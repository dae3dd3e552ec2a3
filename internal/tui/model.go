package tui

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/firstrun/internal/events"
)

// AppState is the display state of one requested app.
type AppState string

const (
	StatePending AppState = "pending"
	StateRunning AppState = "running"
	StateDone    AppState = "done"
	StateFailed  AppState = "failed"
	StateSkipped AppState = "skipped"
)

type AppRow struct {
	App     string
	State   AppState
	Started time.Time
	Elapsed time.Duration
}

// Summary is the final state shown once the batch ends.
type Summary struct {
	Succeeded bool
	Kind      string
	App       string
	Phase     string
	Error     string
	Duration  time.Duration
}

type eventMsg events.Event

type closedMsg struct{}

// Model is the bubbletea model of a single batch.
type Model struct {
	batchID string
	serial  string
	rows    []AppRow
	cursor  int
	summary *Summary
	closed  bool

	width   int
	spinner spinner.Model
	theme   Theme

	events      <-chan events.Event
	onInterrupt func()
	now         func() time.Time
}

// Option customizes a Model.
type Option func(*Model)

// WithInterrupt sets the callback run when the user presses ctrl+c. The
// terminal is in raw mode while the view runs, so SIGINT never arrives.
func WithInterrupt(fn func()) Option {
	return func(m *Model) { m.onInterrupt = fn }
}

// New builds a view over the given event subscription. requested seeds the
// rows before batch.started arrives.
func New(ch <-chan events.Event, requested []string, opts ...Option) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		events:  ch,
		spinner: s,
		theme:   NewDefaultTheme(),
		now:     time.Now,
	}
	m.resetRows(requested)
	for _, opt := range opts {
		opt(&m)
	}
	m.spinner.Style = m.theme.StatusRunning
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, tea.Quit
		case "q":
			if m.summary != nil {
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(events.Event(msg))
		if m.summary != nil {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case closedMsg:
		m.closed = true
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one hub event into the rows.
func (m *Model) apply(e events.Event) {
	switch e.Type {
	case events.TypeBatchStarted:
		var p events.BatchStarted
		if json.Unmarshal(e.Data, &p) != nil {
			return
		}
		m.batchID = p.BatchID
		m.serial = p.Serial
		m.resetRows(p.Apps)
		m.startCurrent()

	case events.TypeAppDismissed:
		var p events.AppDismissed
		if json.Unmarshal(e.Data, &p) != nil || !m.sameBatch(p.BatchID) {
			return
		}
		if m.cursor < len(m.rows) {
			m.finishCurrent(StateDone)
			m.cursor++
			m.startCurrent()
		}

	case events.TypeBatchCompleted, events.TypeBatchFailed:
		var p events.BatchFinished
		if json.Unmarshal(e.Data, &p) != nil || !m.sameBatch(p.BatchID) {
			return
		}
		if e.Type == events.TypeBatchFailed && m.cursor < len(m.rows) {
			m.finishCurrent(StateFailed)
			for i := m.cursor + 1; i < len(m.rows); i++ {
				m.rows[i].State = StateSkipped
			}
		}
		m.summary = &Summary{
			Succeeded: e.Type == events.TypeBatchCompleted,
			Kind:      p.Kind,
			App:       p.App,
			Phase:     p.Phase,
			Error:     p.Error,
			Duration:  time.Duration(p.DurationMS) * time.Millisecond,
		}
	}
}

func (m *Model) sameBatch(id string) bool {
	return m.batchID == "" || id == "" || id == m.batchID
}

func (m *Model) resetRows(apps []string) {
	m.rows = make([]AppRow, 0, len(apps))
	for _, app := range apps {
		m.rows = append(m.rows, AppRow{App: app, State: StatePending})
	}
	m.cursor = 0
}

func (m *Model) startCurrent() {
	if m.cursor < len(m.rows) {
		m.rows[m.cursor].State = StateRunning
		m.rows[m.cursor].Started = m.now()
	}
}

func (m *Model) finishCurrent(state AppState) {
	row := &m.rows[m.cursor]
	row.State = state
	if !row.Started.IsZero() {
		row.Elapsed = m.now().Sub(row.Started)
	}
}

// Rows returns a copy of the current rows.
func (m Model) Rows() []AppRow {
	return append([]AppRow(nil), m.rows...)
}

// Summary is nil until the batch ends.
func (m Model) Summary() *Summary {
	return m.summary
}
