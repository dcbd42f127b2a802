// Package tui provides the interactive review of match results.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/katalog/internal/cli"
	"github.com/Veraticus/katalog/internal/model"
)

const reviewTimeout = 10 * time.Second

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
	statusStyle = lipgloss.NewStyle().Foreground(cli.SubtleColor)
	errorStyle  = lipgloss.NewStyle().Foreground(cli.ErrorColor)
)

// Model is the review screen. It walks through match results one at a time
// and lets the user accept or reject a candidate of each.
type Model struct {
	ctx       context.Context
	reviewer  Reviewer
	lastError error
	results   []*model.MatchResult
	decisions []Decision
	status    string
	keys      KeyMap
	table     table.Model
	index     int
	width     int
	busy      bool
	showHelp  bool
	quitting  bool
}

// NewModel creates a review model over results.
func NewModel(ctx context.Context, results []*model.MatchResult, reviewer Reviewer) Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(cli.SubtleColor)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(cli.PrimaryColor)
	t.SetStyles(styles)

	m := Model{
		ctx:       ctx,
		reviewer:  reviewer,
		results:   results,
		decisions: make([]Decision, len(results)),
		keys:      DefaultKeyMap(),
		table:     t,
		width:     80,
	}
	m.loadRows()
	return m
}

func columns(width int) []table.Column {
	name := max(width-46, 20)
	return []table.Column{
		{Title: "SRC", Width: 8},
		{Title: "CODE", Width: 12},
		{Title: "CONF", Width: 6},
		{Title: "UNIT", Width: 5},
		{Title: "NAME", Width: name},
	}
}

func (m *Model) loadRows() {
	if m.index >= len(m.results) {
		m.table.SetRows(nil)
		return
	}
	res := m.results[m.index]
	rows := make([]table.Row, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		rows = append(rows, table.Row{
			sourceLabel(c.Source),
			c.Code,
			fmt.Sprintf("%.0f%%", c.Confidence*100),
			c.Unit,
			c.Name,
		})
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

func sourceLabel(s model.CandidateSource) string {
	switch s {
	case model.SourceLearnedMapping:
		return "learned"
	case model.SourceExternalSearch:
		return "web"
	default:
		return "catalog"
	}
}

// Decisions returns the decision for each result in input order.
func (m Model) Decisions() []Decision {
	return append([]Decision(nil), m.decisions...)
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(msg.Height-10, 3))
		return m, nil

	case decisionMsg:
		m.busy = false
		if msg.err != nil {
			m.lastError = msg.err
			m.status = ""
			return m, nil
		}
		m.lastError = nil
		m.decisions[msg.index] = Decision{Action: msg.action, Code: msg.candidate.Code}
		m.status = fmt.Sprintf("%s %s", msg.action, msg.candidate.Code)
		return m.advance()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	if m.busy || m.index >= len(m.results) {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Accept):
		return m.decide(ActionAccept)
	case key.Matches(msg, m.keys.Reject):
		return m.decide(ActionReject)
	case key.Matches(msg, m.keys.Skip):
		m.decisions[m.index] = Decision{Action: ActionSkip}
		m.status = "skipped"
		return m.advance()
	case key.Matches(msg, m.keys.Back):
		if m.index > 0 {
			m.index--
			m.loadRows()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) decide(action Action) (tea.Model, tea.Cmd) {
	res := m.results[m.index]
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(res.Candidates) {
		m.status = "no candidate to " + strings.TrimSuffix(action.String(), "ed")
		return m, nil
	}
	candidate := res.Candidates[cursor]
	index := m.index
	m.busy = true

	reviewer := m.reviewer
	ctx := m.ctx
	return m, func() tea.Msg {
		if reviewer == nil {
			return decisionMsg{index: index, action: action, candidate: candidate}
		}
		ctx, cancel := context.WithTimeout(ctx, reviewTimeout)
		defer cancel()

		var err error
		if action == ActionAccept {
			err = reviewer.Accept(ctx, res, candidate)
		} else {
			err = reviewer.Reject(ctx, res, candidate)
		}
		return decisionMsg{index: index, action: action, candidate: candidate, err: err}
	}
}

// advance moves to the next result and quits after the last one.
func (m Model) advance() (tea.Model, tea.Cmd) {
	m.index++
	if m.index >= len(m.results) {
		m.quitting = true
		return m, tea.Quit
	}
	m.loadRows()
	return m, nil
}

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.index >= len(m.results) {
		return statusStyle.Render("Nothing to review.") + "\n"
	}

	res := m.results[m.index]
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("[%d/%d] %s", m.index+1, len(m.results), res.Query)))
	b.WriteString("\n")
	if res.Classification != nil {
		b.WriteString(statusStyle.Render(res.Classification.PathString()))
		b.WriteString("\n")
	}
	if d := m.decisions[m.index]; d.Action != ActionNone {
		b.WriteString(statusStyle.Render("previously " + d.Action.String() + " " + d.Code))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(res.Candidates) == 0 {
		b.WriteString(cli.FormatWarning("No candidates for this item"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.lastError != nil:
		b.WriteString(errorStyle.Render("error: " + m.lastError.Error()))
	case m.busy:
		b.WriteString(statusStyle.Render("saving…"))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}

func (m Model) helpView() string {
	bindings := m.keys.ShortHelp()
	if m.showHelp {
		bindings = append(bindings, m.keys.Help)
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	if m.showHelp {
		parts = append(parts, "↑/↓ choose candidate")
	}
	return statusStyle.Render(strings.Join(parts, " • "))
}
