package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/katalog/internal/model"
)

// Summary counts review decisions.
type Summary struct {
	Accepted int
	Rejected int
	Skipped  int
	Pending  int
}

// Summarize counts decisions by action.
func Summarize(decisions []Decision) Summary {
	var s Summary
	for _, d := range decisions {
		switch d.Action {
		case ActionAccept:
			s.Accepted++
		case ActionReject:
			s.Rejected++
		case ActionSkip:
			s.Skipped++
		default:
			s.Pending++
		}
	}
	return s
}

// Run starts the review screen and blocks until the user quits or every
// result has been reviewed.
func Run(ctx context.Context, results []*model.MatchResult, reviewer Reviewer) (Summary, error) {
	if len(results) == 0 {
		return Summary{}, nil
	}

	p := tea.NewProgram(NewModel(ctx, results, reviewer), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return Summary{}, fmt.Errorf("review failed: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return Summary{}, fmt.Errorf("review failed: unexpected model %T", final)
	}
	return Summarize(m.Decisions()), nil
}
