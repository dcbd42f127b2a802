package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/learning"
	"github.com/Veraticus/katalog/internal/model"
)

// Reviewer persists review decisions.
type Reviewer interface {
	Accept(ctx context.Context, res *model.MatchResult, c model.MatchCandidate) error
	Reject(ctx context.Context, res *model.MatchResult, c model.MatchCandidate) error
}

// LearningReviewer records decisions in the learned-mapping cache.
type LearningReviewer struct {
	Cache   *learning.Cache
	Context model.ProjectContext
}

// Accept remembers the candidate as a user-validated mapping for the text.
func (r LearningReviewer) Accept(ctx context.Context, res *model.MatchResult, c model.MatchCandidate) error {
	text := reviewText(res)
	if _, err := r.Cache.Save(ctx, learning.SaveRequest{
		Context:         r.Context,
		Text:            text,
		Code:            c.Code,
		Name:            c.Name,
		Unit:            c.Unit,
		Confidence:      c.Confidence,
		ValidatedByUser: true,
	}); err != nil {
		return err
	}
	if _, err := r.Cache.Approve(ctx, text, c.Code, r.Context, "accepted in review"); err != nil {
		return fmt.Errorf("failed to approve mapping: %w", err)
	}
	return nil
}

// Reject lowers the confidence of a learned mapping for the candidate. A
// candidate that was never learned needs no record.
func (r LearningReviewer) Reject(ctx context.Context, res *model.MatchResult, c model.MatchCandidate) error {
	_, err := r.Cache.Reject(ctx, reviewText(res), c.Code, r.Context, "rejected in review")
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, learning.ErrCodeMismatch) {
		return nil
	}
	return err
}

func reviewText(res *model.MatchResult) string {
	if res.NormalizedQuery != "" {
		return res.NormalizedQuery
	}
	return res.Query
}
