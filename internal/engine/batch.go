package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/katalog/internal/model"
)

// BatchOptions configures batch matching behavior.
type BatchOptions struct {
	Progress    func(done, total int) // Called after each chunk completes
	Concurrency int                   // Requests matched at the same time
}

// MatchBatch matches requests in fixed-size chunks. Requests within a chunk
// run concurrently and the next chunk starts only when the previous one has
// finished, which bounds simultaneous external searches. Results are in input
// order. Requests not reached before ctx is canceled get empty results.
func (e *Engine) MatchBatch(ctx context.Context, reqs []model.MatchRequest, opts BatchOptions) []*model.MatchResult {
	startTime := time.Now()
	results := make([]*model.MatchResult, len(reqs))

	size := opts.Concurrency
	if size <= 0 {
		size = e.cfg.Concurrency
	}

	slog.Info("Starting batch matching", "requests", len(reqs), "concurrency", size)

	done := 0
	for start := 0; start < len(reqs); start += size {
		if ctx.Err() != nil {
			break
		}
		end := min(start+size, len(reqs))

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = e.MatchSingle(ctx, reqs[i])
				return nil
			})
		}
		_ = g.Wait()

		done = end
		if opts.Progress != nil {
			opts.Progress(done, len(reqs))
		}
	}

	for i := done; i < len(reqs); i++ {
		results[i] = &model.MatchResult{
			Query:      reqs[i].Text,
			Candidates: []model.MatchCandidate{},
		}
	}

	slog.Info("Batch matching complete",
		"matched", done,
		"skipped", len(reqs)-done,
		"duration", time.Since(startTime))
	return results
}
