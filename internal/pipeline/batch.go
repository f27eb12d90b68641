package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"schedforge/internal/logging"
)

// BatchResult is the outcome of one request in a batch. Exactly one of
// Result and Err is set.
type BatchResult struct {
	Request Request
	Result  *Result
	Err     error
}

// RunBatch runs every request with at most the configured number in flight.
// A failing creator does not stop the others; its error lands in its
// BatchResult. RunBatch itself only fails when ctx is done.
func (p *Pipeline) RunBatch(ctx context.Context, reqs []Request) ([]BatchResult, error) {
	results := make([]BatchResult, len(reqs))
	started := time.Now()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)
	for i, req := range reqs {
		i, req := i, req
		results[i].Request = req
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			res, err := p.Run(egCtx, req)
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logging.Batch("batch of %d finished in %s: %d failed", len(reqs), time.Since(started), failed)
	return results, ctx.Err()
}
