package verify

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// VerifyBatch verifies every claim concurrently and folds the verdicts into
// one answer. Results keep the order of claims regardless of completion order,
// and one claim's failure never affects its siblings.
func (v *Verifier) VerifyBatch(ctx context.Context, claims []Claim) (*Aggregate, error) {
	if len(claims) == 0 {
		return nil, ErrEmptyBatch
	}

	id := uuid.NewString()
	log := v.logger.WithFields("batch", id)
	v.metrics.ObserveBatch(len(claims))

	results := make([]Result, len(claims))

	// Tasks never return an error, so the group only joins; it does not cancel siblings.
	var g errgroup.Group
	if v.maxConcurrency > 0 {
		g.SetLimit(v.maxConcurrency)
	}
	for i, claim := range claims {
		g.Go(func() error {
			results[i] = v.Verify(ctx, claim)
			return nil
		})
	}
	_ = g.Wait()

	aggregate := &Aggregate{
		ID:      id,
		Premium: true,
		Results: results,
	}
	for _, r := range results {
		if !r.Verdict.Premium {
			aggregate.Premium = false
			break
		}
	}

	log.Info("Batch verified",
		"claims", len(claims),
		"premium", aggregate.Premium,
		"reason", string(aggregate.FirstReason()),
	)

	return aggregate, nil
}
