// Package verify decides whether claimed player identities are genuine premium accounts.
package verify

import (
	"context"
	"errors"

	"github.com/yossiovadia/premium-check/internal/logger"
	"github.com/yossiovadia/premium-check/internal/lookup"
	"github.com/yossiovadia/premium-check/internal/metrics"
)

// Lookuper resolves a username against the authoritative profile service.
type Lookuper interface {
	Lookup(ctx context.Context, username string) lookup.Outcome
}

type Verifier struct {
	lookuper       Lookuper
	maxConcurrency int
	metrics        *metrics.Metrics
	logger         *logger.Logger
}

type Option func(*Verifier)

// WithMaxConcurrency bounds in-flight lookups per batch. Zero or less means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(v *Verifier) { v.maxConcurrency = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

func NewVerifier(log *logger.Logger, lookuper Lookuper, opts ...Option) *Verifier {
	if log == nil {
		log = logger.Production()
	}
	v := &Verifier{
		lookuper: lookuper,
		logger:   log,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks a single claim. It never fails: validation and lookup
// problems are folded into a not-premium verdict.
func (v *Verifier) Verify(ctx context.Context, claim Claim) Result {
	result := Result{Username: claim.Username, ID: claim.ID}
	result.Verdict = v.verdictFor(ctx, claim, &result)

	v.metrics.ObserveVerdict(result.Verdict.String())
	v.logger.Debug("Claim verified",
		"username", claim.Username,
		"verdict", result.Verdict.String(),
	)

	return result
}

func (v *Verifier) verdictFor(ctx context.Context, claim Claim, result *Result) Verdict {
	if err := ValidateUsername(claim.Username); err != nil {
		var reasonErr *ReasonError
		if errors.As(err, &reasonErr) {
			return NotPremium(reasonErr.Reason)
		}
		return NotPremium(ReasonInvalidCharacters)
	}

	outcome := v.lookuper.Lookup(ctx, claim.Username)
	if !outcome.IsFound() {
		v.logger.Debug("Profile lookup did not find an account",
			"username", claim.Username,
			"status", outcome.Status.String(),
		)
		return NotPremium(ReasonLookupFailed)
	}
	result.CanonicalName = outcome.Username

	if NormalizeIdentifier(outcome.ID) != NormalizeIdentifier(claim.ID) {
		return NotPremium(ReasonIdentifierMismatch)
	}
	return Premium()
}
