package verify

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch is returned when a batch carries no claims. It is a caller
// error, distinct from both a premium and a non-premium answer.
var ErrEmptyBatch = errors.New("at least one claim is required")

// Reason explains why a claim was not verified as premium.
type Reason string

const (
	ReasonInvalidLength      Reason = "invalid_length"
	ReasonInvalidCharacters  Reason = "invalid_characters"
	ReasonLookupFailed       Reason = "lookup_failed"
	ReasonIdentifierMismatch Reason = "identifier_mismatch"
)

// Claim is a caller-asserted username and identifier pair.
type Claim struct {
	Username string
	ID       string
}

// Verdict is either premium, or not premium with a reason. Reason is empty
// exactly when Premium is true.
type Verdict struct {
	Premium bool
	Reason  Reason
}

func Premium() Verdict {
	return Verdict{Premium: true}
}

func NotPremium(reason Reason) Verdict {
	return Verdict{Reason: reason}
}

func (v Verdict) String() string {
	if v.Premium {
		return "premium"
	}
	return string(v.Reason)
}

// Result is the verdict for one claim.
type Result struct {
	Username string
	ID       string
	// CanonicalName is the service's spelling of the username, set when a profile was found.
	CanonicalName string
	Verdict       Verdict
}

// Aggregate is the outcome of a whole batch. Results follow input order.
type Aggregate struct {
	ID      string
	Premium bool
	Results []Result
}

// FirstReason returns the reason of the first non-premium result in input
// order, or an empty Reason when every claim is premium.
func (a *Aggregate) FirstReason() Reason {
	for _, r := range a.Results {
		if !r.Verdict.Premium {
			return r.Verdict.Reason
		}
	}
	return ""
}

// ReasonError is returned by ValidateUsername.
type ReasonError struct {
	Username string
	Reason   Reason
}

func (e *ReasonError) Error() string {
	return fmt.Sprintf("username %q rejected: %s", e.Username, e.Reason)
}
