package handlers

import "github.com/yossiovadia/premium-check/internal/verify"

// Player is one entry of a server ping's players.sample array.
// Both keys must be present; empty values are judged per player, not rejected.
type Player struct {
	Name *string `binding:"required" json:"name"`
	ID   *string `binding:"required" json:"id"`
}

// PlayerReason is the per-username entry of CheckResponse.Reasons.
type PlayerReason struct {
	Premium bool    `json:"premium"`
	Reason  *string `json:"reason"` // null when premium
}

// PlayerResult is the per-player entry of CheckResponse.Players, in request order.
type PlayerResult struct {
	Name          string  `json:"name"`
	ID            string  `json:"id"`
	CanonicalName string  `json:"canonicalName,omitempty"`
	Premium       bool    `json:"premium"`
	Reason        *string `json:"reason"`
}

type CheckResponse struct {
	Status  bool                    `json:"status"`
	Premium bool                    `json:"premium"`
	Reason  string                  `json:"reason,omitempty"` // first failing reason in request order
	Reasons map[string]PlayerReason `json:"reasons"`
	Players []PlayerResult          `json:"players"`
}

// RejectResponse is returned for an empty player list.
type RejectResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`   // Error code (e.g., "bad_request", "internal_error")
	Message string `json:"message"` // Human-readable error message
}

func newCheckResponse(aggregate *verify.Aggregate) CheckResponse {
	response := CheckResponse{
		Status:  true,
		Premium: aggregate.Premium,
		Reason:  string(aggregate.FirstReason()),
		Reasons: make(map[string]PlayerReason, len(aggregate.Results)),
		Players: make([]PlayerResult, 0, len(aggregate.Results)),
	}

	for _, result := range aggregate.Results {
		var reason *string
		if !result.Verdict.Premium {
			r := string(result.Verdict.Reason)
			reason = &r
		}

		response.Players = append(response.Players, PlayerResult{
			Name:          result.Username,
			ID:            result.ID,
			CanonicalName: result.CanonicalName,
			Premium:       result.Verdict.Premium,
			Reason:        reason,
		})

		// A repeated username keeps its first failure rather than being masked by a later success.
		if existing, seen := response.Reasons[result.Username]; seen && !existing.Premium {
			continue
		}
		response.Reasons[result.Username] = PlayerReason{
			Premium: result.Verdict.Premium,
			Reason:  reason,
		}
	}

	return response
}
