package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yossiovadia/premium-check/internal/constant"
	"github.com/yossiovadia/premium-check/internal/logger"
	"github.com/yossiovadia/premium-check/internal/verify"
)

const emptyBatchMessage = "List must contain at least one element."

// BatchVerifier verifies a batch of claimed identities.
type BatchVerifier interface {
	VerifyBatch(ctx context.Context, claims []verify.Claim) (*verify.Aggregate, error)
}

// CheckHandler serves the server premium check.
type CheckHandler struct {
	verifier     BatchVerifier
	maxBatchSize int
	logger       *logger.Logger
}

func NewCheckHandler(log *logger.Logger, verifier BatchVerifier, maxBatchSize int) *CheckHandler {
	if log == nil {
		log = logger.Production()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = constant.DefaultMaxBatchSize
	}
	return &CheckHandler{
		verifier:     verifier,
		maxBatchSize: maxBatchSize,
		logger:       log,
	}
}

// CheckServer handles POST /check_server with a JSON array of {name, id} players,
// as found in a server ping's players.sample.
//
// The server is premium only if every listed player is a genuine account
// whose identifier matches the authoritative one.
func (h *CheckHandler) CheckServer(c *gin.Context) {
	var players []Player
	if err := c.ShouldBindJSON(&players); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	if len(players) == 0 {
		c.JSON(http.StatusUnprocessableEntity, RejectResponse{Status: false, Message: emptyBatchMessage})
		return
	}

	if len(players) > h.maxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "too_many_players",
			Message: fmt.Sprintf("at most %d players can be checked per request, got %d", h.maxBatchSize, len(players)),
		})
		return
	}

	claims := make([]verify.Claim, len(players))
	for i, p := range players {
		claims[i] = verify.Claim{Username: *p.Name, ID: *p.ID}
	}

	aggregate, err := h.verifier.VerifyBatch(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, verify.ErrEmptyBatch) {
			c.JSON(http.StatusUnprocessableEntity, RejectResponse{Status: false, Message: emptyBatchMessage})
			return
		}

		h.logger.Error("Failed to verify players", "players", len(players), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "failed to verify players",
		})
		return
	}

	c.Header(constant.HeaderRequestID, aggregate.ID)
	c.JSON(http.StatusOK, newCheckResponse(aggregate))
}
