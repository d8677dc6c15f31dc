package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yossiovadia/premium-check/internal/constant"
	"github.com/yossiovadia/premium-check/internal/handlers"
	"github.com/yossiovadia/premium-check/internal/logger"
	"github.com/yossiovadia/premium-check/internal/verify"
	"github.com/yossiovadia/premium-check/test/fixtures"
)

func postCheck(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "/check_server", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func player(name, id string) handlers.Player {
	return handlers.Player{Name: &name, ID: &id}
}

func playersJSON(t *testing.T, players ...handlers.Player) string {
	t.Helper()
	data, err := json.Marshal(players)
	require.NoError(t, err)
	return string(data)
}

func TestCheckServer_Verdicts(t *testing.T) {
	router, _ := fixtures.SetupTestServer(t, fixtures.TestServerConfig{})

	tests := []struct {
		name            string
		players         []handlers.Player
		expectedPremium bool
		expectedReason  string
	}{
		{
			name:            "single premium player",
			players:         []handlers.Player{player("Notch", fixtures.Notch.ID)},
			expectedPremium: true,
		},
		{
			name:            "hyphenated identifier",
			players:         []handlers.Player{player("Notch", "069a79f4-44e9-4726-a5be-fca90e38aaf")},
			expectedPremium: true,
		},
		{
			name: "all players premium",
			players: []handlers.Player{
				player("Notch", fixtures.Notch.ID),
				player("jeb_", fixtures.Jeb.ID),
			},
			expectedPremium: true,
		},
		{
			name:            "spoofed identifier",
			players:         []handlers.Player{player("Notch", fixtures.Jeb.ID)},
			expectedReason:  "identifier_mismatch",
			expectedPremium: false,
		},
		{
			name:            "unknown account",
			players:         []handlers.Player{player("nobody_here", fixtures.Notch.ID)},
			expectedReason:  "lookup_failed",
			expectedPremium: false,
		},
		{
			name:            "name too short",
			players:         []handlers.Player{player("th", fixtures.Notch.ID)},
			expectedReason:  "invalid_length",
			expectedPremium: false,
		},
		{
			name:            "bad characters",
			players:         []handlers.Player{player("bad$name", fixtures.Notch.ID)},
			expectedReason:  "invalid_characters",
			expectedPremium: false,
		},
		{
			name: "one cracked player spoils the server",
			players: []handlers.Player{
				player("Notch", fixtures.Notch.ID),
				player("cracked_guy", fixtures.Notch.ID),
			},
			expectedReason:  "lookup_failed",
			expectedPremium: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCheck(t, router, playersJSON(t, tt.players...))

			require.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, w.Header().Get(constant.HeaderRequestID))

			var response handlers.CheckResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

			assert.True(t, response.Status)
			assert.Equal(t, tt.expectedPremium, response.Premium)
			assert.Equal(t, tt.expectedReason, response.Reason)
			require.Len(t, response.Players, len(tt.players))
			for i, p := range tt.players {
				assert.Equal(t, *p.Name, response.Players[i].Name, "players keep request order")
				assert.Contains(t, response.Reasons, *p.Name)
			}
		})
	}
}

func TestCheckServer_ReasonsPayload(t *testing.T) {
	router, _ := fixtures.SetupTestServer(t, fixtures.TestServerConfig{})

	w := postCheck(t, router, `[{"name":"Notch","id":"`+fixtures.Notch.ID+`"},{"name":"th","id":"abc"}]`)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))

	reasons, ok := raw["reasons"].(map[string]any)
	require.True(t, ok, "reasons must be an object keyed by username")

	notch, ok := reasons["Notch"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, notch["premium"])
	assert.Nil(t, notch["reason"], "premium players carry a null reason")

	short, ok := reasons["th"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, short["premium"])
	assert.Equal(t, "invalid_length", short["reason"])

	assert.Equal(t, false, raw["premium"])
	assert.Equal(t, "invalid_length", raw["reason"])
}

func TestCheckServer_RateLimitedThenFound(t *testing.T) {
	router, components := fixtures.SetupTestServer(t, fixtures.TestServerConfig{
		Profiles: fixtures.ProfileServerConfig{RateLimits: map[string]int{"Notch": 1}},
	})

	w := postCheck(t, router, playersJSON(t, player("Notch", fixtures.Notch.ID)))

	require.Equal(t, http.StatusOK, w.Code)
	var response handlers.CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Premium)
	assert.Equal(t, int32(2), components.ProfileServer.Calls())
}

func TestCheckServer_RateLimitedTwice(t *testing.T) {
	router, components := fixtures.SetupTestServer(t, fixtures.TestServerConfig{
		Profiles: fixtures.ProfileServerConfig{RateLimits: map[string]int{"Notch": 5}},
	})

	w := postCheck(t, router, playersJSON(t, player("Notch", fixtures.Notch.ID)))

	require.Equal(t, http.StatusOK, w.Code)
	var response handlers.CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Premium)
	assert.Equal(t, "lookup_failed", response.Reason)
	assert.Equal(t, int32(2), components.ProfileServer.Calls())
}

func TestCheckServer_EmptyList(t *testing.T) {
	router, components := fixtures.SetupTestServer(t, fixtures.TestServerConfig{})

	for _, body := range []string{"[]", "null"} {
		w := postCheck(t, router, body)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code, "body %s", body)
		var response handlers.RejectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Status)
		assert.Contains(t, response.Message, "at least one element")
	}
	assert.Equal(t, int32(0), components.ProfileServer.Calls())
}

func TestCheckServer_BadRequest(t *testing.T) {
	router, components := fixtures.SetupTestServer(t, fixtures.TestServerConfig{})

	tests := []struct {
		name        string
		requestBody string
	}{
		{name: "empty request body", requestBody: ""},
		{name: "invalid JSON", requestBody: "{invalid json}"},
		{name: "object instead of array", requestBody: `{"name":"Notch"}`},
		{name: "missing id", requestBody: `[{"name":"Notch"}]`},
		{name: "missing name", requestBody: `[{"id":"069a79f444e94726a5befca90e38aaf"}]`},
		{name: "null name", requestBody: `[{"name":null,"id":"069a79f444e94726a5befca90e38aaf"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCheck(t, router, tt.requestBody)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var response handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "bad_request", response.Error)
		})
	}
	assert.Equal(t, int32(0), components.ProfileServer.Calls())
}

func TestCheckServer_EmptyValuesAreJudgedPerPlayer(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    string
		player         string
		expectedReason string
		expectedCalls  int32
	}{
		{
			name:           "empty name",
			requestBody:    `[{"name":"Notch","id":"` + fixtures.Notch.ID + `"},{"name":"","id":"abc"}]`,
			player:         "",
			expectedReason: "invalid_length",
			expectedCalls:  1,
		},
		{
			name:           "empty id",
			requestBody:    `[{"name":"jeb_","id":"` + fixtures.Jeb.ID + `"},{"name":"Notch","id":""}]`,
			player:         "Notch",
			expectedReason: "identifier_mismatch",
			expectedCalls:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, components := fixtures.SetupTestServer(t, fixtures.TestServerConfig{})

			w := postCheck(t, router, tt.requestBody)

			require.Equal(t, http.StatusOK, w.Code)
			var response handlers.CheckResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

			assert.False(t, response.Premium)
			assert.Equal(t, tt.expectedReason, response.Reason)
			require.Len(t, response.Players, 2)
			assert.True(t, response.Players[0].Premium, "a bad claim must not affect its sibling")

			reason, ok := response.Reasons[tt.player]
			require.True(t, ok)
			require.NotNil(t, reason.Reason)
			assert.Equal(t, tt.expectedReason, *reason.Reason)
			assert.Equal(t, tt.expectedCalls, components.ProfileServer.Calls())
		})
	}
}

func TestCheckServer_TooManyPlayers(t *testing.T) {
	router, components := fixtures.SetupTestServer(t, fixtures.TestServerConfig{MaxBatchSize: 2})

	body := "[" + strings.Repeat(`{"name":"Notch","id":"x"},`, 2) + `{"name":"Notch","id":"x"}]`
	w := postCheck(t, router, body)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, int32(0), components.ProfileServer.Calls())
}

func TestCheckServer_RepeatedUsernameKeepsFailure(t *testing.T) {
	router, _ := fixtures.SetupTestServer(t, fixtures.TestServerConfig{})

	w := postCheck(t, router, playersJSON(t,
		player("Notch", fixtures.Jeb.ID),
		player("Notch", fixtures.Notch.ID),
	))

	require.Equal(t, http.StatusOK, w.Code)
	var response handlers.CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Premium)
	assert.False(t, response.Reasons["Notch"].Premium)
	require.Len(t, response.Players, 2)
	assert.True(t, response.Players[1].Premium)
}

// MockBatchVerifier is a mock type for the batch verifier.
type MockBatchVerifier struct {
	mock.Mock
}

func (m *MockBatchVerifier) VerifyBatch(ctx context.Context, claims []verify.Claim) (*verify.Aggregate, error) {
	args := m.Called(ctx, claims)
	aggregate, _ := args.Get(0).(*verify.Aggregate)
	return aggregate, args.Error(1)
}

func TestCheckServer_VerifierError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	verifier := new(MockBatchVerifier)
	verifier.On("VerifyBatch", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	router := gin.New()
	router.POST("/check_server", handlers.NewCheckHandler(logger.Nop(), verifier, 0).CheckServer)

	w := postCheck(t, router, playersJSON(t, player("Notch", fixtures.Notch.ID)))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var response handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "internal_error", response.Error)
	verifier.AssertExpectations(t)
}

func TestCheckServer_PassesClaimsThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	expectedClaims := []verify.Claim{
		{Username: "Notch", ID: "069a79f4-44e9-4726-a5be-fca90e38aaf"},
		{Username: "jeb_", ID: fixtures.Jeb.ID},
	}
	verifier := new(MockBatchVerifier)
	verifier.On("VerifyBatch", mock.Anything, expectedClaims).Return(&verify.Aggregate{
		ID:      "batch-1",
		Premium: true,
		Results: []verify.Result{
			{Username: "Notch", ID: expectedClaims[0].ID, Verdict: verify.Premium()},
			{Username: "jeb_", ID: expectedClaims[1].ID, Verdict: verify.Premium()},
		},
	}, nil).Once()

	router := gin.New()
	router.POST("/check_server", handlers.NewCheckHandler(logger.Nop(), verifier, 0).CheckServer)

	w := postCheck(t, router, playersJSON(t,
		player("Notch", "069a79f4-44e9-4726-a5be-fca90e38aaf"),
		player("jeb_", fixtures.Jeb.ID),
	))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "batch-1", w.Header().Get(constant.HeaderRequestID))
	verifier.AssertExpectations(t)
}

func TestHealthCheck(t *testing.T) {
	router, _ := fixtures.SetupTestServer(t, fixtures.TestServerConfig{})

	w := httptest.NewRecorder()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "/health", nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := fixtures.SetupTestServer(t, fixtures.TestServerConfig{})
	postCheck(t, router, playersJSON(t, player("Notch", fixtures.Notch.ID)))

	w := httptest.NewRecorder()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `premium_check_verdicts_total{reason="premium"} 1`)
	assert.Contains(t, w.Body.String(), `premium_check_lookup_attempts_total{outcome="found"} 1`)
}
