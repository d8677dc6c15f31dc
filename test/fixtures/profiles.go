package fixtures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

const profilePathPrefix = "/users/profiles/minecraft/"

// Profile is an account known to the fake profile service.
type Profile struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Well-known accounts served by NewProfileServer by default.
var (
	Notch = Profile{Name: "Notch", ID: "069a79f444e94726a5befca90e38aaf"}
	Jeb   = Profile{Name: "jeb_", ID: "853c80ef3c3749fdaa49938b674adae6"}
)

// ProfileServerConfig scripts the fake profile service.
type ProfileServerConfig struct {
	// Profiles are matched case-insensitively by username. Nil means Notch and Jeb.
	Profiles []Profile
	// RateLimits answers 429 the given number of times before answering normally.
	RateLimits map[string]int
	// Failing usernames always answer 500.
	Failing []string
}

// ProfileServer is a fake of the authoritative profile lookup service.
type ProfileServer struct {
	*httptest.Server

	calls atomic.Int32

	mu         sync.Mutex
	rateLimits map[string]int
}

// Calls returns the number of requests served so far.
func (s *ProfileServer) Calls() int32 {
	return s.calls.Load()
}

func NewProfileServer(t *testing.T, config ProfileServerConfig) *ProfileServer {
	t.Helper()

	profiles := config.Profiles
	if profiles == nil {
		profiles = []Profile{Notch, Jeb}
	}
	byName := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		byName[strings.ToLower(p.Name)] = p
	}
	failing := make(map[string]bool, len(config.Failing))
	for _, name := range config.Failing {
		failing[strings.ToLower(name)] = true
	}

	s := &ProfileServer{rateLimits: make(map[string]int, len(config.RateLimits))}
	for name, n := range config.RateLimits {
		s.rateLimits[strings.ToLower(name)] = n
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)

		username := strings.ToLower(strings.TrimPrefix(r.URL.Path, profilePathPrefix))
		if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, profilePathPrefix) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if s.consumeRateLimit(username) {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if failing[username] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		profile, ok := byName[username]
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *ProfileServer) consumeRateLimit(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rateLimits[username] > 0 {
		s.rateLimits[username]--
		return true
	}
	return false
}
