package fixtures

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yossiovadia/premium-check/internal/handlers"
	"github.com/yossiovadia/premium-check/internal/logger"
	"github.com/yossiovadia/premium-check/internal/lookup"
	"github.com/yossiovadia/premium-check/internal/metrics"
	"github.com/yossiovadia/premium-check/internal/verify"
)

// TestServerConfig holds configuration for test server setup.
type TestServerConfig struct {
	Profiles     ProfileServerConfig
	MaxBatchSize int
}

// TestComponents holds the pieces wired behind the test router.
type TestComponents struct {
	ProfileServer *ProfileServer
	Verifier      *verify.Verifier
	Metrics       *metrics.Metrics
}

// SetupTestServer wires the full check pipeline against a fake profile service.
func SetupTestServer(t *testing.T, config TestServerConfig) (*gin.Engine, *TestComponents) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	profileServer := NewProfileServer(t, config.Profiles)
	m := metrics.New()
	log := logger.Nop()

	client := lookup.NewClient(log, profileServer.URL,
		lookup.WithHTTPClient(profileServer.Client()),
		lookup.WithRetryDelay(time.Millisecond),
		lookup.WithMetrics(m),
	)
	verifier := verify.NewVerifier(log, client, verify.WithMetrics(m))

	router := gin.New()
	check := handlers.NewCheckHandler(log, verifier, config.MaxBatchSize)
	router.POST("/check_server", check.CheckServer)
	router.GET("/health", handlers.NewHealthHandler().HealthCheck)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	return router, &TestComponents{
		ProfileServer: profileServer,
		Verifier:      verifier,
		Metrics:       m,
	}
}
