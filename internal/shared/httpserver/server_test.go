package httpserver

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cristianortiz/carauction/internal/shared/config"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicModule struct{}

func (panicModule) RegisterRoutes(r fiber.Router) {
	r.Get("/boom", func(c *fiber.Ctx) error {
		panic("boom")
	})
}

func newTestServer() *Server {
	return NewServer(config.ServerConfig{ShutdownTimeout: time.Second}, panicModule{})
}

func TestHealth(t *testing.T) {
	resp, err := newTestServer().App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	_, err := s.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "carauction_http_requests_total")
}

func TestUnknownRouteAndPanic(t *testing.T) {
	s := newTestServer()

	resp, err := s.App().Test(httptest.NewRequest("GET", "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
