package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
)

// memoryAuth is a small stand-in for the orchestrator.
type memoryAuth struct {
	mu       sync.Mutex
	users    map[string]string
	err      error
	panicMsg string
}

func newMemoryAuth() *memoryAuth {
	return &memoryAuth{users: map[string]string{}}
}

func (m *memoryAuth) Register(ctx context.Context, email, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return "", m.err
	}
	if _, ok := m.users[email]; ok {
		return "", common.ErrUserExists
	}
	m.users[email] = password
	return "tok-" + email, nil
}

func (m *memoryAuth) Login(ctx context.Context, email, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	pw, ok := m.users[email]
	if !ok {
		return "", common.ErrUserNotFound
	}
	if pw != password {
		return "", common.ErrInvalidCredentials
	}
	return "tok-" + email, nil
}

func newTestApp(t *testing.T, svc AuthService) *fiber.App {
	t.Helper()
	return NewServer(":0", svc, metrics.New(), logging.Nop()).App()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func creds(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func TestRegisterLoginScenario(t *testing.T) {
	app := newTestApp(t, newMemoryAuth())

	code, body := doJSON(t, app, "POST", "/register", creds("alice@example.com", "pw1"))
	assert.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotEmpty(t, body["token"])

	code, body = doJSON(t, app, "POST", "/register", creds("alice@example.com", "pw1"))
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "User already exists", body["message"])

	code, body = doJSON(t, app, "POST", "/login", creds("alice@example.com", "pw1"))
	assert.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, "User login successfully", body["message"])
	assert.NotEmpty(t, body["token"])

	code, body = doJSON(t, app, "POST", "/login", creds("alice@example.com", "wrong"))
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", body["message"])

	code, body = doJSON(t, app, "POST", "/login", creds("nobody@example.com", "pw"))
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", body["message"])
}

func TestAuthPrefix(t *testing.T) {
	app := newTestApp(t, newMemoryAuth())

	code, _ := doJSON(t, app, "POST", "/auth/register", creds("bob@example.com", "pw"))
	assert.Equal(t, fiber.StatusCreated, code)

	code, _ = doJSON(t, app, "POST", "/auth/login", creds("bob@example.com", "pw"))
	assert.Equal(t, fiber.StatusCreated, code)

	code, body := doJSON(t, app, "GET", "/auth/health", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["success"])
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, newMemoryAuth())

	code, body := doJSON(t, app, "GET", "/health", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, map[string]any{"success": true, "message": "server is running."}, body)
}

func TestValidation(t *testing.T) {
	app := newTestApp(t, newMemoryAuth())

	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{name: "missing email", path: "/register", body: creds("", "pw"), want: "email is required"},
		{name: "bad email", path: "/register", body: creds("not-an-email", "pw"), want: "email must be a valid email address"},
		{name: "missing password", path: "/login", body: creds("a@example.com", ""), want: "password is required"},
		{name: "long password", path: "/register", body: creds("a@example.com", strings.Repeat("x", 73)), want: "password must be at most 72 characters"},
		{name: "malformed json", path: "/login", body: "{", want: "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := doJSON(t, app, "POST", tt.path, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, code)
			assert.Equal(t, tt.want, body["message"])
		})
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	svc := newMemoryAuth()
	svc.err = errors.New("pq: connection refused to 10.0.0.5")
	app := newTestApp(t, svc)

	for _, path := range []string{"/register", "/login"} {
		code, body := doJSON(t, app, "POST", path, creds("c@example.com", "pw"))
		assert.Equal(t, fiber.StatusInternalServerError, code)
		assert.Equal(t, map[string]any{"message": "Internal server error"}, body)
	}
}

func TestStoreUnavailableIs500(t *testing.T) {
	svc := newMemoryAuth()
	svc.err = common.ErrStoreUnavailable
	app := newTestApp(t, svc)

	code, _ := doJSON(t, app, "POST", "/register", creds("d@example.com", "pw"))
	assert.Equal(t, fiber.StatusInternalServerError, code)
}

func TestPanicIsRecovered(t *testing.T) {
	svc := newMemoryAuth()
	svc.panicMsg = "boom"
	app := newTestApp(t, svc)

	code, body := doJSON(t, app, "POST", "/register", creds("e@example.com", "pw"))
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestRequestID(t *testing.T) {
	app := newTestApp(t, newMemoryAuth())

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	resp, err = app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, newMemoryAuth())

	_, _ = doJSON(t, app, "GET", "/health", nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `http_request_duration_seconds_count{method="GET",route="/health",status="200"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t, newMemoryAuth())

	code, _ := doJSON(t, app, "GET", "/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}
