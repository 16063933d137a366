package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRegister_Success(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/register" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body credentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Email != "alice@x.io" || body.Password != "pw" {
			t.Errorf("unexpected body %+v", body)
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully", "token": "tok"})
	})

	tok, err := c.Register(context.Background(), "alice@x.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestRegister_UserExists(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User already exists"})
	})

	_, err := c.Register(context.Background(), "alice@x.io", "pw")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("want ErrUserExists, got %v", err)
	}
}

func TestRegister_ValidationError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email must be a valid email"})
	})

	_, err := c.Register(context.Background(), "nope", "pw")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "email must be a valid email", apiErr.Message)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]string
		want    string
		wantErr error
	}{
		{name: "ok", status: http.StatusCreated, body: map[string]string{"token": "t1"}, want: "t1"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: map[string]string{"message": "Invalid credentials"}, wantErr: ErrInvalidCredentials},
		{name: "server error", status: http.StatusInternalServerError, body: map[string]string{"message": "Internal server error"}, wantErr: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/login" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				writeJSON(w, tt.status, tt.body)
			})

			got, err := c.Login(context.Background(), "a@b.c", "pw")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHealth(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "server is running."})
	})

	msg, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "server is running.", msg)
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, time.Second)
	_, err := c.Health(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestNonJSON5xx(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}
