package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the API contract authctl commands depend on.
type Client interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	Health(ctx context.Context) (string, error)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// HTTPClient talks to the server's JSON routes.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client for baseURL. Each request is bounded by
// timeout in addition to the caller's context.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Register creates an account and returns the issued token.
func (c *HTTPClient) Register(ctx context.Context, email, password string) (string, error) {
	resp, status, err := c.do(ctx, http.MethodPost, "/register", credentials{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	if status == http.StatusBadRequest && resp.Message == "User already exists" {
		return "", ErrUserExists
	}
	if err := statusError(status, resp.Message); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Login exchanges credentials for a token.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	resp, status, err := c.do(ctx, http.MethodPost, "/login", credentials{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized {
		return "", ErrInvalidCredentials
	}
	if err := statusError(status, resp.Message); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Health returns the server's liveness message.
func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	resp, status, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return "", err
	}
	if err := statusError(status, resp.Message); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*response, int, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	var out response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		if res.StatusCode >= http.StatusInternalServerError {
			return nil, 0, fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
		}
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	return &out, res.StatusCode, nil
}

func statusError(status int, msg string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return &APIError{Status: status, Message: msg}
	}
}
