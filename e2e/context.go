package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"bulwark/internal/app"
	"bulwark/internal/counter/memory"
	"bulwark/internal/platform/config"
	"bulwark/pkg/platform/audit"
	"bulwark/pkg/platform/middleware/admin"
	"bulwark/pkg/platform/middleware/auth"
	clock "bulwark/pkg/testutil"
)

const (
	adminToken = "e2e-admin-token"
	signingKey = "e2e-signing-key"
	issuer     = "bulwark-e2e"
)

// TestContext holds state between test steps. Each scenario gets a fresh
// gateway on an in-process store, reached through a loopback proxy hop so the
// client address comes from X-Forwarded-For.
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	Clock  *clock.FakeClock
	Events *audit.MemorySink

	ClientIP    string
	DeviceID    string
	AccessToken string

	server *httptest.Server
	app    *app.App
}

// Start builds and starts a fresh gateway for the scenario.
func (tc *TestContext) Start() error {
	hash, err := admin.HashToken(adminToken)
	if err != nil {
		return err
	}
	cfg := config.Default()
	cfg.Environment = "development"
	cfg.Admin.TokenHash = hash
	cfg.Auth.SigningKey = signingKey
	cfg.Auth.Issuer = issuer
	cfg.Server.TrustedProxies = []string{"127.0.0.1/32", "::1/128"}

	*tc = TestContext{
		Clock:    clock.NewFakeClock(time.Now().UTC().Truncate(time.Second)),
		Events:   audit.NewMemorySink(),
		ClientIP: "203.0.113.10",
	}
	a, err := app.Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), app.Options{
		Store:     memory.New(memory.WithClock(tc.Clock.Now)),
		Clock:     tc.Clock.Now,
		AuditSink: tc.Events,
	})
	if err != nil {
		return err
	}
	tc.app = a
	tc.server = httptest.NewServer(a.Handler)
	tc.BaseURL = tc.server.URL
	tc.HTTPClient = &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return nil
}

// Close stops the server and releases the gateway.
func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
	}
	if tc.app != nil {
		tc.app.Close()
	}
}

// Do sends a request from the current client IP and stores the response.
func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Forwarded-For", tc.ClientIP)
	if tc.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.AccessToken)
	}
	if tc.DeviceID != "" {
		req.Header.Set("X-Device-ID", tc.DeviceID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.Do(http.MethodGet, path, nil, headers)
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body, nil)
}

// AdminDo sends an admin request with the configured admin token.
func (tc *TestContext) AdminDo(method, path string, body any) error {
	return tc.Do(method, path, body, map[string]string{"X-Admin-Token": adminToken})
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}
	return false
}

// SignIn issues an access token for userID bound to the current device.
func (tc *TestContext) SignIn(userID string) error {
	token, err := auth.NewHMACVerifier(signingKey, issuer).Issue(userID, tc.DeviceID, time.Now(), time.Hour)
	if err != nil {
		return err
	}
	tc.AccessToken = token
	return nil
}

// Getter and setter methods for step package interfaces

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

func (tc *TestContext) SetClientIP(ip string) { tc.ClientIP = ip }

func (tc *TestContext) SetDeviceID(id string) { tc.DeviceID = id }

func (tc *TestContext) Advance(d time.Duration) { tc.Clock.Advance(d) }

// AuditActions lists the actions of every security event emitted so far.
func (tc *TestContext) AuditActions() []string { return tc.Events.Actions() }
