package common

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	POST(path string, body any) error
	ResponseContains(field string) bool
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
	SetClientIP(ip string)
	SetDeviceID(id string)
	SignIn(userID string) error
	Advance(d time.Duration)
	AuditActions() []string
}

// RegisterSteps registers common step definitions used across features
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Background steps
	ctx.Step(`^the gateway is running$`, steps.gatewayIsRunning)

	// Actor steps
	ctx.Step(`^I am calling from IP "([^"]*)"$`, steps.callingFromIP)
	ctx.Step(`^I am signed in as "([^"]*)"$`, steps.signedInAs)
	ctx.Step(`^I am signed in as "([^"]*)" on device "([^"]*)"$`, steps.signedInOnDevice)

	// Time
	ctx.Step(`^(\d+) (second|seconds|minute|minutes|hour|hours) pass(?:es)?$`, steps.timePasses)

	// Generic request steps
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I POST to "([^"]*)" with body '([^']*)'$`, steps.postWithBody)

	// Response assertion steps
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response header "([^"]*)" should equal "([^"]*)"$`, steps.responseHeaderShouldEqual)
	ctx.Step(`^the response header "([^"]*)" should be present$`, steps.responseHeaderShouldBePresent)
	ctx.Step(`^the audit event "([^"]*)" should be emitted$`, steps.auditEventShouldBeEmitted)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) gatewayIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/health/live", nil); err != nil {
		return err
	}
	return s.responseStatusShouldBe(ctx, 200)
}

func (s *commonSteps) callingFromIP(ctx context.Context, ip string) error {
	s.tc.SetClientIP(ip)
	return nil
}

func (s *commonSteps) signedInAs(ctx context.Context, userID string) error {
	return s.tc.SignIn(userID)
}

func (s *commonSteps) signedInOnDevice(ctx context.Context, userID, deviceID string) error {
	s.tc.SetDeviceID(deviceID)
	return s.tc.SignIn(userID)
}

func (s *commonSteps) timePasses(ctx context.Context, n int, unit string) error {
	d := time.Second
	switch unit {
	case "minute", "minutes":
		d = time.Minute
	case "hour", "hours":
		d = time.Hour
	}
	s.tc.Advance(time.Duration(n) * d)
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) postWithBody(ctx context.Context, path, body string) error {
	return s.tc.POST(path, body)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	actualStatus := s.tc.GetLastResponseStatus()
	if actualStatus != expectedStatus {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", expectedStatus, actualStatus, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, field string) error {
	if !s.tc.ResponseContains(field) {
		return fmt.Errorf("response does not contain field: %s\nResponse: %s", field, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	var data map[string]any
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &data); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	actualValue, ok := data[field]
	if !ok {
		return fmt.Errorf("field %s not found in response", field)
	}
	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}

func (s *commonSteps) responseHeaderShouldEqual(ctx context.Context, name, expected string) error {
	if got := s.tc.GetLastResponseHeader(name); got != expected {
		return fmt.Errorf("header %s: expected %q but got %q", name, expected, got)
	}
	return nil
}

func (s *commonSteps) responseHeaderShouldBePresent(ctx context.Context, name string) error {
	got := s.tc.GetLastResponseHeader(name)
	if got == "" {
		return fmt.Errorf("header %s missing", name)
	}
	if name == "Retry-After" {
		if n, err := strconv.Atoi(got); err != nil || n < 1 {
			return fmt.Errorf("Retry-After must be a positive integer, got %q", got)
		}
	}
	return nil
}

func (s *commonSteps) auditEventShouldBeEmitted(ctx context.Context, action string) error {
	deadline := time.Now().Add(time.Second)
	for {
		if slices.Contains(s.tc.AuditActions(), action) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("audit event %s not emitted, got %v", action, s.tc.AuditActions())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
