package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I send (\d+) "([^"]*)" requests to "([^"]*)"$`, steps.sendNRequests)
	ctx.Step(`^all (\d+) requests should succeed$`, steps.allNRequestsShouldSucceed)
	ctx.Step(`^request (\d+) should be rate limited$`, steps.requestNShouldBeRateLimited)
	ctx.Step(`^the remaining quota should be (\d+)$`, steps.remainingQuotaShouldBe)
}

type ratelimitSteps struct {
	tc             TestContext
	requestResults []int
	remaining      []string
}

func (s *ratelimitSteps) sendNRequests(ctx context.Context, n int, method, path string) error {
	s.requestResults = s.requestResults[:0]
	s.remaining = s.remaining[:0]
	for range n {
		if err := s.tc.Do(method, path, map[string]string{"payload": "hello"}, nil); err != nil {
			return err
		}
		s.requestResults = append(s.requestResults, s.tc.GetLastResponseStatus())
		s.remaining = append(s.remaining, s.tc.GetLastResponseHeader("X-RateLimit-Remaining"))
	}
	return nil
}

func (s *ratelimitSteps) allNRequestsShouldSucceed(ctx context.Context, n int) error {
	if len(s.requestResults) < n {
		return fmt.Errorf("only %d requests recorded", len(s.requestResults))
	}
	for i, code := range s.requestResults[:n] {
		if code >= 300 {
			return fmt.Errorf("request %d returned %d", i+1, code)
		}
	}
	return nil
}

func (s *ratelimitSteps) requestNShouldBeRateLimited(ctx context.Context, n int) error {
	if n < 1 || n > len(s.requestResults) {
		return fmt.Errorf("request %d was not sent", n)
	}
	if code := s.requestResults[n-1]; code != 429 {
		return fmt.Errorf("request %d: expected 429 but got %d", n, code)
	}
	return nil
}

func (s *ratelimitSteps) remainingQuotaShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseHeader("X-RateLimit-Remaining"); got != fmt.Sprint(expected) {
		return fmt.Errorf("expected remaining %d but got %q", expected, got)
	}
	return nil
}
