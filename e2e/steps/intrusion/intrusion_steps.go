package intrusion

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// Attack payloads by category. Each is sent as the q query parameter.
var payloads = map[string]string{
	"sql injection":     "1' OR '1'='1",
	"xss":               "<script>alert(1)</script>",
	"path traversal":    "../../../etc/passwd",
	"command injection": "; whoami",
}

// RegisterSteps registers intrusion detection step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &intrusionSteps{tc: tc}

	ctx.Step(`^I send (\d+) (sql injection|xss|path traversal|command injection) probes? to "([^"]*)"$`, steps.sendProbes)
	ctx.Step(`^every probe should be rejected with status (\d+)$`, steps.everyProbeRejected)
	ctx.Step(`^I POST the JSON body '([^']*)' to "([^"]*)"$`, steps.postJSON)
	ctx.Step(`^I fail authentication (\d+) times on "([^"]*)"$`, steps.failAuthentication)
}

type intrusionSteps struct {
	tc      TestContext
	results []int
}

func (s *intrusionSteps) sendProbes(ctx context.Context, n int, category, path string) error {
	s.results = s.results[:0]
	target := path + "?q=" + url.QueryEscape(payloads[category])
	for range n {
		if err := s.tc.GET(target, nil); err != nil {
			return err
		}
		s.results = append(s.results, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *intrusionSteps) everyProbeRejected(ctx context.Context, status int) error {
	for i, code := range s.results {
		if code != status {
			return fmt.Errorf("probe %d: expected %d but got %d", i+1, status, code)
		}
	}
	return nil
}

func (s *intrusionSteps) postJSON(ctx context.Context, body, path string) error {
	return s.tc.Do("POST", path, body, nil)
}

func (s *intrusionSteps) failAuthentication(ctx context.Context, n int, path string) error {
	for range n {
		if err := s.tc.GET(path, map[string]string{"Authorization": "Bearer not-a-token"}); err != nil {
			return err
		}
		if code := s.tc.GetLastResponseStatus(); code != 401 && code != 403 {
			return fmt.Errorf("expected an authentication failure but got %d", code)
		}
	}
	return nil
}
