package admin

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	AdminDo(method, path string, body any) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers admin API step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &adminSteps{tc: tc}

	ctx.Step(`^the admin sends (GET|POST|DELETE) "([^"]*)"$`, steps.adminRequest)
	ctx.Step(`^the admin sends POST "([^"]*)" with body '([^']*)'$`, steps.adminPost)
	ctx.Step(`^I send (GET|POST|DELETE) "([^"]*)" with admin token "([^"]*)"$`, steps.requestWithToken)
	ctx.Step(`^the admin blocks "([^"]*)" for "([^"]*)"$`, steps.adminBlocks)
	ctx.Step(`^the admin unblocks "([^"]*)"$`, steps.adminUnblocks)
}

type adminSteps struct {
	tc TestContext
}

func (s *adminSteps) adminRequest(ctx context.Context, method, path string) error {
	return s.tc.AdminDo(method, path, nil)
}

func (s *adminSteps) adminPost(ctx context.Context, path, body string) error {
	return s.tc.AdminDo("POST", path, body)
}

func (s *adminSteps) requestWithToken(ctx context.Context, method, path, token string) error {
	return s.tc.Do(method, path, nil, map[string]string{"X-Admin-Token": token})
}

func (s *adminSteps) adminBlocks(ctx context.Context, ip, duration string) error {
	body := map[string]string{"ip": ip, "duration": duration, "reason": "e2e"}
	if err := s.tc.AdminDo("POST", "/admin/intrusion/blocks", body); err != nil {
		return err
	}
	if code := s.tc.GetLastResponseStatus(); code != 201 {
		return fmt.Errorf("manual block: expected 201 but got %d: %s", code, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *adminSteps) adminUnblocks(ctx context.Context, ip string) error {
	if err := s.tc.AdminDo("DELETE", "/admin/intrusion/blocks/"+ip, nil); err != nil {
		return err
	}
	if code := s.tc.GetLastResponseStatus(); code != 200 {
		return fmt.Errorf("unblock: expected 200 but got %d: %s", code, s.tc.GetLastResponseBody())
	}
	return nil
}
