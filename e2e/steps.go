package e2e

import (
	"github.com/cucumber/godog"

	"bulwark/e2e/steps/admin"
	"bulwark/e2e/steps/common"
	"bulwark/e2e/steps/intrusion"
	"bulwark/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
	intrusion.RegisterSteps(ctx, tc)
	admin.RegisterSteps(ctx, tc)
}
