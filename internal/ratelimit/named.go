package ratelimit

import "time"

// Named limiter rules. Windows and limits are per client key (IP, or tenant
// for the tenant-wide limiter).
var (
	// RuleAuth covers login attempts. Only failures consume budget, and
	// three breached windows escalate to a 30 minute block.
	RuleAuth = Rule{
		Name:              "auth",
		Window:            15 * time.Minute,
		Limit:             10,
		BlockAfter:        3,
		BlockFor:          30 * time.Minute,
		BreachPeriod:      24 * time.Hour,
		CountFailuresOnly: true,
	}

	RulePasswordReset = Rule{
		Name:   "password_reset",
		Window: time.Hour,
		Limit:  3,
	}

	RuleRegistration = Rule{
		Name:   "registration",
		Window: time.Hour,
		Limit:  5,
	}

	RuleImport = Rule{
		Name:   "import",
		Window: time.Hour,
		Limit:  10,
	}

	RulePayment = Rule{
		Name:   "payment",
		Window: time.Minute,
		Limit:  30,
	}

	RuleAPI = Rule{
		Name:   "api",
		Window: time.Minute,
		Limit:  100,
	}

	RuleTenant = Rule{
		Name:   "tenant",
		Window: time.Minute,
		Limit:  1000,
	}

	RuleDocument = Rule{
		Name:   "document",
		Window: time.Hour,
		Limit:  50,
	}

	// RuleExport charges only completed exports; a rejected request should
	// not eat into the hourly allowance.
	RuleExport = Rule{
		Name:               "export",
		Window:             time.Hour,
		Limit:              30,
		CountSuccessesOnly: true,
	}
)
