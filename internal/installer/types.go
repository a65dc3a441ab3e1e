package installer

import "context"

// Strategy is one way of invoking the OS package installer. Strategies
// differ in the intent action and permission flags used; the orchestrator
// tries them most- to least-preferred.
type Strategy interface {
	Name() string
	// Launch hands the artifact to the installer. A nil return means the
	// installer came up, not that installation finished — confirmation is
	// inferred on next app start.
	Launch(ctx context.Context, artifactPath string) error
}

// PermissionGate models the OS permission to launch package installers from
// unknown sources.
type PermissionGate interface {
	Allowed(ctx context.Context) bool
	// Request runs the guided consent flow. false means the user declined;
	// the orchestrator then goes straight to manual fallback.
	Request(ctx context.Context) (bool, error)
}

type Outcome string

const (
	// OutcomeLaunched means an installer strategy launched; the result names
	// which one.
	OutcomeLaunched Outcome = "launched"
	// OutcomeManualFallback means no strategy could launch (or permission
	// was declined); the user installs the artifact manually from the
	// reported paths.
	OutcomeManualFallback Outcome = "manual-fallback"
)

// Result is the terminal outcome of one Install invocation.
type Result struct {
	Outcome       Outcome
	Strategy      string
	CachePath     string
	PublishedPath string
}
