package installer

import (
	"context"
	"fmt"
	"time"

	"github.com/tessapp/ota/internal/errs"
	"github.com/tessapp/ota/internal/prompter"
	"github.com/tessapp/ota/internal/runner"
	"github.com/tessapp/ota/internal/store"
)

const launchTimeout = 30 * time.Second

// ExecStrategy launches the platform installer tool through a
// CommandRunner. Args builds the invocation for a given artifact path.
type ExecStrategy struct {
	StrategyName string
	Runner       runner.CommandRunner
	Tool         string
	Args         func(artifactPath string) []string
}

func (s *ExecStrategy) Name() string { return s.StrategyName }

func (s *ExecStrategy) Launch(ctx context.Context, artifactPath string) error {
	if _, err := s.Runner.Run(ctx, launchTimeout, runner.Capture, s.Tool, s.Args(artifactPath)...); err != nil {
		return fmt.Errorf("%w: strategy %s: %v", errs.ErrInstallLaunchFailed, s.StrategyName, err)
	}
	return nil
}

// DefaultStrategies is the ordered fallback list: a full-featured invocation
// first, progressively plainer variants after it. Older installer tools
// reject flags the newer ones require.
func DefaultStrategies(r runner.CommandRunner, tool, mime string) []Strategy {
	if r == nil {
		r = &runner.ExecRunner{}
	}
	return []Strategy{
		&ExecStrategy{
			StrategyName: "content-uri",
			Runner:       r,
			Tool:         tool,
			Args: func(path string) []string {
				return []string{"--action", "install", "--uri", "content://" + path, "--mime", mime, "--grant-read"}
			},
		},
		&ExecStrategy{
			StrategyName: "file-uri",
			Runner:       r,
			Tool:         tool,
			Args: func(path string) []string {
				return []string{"--action", "view", "--uri", "file://" + path, "--mime", mime}
			},
		},
		&ExecStrategy{
			StrategyName: "plain-path",
			Runner:       r,
			Tool:         tool,
			Args: func(path string) []string {
				return []string{path}
			},
		},
	}
}

// installSourceGrantKey records that the user already walked through the
// unknown-sources consent flow, so we do not re-prompt.
const installSourceGrantKey = "installer_source_grant"

// PromptedGate is the CLI-host permission gate: interactive consent,
// persisted once granted.
type PromptedGate struct {
	KV       store.KV
	Prompter prompter.Prompter
}

func (g *PromptedGate) Allowed(ctx context.Context) bool {
	v, ok := g.KV.Get(installSourceGrantKey)
	return ok && v == "granted"
}

func (g *PromptedGate) Request(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if g.Prompter == nil {
		return false, nil
	}
	ok, err := g.Prompter.Confirm("Allow installing packages from this app?")
	if err != nil {
		return false, fmt.Errorf("permission prompt failed: %w", err)
	}
	if ok {
		g.KV.Set(installSourceGrantKey, "granted")
	}
	return ok, nil
}

// StaticGate answers with a fixed verdict; used in tests and on platforms
// where the permission concept does not exist.
type StaticGate bool

func (g StaticGate) Allowed(context.Context) bool          { return bool(g) }
func (g StaticGate) Request(context.Context) (bool, error) { return bool(g), nil }
