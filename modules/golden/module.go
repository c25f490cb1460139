// Package golden provides the 'golden_check' runner: it compares a produced
// artifact against a reference copy. Binary artifacts are compared by
// SHA-256 digest; text artifacts additionally report a line diff on
// mismatch.
package golden

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/fsutil"
	"github.com/vk/cryoflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Path    string `cryo:"path"`
	Golden  string `cryo:"golden"`
	Enabled bool   `cryo:"enabled"`
	Text    bool   `cryo:"text"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// Output defines the data structure returned by the runner. Checked is false
// when the comparison was disabled for the run.
type Output struct {
	Checked bool   `cty:"checked"`
	SHA256  string `cty:"sha256"`
}

// OnRunGoldenCheck is the handler for the 'golden_check' runner.
func OnRunGoldenCheck(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "golden_check")

	if !input.Enabled {
		logger.Warn("Golden comparison disabled; skipping.", "path", input.Path)
		return &Output{Checked: false}, nil
	}

	got, err := fsutil.SHA256File(input.Path)
	if err != nil {
		return nil, fmt.Errorf("golden_check: cannot read artifact: %w", err)
	}
	want, err := fsutil.SHA256File(input.Golden)
	if err != nil {
		return nil, fmt.Errorf("golden_check: cannot read golden file: %w", err)
	}

	if got == want {
		logger.Info("Artifact matches golden file.", "path", input.Path)
		return &Output{Checked: true, SHA256: got}, nil
	}

	if input.Text {
		diff, derr := textDiff(input.Golden, input.Path)
		if derr == nil && diff != "" {
			return nil, fmt.Errorf("golden_check: %s differs from %s (-golden +got):\n%s", input.Path, input.Golden, diff)
		}
	}
	return nil, fmt.Errorf("golden_check: %s differs from %s (sha256 %s != %s)", input.Path, input.Golden, got, want)
}

func textDiff(goldenPath, gotPath string) (string, error) {
	want, err := os.ReadFile(goldenPath)
	if err != nil {
		return "", err
	}
	got, err := os.ReadFile(gotPath)
	if err != nil {
		return "", err
	}
	return cmp.Diff(strings.Split(string(want), "\n"), strings.Split(string(got), "\n")), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunGoldenCheck", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunGoldenCheck,
	})
}
