package toolkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/cryoflow/internal/ctxlog"
)

// installFakeBinaries writes shell scripts named cryodrgn/cryodrgn_utils onto
// PATH and returns their directory.
func installFakeBinaries(t *testing.T, script string) string {
	t.Helper()

	binDir := t.TempDir()
	for _, name := range []string{"cryodrgn", "cryodrgn_utils"} {
		path := filepath.Join(binDir, name)
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return binDir
}

func testContext(buf *bytes.Buffer) context.Context {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func TestNew_ResolvesBothBinaries(t *testing.T) {
	binDir := installFakeBinaries(t, "exit 0")

	tk, err := New("cryodrgn", "cryodrgn_utils")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(binDir, "cryodrgn"), tk.Binary)
	assert.Equal(t, filepath.Join(binDir, "cryodrgn_utils"), tk.UtilsBinary)
}

func TestNew_MissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := New("cryodrgn", "cryodrgn_utils")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRun_EchoesInvocationAndStreamsOutput(t *testing.T) {
	installFakeBinaries(t, `echo "processing $2"; echo "warned" >&2`)

	tk, err := New("cryodrgn", "cryodrgn_utils")
	require.NoError(t, err)

	var trace, logs bytes.Buffer
	tk.Trace = &trace

	inv, err := Downsample(DownsampleArgs{Input: "stack.mrcs", BoxSize: 128, Output: "out.mrcs"})
	require.NoError(t, err)

	require.NoError(t, tk.Run(testContext(&logs), inv))

	assert.Contains(t, trace.String(), "+ "+tk.Binary+" downsample stack.mrcs -D 128 -o out.mrcs")
	assert.Contains(t, logs.String(), "processing stack.mrcs")
	assert.Contains(t, logs.String(), "warned")
	assert.Contains(t, logs.String(), "stream=stderr")
}

func TestRun_NonZeroExitReturnsExitError(t *testing.T) {
	installFakeBinaries(t, "exit 3")

	tk, err := New("cryodrgn", "cryodrgn_utils")
	require.NoError(t, err)
	tk.Trace = nil

	var logs bytes.Buffer
	inv, err := FilterStar(FilterStarArgs{Input: "in.star", Indices: "ind.pkl", Output: "out.star"})
	require.NoError(t, err)

	runErr := tk.Run(testContext(&logs), inv)

	require.Error(t, runErr)
	var exitErr *ExitError
	require.ErrorAs(t, runErr, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "filter_star", exitErr.Subcommand)
}

func TestRun_AppendsExtraEnv(t *testing.T) {
	installFakeBinaries(t, `echo "cuda=$CUDA_VISIBLE_DEVICES"`)

	tk, err := New("cryodrgn", "cryodrgn_utils")
	require.NoError(t, err)
	tk.Trace = nil
	tk.Env = []string{"CUDA_VISIBLE_DEVICES=1"}

	var logs bytes.Buffer
	inv, err := PhaseFlip(PhaseFlipArgs{Input: "a.mrcs", CTF: "c.pkl", Output: "o.mrcs"})
	require.NoError(t, err)

	require.NoError(t, tk.Run(testContext(&logs), inv))
	assert.Contains(t, logs.String(), "cuda=1")
}

func TestRun_CancelledContext(t *testing.T) {
	installFakeBinaries(t, "sleep 10")

	tk, err := New("cryodrgn", "cryodrgn_utils")
	require.NoError(t, err)
	tk.Trace = nil

	var logs bytes.Buffer
	ctx, cancel := context.WithCancel(testContext(&logs))

	inv, err := ParsePoseStar(ParsePoseArgs{Input: "in.star", Output: "pose.pkl"})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- tk.Run(ctx, inv) }()
	cancel()

	runErr := <-errCh
	require.Error(t, runErr)
	assert.True(t, errors.Is(runErr, context.Canceled), fmt.Sprintf("got %v", runErr))
}
