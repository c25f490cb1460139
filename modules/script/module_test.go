package script

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/cryoflow/internal/ctxlog"
)

func testContext(buf *bytes.Buffer) context.Context {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func TestScript_WritesFilesInWorkingDir(t *testing.T) {
	dir := t.TempDir()

	var logs bytes.Buffer
	out, err := OnRunScript(testContext(&logs), &Deps{}, &Input{
		Script: `printf 'staged\n' > marker.txt`,
		Dir:    dir,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)

	content, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	require.NoError(t, err)
	assert.Equal(t, "staged\n", string(content))
}

func TestScript_OutputLandsInLog(t *testing.T) {
	var logs bytes.Buffer
	_, err := OnRunScript(testContext(&logs), &Deps{}, &Input{
		Script: `echo "hello from shell"`,
	})

	require.NoError(t, err)
	assert.Contains(t, logs.String(), "hello from shell")
}

func TestScript_StopsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()

	var logs bytes.Buffer
	_, err := OnRunScript(testContext(&logs), &Deps{}, &Input{
		Script: "false\ntouch after.txt\n",
		Dir:    dir,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with status 1")
	_, statErr := os.Stat(filepath.Join(dir, "after.txt"))
	assert.True(t, os.IsNotExist(statErr), "set -e should stop before the touch")
}

func TestScript_IgnoreErrorExposesExitCode(t *testing.T) {
	var logs bytes.Buffer
	out, err := OnRunScript(testContext(&logs), &Deps{}, &Input{
		Script:      "exit 4",
		IgnoreError: true,
	})

	require.NoError(t, err)
	assert.Equal(t, 4, out.ExitCode)
}

func TestScript_ExtraEnvVisible(t *testing.T) {
	var logs bytes.Buffer
	_, err := OnRunScript(testContext(&logs), &Deps{}, &Input{
		Script: `echo "dataset=$DATASET"`,
		Env:    map[string]string{"DATASET": "empiar-10028"},
	})

	require.NoError(t, err)
	assert.Contains(t, logs.String(), "dataset=empiar-10028")
}

func TestScript_EmptyBodyRejected(t *testing.T) {
	var logs bytes.Buffer
	_, err := OnRunScript(testContext(&logs), &Deps{}, &Input{Script: "   \n"})

	require.Error(t, err)
}
