package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PositionalPipelinePath(t *testing.T) {
	var out bytes.Buffer

	cfg, exit, err := Parse([]string{"pipelines/relion31.hcl"}, &out)

	require.NoError(t, err)
	assert.False(t, exit)
	require.NotNil(t, cfg)
	assert.Equal(t, "pipelines/relion31.hcl", cfg.PipelinePath)
	assert.Equal(t, "modules", cfg.ModulesPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.WorkerCount)
}

func TestParse_FlagsOverrideDefaults(t *testing.T) {
	var out bytes.Buffer

	cfg, exit, err := Parse([]string{
		"--pipeline", "p.hcl",
		"--modules-path", "custom-modules",
		"--log-format", "json",
		"--log-level", "debug",
		"--workers", "8",
		"--healthcheck-port", "8080",
		"--dry-run",
	}, &out)

	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, "p.hcl", cfg.PipelinePath)
	assert.Equal(t, "custom-modules", cfg.ModulesPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 8080, cfg.HealthcheckPort)
	assert.True(t, cfg.DryRun)
}

func TestParse_ShorthandPipelineFlag(t *testing.T) {
	var out bytes.Buffer

	cfg, _, err := Parse([]string{"-p", "short.hcl"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "short.hcl", cfg.PipelinePath)
}

func TestParse_NoPathPrintsUsageAndExitsCleanly(t *testing.T) {
	var out bytes.Buffer

	cfg, exit, err := Parse(nil, &out)

	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_InvalidValuesReturnExitError(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"bad log format", []string{"--log-format", "yaml", "p.hcl"}},
		{"bad log level", []string{"--log-level", "verbose", "p.hcl"}},
		{"zero workers", []string{"--workers", "0", "p.hcl"}},
		{"unknown flag", []string{"--no-such-flag", "p.hcl"}},
		{"dry run with watch", []string{"--dry-run", "--watch", "p.hcl"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer

			cfg, exit, err := Parse(tc.args, &out)

			assert.Nil(t, cfg)
			assert.False(t, exit)
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
