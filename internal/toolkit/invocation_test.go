package toolkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCTFStar_BuildsFullArgv(t *testing.T) {
	inv, err := ParseCTFStar(ParseCTFArgs{
		Input:             "run/data.star",
		BoxSize:           320,
		Apix:              1.035,
		Voltage:           300,
		SphericalAberr:    2.7,
		AmplitudeContrast: 0.1,
		Output:            "run/ctf.pkl",
	})

	require.NoError(t, err)
	assert.False(t, inv.Utility)
	assert.Equal(t, []string{
		"cryodrgn", "parse_ctf_star",
		"run/data.star",
		"-D", "320",
		"--Apix", "1.035",
		"--kv", "300",
		"--cs", "2.7",
		"-w", "0.1",
		"--ps", "0",
		"-o", "run/ctf.pkl",
	}, inv.Argv("cryodrgn", "cryodrgn_utils"))
}

func TestParseCTFStar_Validation(t *testing.T) {
	base := ParseCTFArgs{
		Input: "in.star", BoxSize: 128, Apix: 1.7,
		Voltage: 300, SphericalAberr: 2.7, AmplitudeContrast: 0.1,
		Output: "out.pkl",
	}

	cases := []struct {
		name   string
		mutate func(*ParseCTFArgs)
	}{
		{"missing input", func(a *ParseCTFArgs) { a.Input = "" }},
		{"missing output", func(a *ParseCTFArgs) { a.Output = "" }},
		{"zero box size", func(a *ParseCTFArgs) { a.BoxSize = 0 }},
		{"odd box size", func(a *ParseCTFArgs) { a.BoxSize = 129 }},
		{"negative apix", func(a *ParseCTFArgs) { a.Apix = -1 }},
		{"zero voltage", func(a *ParseCTFArgs) { a.Voltage = 0 }},
		{"contrast above one", func(a *ParseCTFArgs) { a.AmplitudeContrast = 1.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args := base
			tc.mutate(&args)
			_, err := ParseCTFStar(args)
			assert.Error(t, err)
		})
	}
}

func TestParsePoseStar_OmitsZeroOverrides(t *testing.T) {
	inv, err := ParsePoseStar(ParsePoseArgs{Input: "in.star", Output: "pose.pkl"})

	require.NoError(t, err)
	assert.Equal(t, []string{"in.star", "-o", "pose.pkl"}, inv.Args)

	inv, err = ParsePoseStar(ParsePoseArgs{Input: "in.star", BoxSize: 256, Apix: 1.7, Output: "pose.pkl"})

	require.NoError(t, err)
	assert.Equal(t, []string{"in.star", "-o", "pose.pkl", "-D", "256", "--Apix", "1.7"}, inv.Args)
}

func TestDownsample_OptionalFlags(t *testing.T) {
	inv, err := Downsample(DownsampleArgs{Input: "stack.mrcs", BoxSize: 128, Output: "small.mrcs"})

	require.NoError(t, err)
	assert.Equal(t, []string{"stack.mrcs", "-D", "128", "-o", "small.mrcs"}, inv.Args)

	inv, err = Downsample(DownsampleArgs{
		Input: "stack.star", BoxSize: 64, Chunk: 10000,
		Indices: "ind.pkl", Datadir: "/data", Output: "small.mrcs",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		"stack.star", "-D", "64",
		"--chunk", "10000",
		"--ind", "ind.pkl",
		"--datadir", "/data",
		"-o", "small.mrcs",
	}, inv.Args)
}

func TestUtilityCommands_UseUtilsBinary(t *testing.T) {
	ws, err := WriteStar(WriteStarArgs{
		Particles: "stack.mrcs", CTF: "ctf.pkl", Poses: "pose.pkl",
		FullPath: true, Output: "out.star",
	})
	require.NoError(t, err)
	assert.True(t, ws.Utility)
	assert.Equal(t, "cryodrgn_utils", ws.Argv("cryodrgn", "cryodrgn_utils")[0])
	assert.Equal(t, []string{
		"stack.mrcs", "--ctf", "ctf.pkl", "--poses", "pose.pkl", "--full-path", "-o", "out.star",
	}, ws.Args)

	fs, err := FilterStar(FilterStarArgs{Input: "in.star", Indices: "ind.pkl", Output: "out.star"})
	require.NoError(t, err)
	assert.True(t, fs.Utility)

	pf, err := PhaseFlip(PhaseFlipArgs{Input: "stack.mrcs", CTF: "ctf.pkl", Output: "flipped.mrcs"})
	require.NoError(t, err)
	assert.True(t, pf.Utility)
	assert.Equal(t, []string{"stack.mrcs", "ctf.pkl", "-o", "flipped.mrcs"}, pf.Args)
}

func TestWriteStar_RequiresCTF(t *testing.T) {
	_, err := WriteStar(WriteStarArgs{Particles: "stack.mrcs", Output: "out.star"})
	assert.Error(t, err)
}
