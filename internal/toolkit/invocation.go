// Package toolkit wraps the command-line surface of the external cryo-EM
// reconstruction toolkit. The toolkit itself is a black box: this package
// only builds argv vectors for its subcommands, validates their parameters,
// and executes them with shell-style tracing. Artifact formats (.star, .pkl,
// .mrcs) are never interpreted here.
package toolkit

import (
	"fmt"
	"strconv"
	"strings"
)

// Invocation is a single fully-formed subcommand invocation. Utility selects
// the companion utilities binary instead of the main one, mirroring the
// toolkit's split between reconstruction commands and file utilities.
type Invocation struct {
	Subcommand string
	Args       []string
	Utility    bool
}

// Argv returns the complete argument vector for the invocation, including
// the resolved binary.
func (inv Invocation) Argv(binary, utilsBinary string) []string {
	bin := binary
	if inv.Utility {
		bin = utilsBinary
	}
	argv := make([]string, 0, len(inv.Args)+2)
	argv = append(argv, bin, inv.Subcommand)
	argv = append(argv, inv.Args...)
	return argv
}

// String renders the invocation without a binary, for messages that refer to
// the subcommand regardless of how the toolkit is installed.
func (inv Invocation) String() string {
	return strings.Join(append([]string{inv.Subcommand}, inv.Args...), " ")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// validBoxSize reports whether a box size is acceptable to the toolkit,
// which requires an even, positive pixel count.
func validBoxSize(d int) error {
	if d <= 0 {
		return fmt.Errorf("box size must be positive, got %d", d)
	}
	if d%2 != 0 {
		return fmt.Errorf("box size must be even, got %d", d)
	}
	return nil
}

// ParseCTFArgs holds the parameters for a parse_ctf_star invocation, which
// extracts per-particle CTF parameters from a STAR file into a serialized
// parameter file.
type ParseCTFArgs struct {
	Input             string  // source .star file
	BoxSize           int     // -D
	Apix              float64 // --Apix, Angstroms per pixel
	Voltage           float64 // --kv, accelerating voltage in kV
	SphericalAberr    float64 // --cs, spherical aberration in mm
	AmplitudeContrast float64 // -w, amplitude contrast ratio
	PhaseShift        float64 // --ps, phase shift in degrees
	Output            string  // destination .pkl file
}

// ParseCTFStar builds a validated parse_ctf_star invocation.
func ParseCTFStar(a ParseCTFArgs) (Invocation, error) {
	if a.Input == "" || a.Output == "" {
		return Invocation{}, fmt.Errorf("parse_ctf_star: input and output are required")
	}
	if err := validBoxSize(a.BoxSize); err != nil {
		return Invocation{}, fmt.Errorf("parse_ctf_star: %w", err)
	}
	if a.Apix <= 0 {
		return Invocation{}, fmt.Errorf("parse_ctf_star: pixel size must be positive, got %g", a.Apix)
	}
	if a.Voltage <= 0 {
		return Invocation{}, fmt.Errorf("parse_ctf_star: voltage must be positive, got %g", a.Voltage)
	}
	if a.SphericalAberr < 0 {
		return Invocation{}, fmt.Errorf("parse_ctf_star: spherical aberration must not be negative, got %g", a.SphericalAberr)
	}
	if a.AmplitudeContrast < 0 || a.AmplitudeContrast > 1 {
		return Invocation{}, fmt.Errorf("parse_ctf_star: amplitude contrast must be within [0,1], got %g", a.AmplitudeContrast)
	}

	return Invocation{
		Subcommand: "parse_ctf_star",
		Args: []string{
			a.Input,
			"-D", strconv.Itoa(a.BoxSize),
			"--Apix", formatFloat(a.Apix),
			"--kv", formatFloat(a.Voltage),
			"--cs", formatFloat(a.SphericalAberr),
			"-w", formatFloat(a.AmplitudeContrast),
			"--ps", formatFloat(a.PhaseShift),
			"-o", a.Output,
		},
	}, nil
}

// ParsePoseArgs holds the parameters for a parse_pose_star invocation, which
// extracts rotation/translation parameters from a STAR file. BoxSize and
// Apix are optional overrides for STAR files that do not carry optics groups.
type ParsePoseArgs struct {
	Input   string
	BoxSize int     // -D, 0 omits the flag
	Apix    float64 // --Apix, 0 omits the flag
	Output  string
}

// ParsePoseStar builds a validated parse_pose_star invocation.
func ParsePoseStar(a ParsePoseArgs) (Invocation, error) {
	if a.Input == "" || a.Output == "" {
		return Invocation{}, fmt.Errorf("parse_pose_star: input and output are required")
	}

	args := []string{a.Input, "-o", a.Output}
	if a.BoxSize != 0 {
		if err := validBoxSize(a.BoxSize); err != nil {
			return Invocation{}, fmt.Errorf("parse_pose_star: %w", err)
		}
		args = append(args, "-D", strconv.Itoa(a.BoxSize))
	}
	if a.Apix != 0 {
		if a.Apix < 0 {
			return Invocation{}, fmt.Errorf("parse_pose_star: pixel size must be positive, got %g", a.Apix)
		}
		args = append(args, "--Apix", formatFloat(a.Apix))
	}

	return Invocation{Subcommand: "parse_pose_star", Args: args}, nil
}

// DownsampleArgs holds the parameters for a downsample invocation, which
// reduces an image stack to a smaller box size, optionally writing the
// result in chunks.
type DownsampleArgs struct {
	Input   string
	BoxSize int    // -D, target box size
	Chunk   int    // --chunk, images per output chunk; 0 omits the flag
	Indices string // --ind, optional index subset file
	Datadir string // --datadir, optional path prefix for relative stack paths
	Output  string
}

// Downsample builds a validated downsample invocation.
func Downsample(a DownsampleArgs) (Invocation, error) {
	if a.Input == "" || a.Output == "" {
		return Invocation{}, fmt.Errorf("downsample: input and output are required")
	}
	if err := validBoxSize(a.BoxSize); err != nil {
		return Invocation{}, fmt.Errorf("downsample: %w", err)
	}
	if a.Chunk < 0 {
		return Invocation{}, fmt.Errorf("downsample: chunk size must not be negative, got %d", a.Chunk)
	}

	args := []string{a.Input, "-D", strconv.Itoa(a.BoxSize)}
	if a.Chunk > 0 {
		args = append(args, "--chunk", strconv.Itoa(a.Chunk))
	}
	if a.Indices != "" {
		args = append(args, "--ind", a.Indices)
	}
	if a.Datadir != "" {
		args = append(args, "--datadir", a.Datadir)
	}
	args = append(args, "-o", a.Output)

	return Invocation{Subcommand: "downsample", Args: args}, nil
}

// WriteStarArgs holds the parameters for a write_star invocation, which
// assembles a STAR metadata file from an image stack, a CTF parameter file,
// and optional pose/index files.
type WriteStarArgs struct {
	Particles string // image stack (.mrcs or .txt listing)
	CTF       string // --ctf, serialized CTF parameters
	Poses     string // --poses, optional serialized poses
	Indices   string // --ind, optional index subset file
	FullPath  bool   // --full-path, record absolute stack paths
	Output    string
}

// WriteStar builds a validated write_star invocation (a utility command).
func WriteStar(a WriteStarArgs) (Invocation, error) {
	if a.Particles == "" || a.Output == "" {
		return Invocation{}, fmt.Errorf("write_star: particles and output are required")
	}
	if a.CTF == "" {
		return Invocation{}, fmt.Errorf("write_star: ctf parameter file is required")
	}

	args := []string{a.Particles, "--ctf", a.CTF}
	if a.Poses != "" {
		args = append(args, "--poses", a.Poses)
	}
	if a.Indices != "" {
		args = append(args, "--ind", a.Indices)
	}
	if a.FullPath {
		args = append(args, "--full-path")
	}
	args = append(args, "-o", a.Output)

	return Invocation{Subcommand: "write_star", Args: args, Utility: true}, nil
}

// FilterStarArgs holds the parameters for a filter_star invocation, which
// subsets a STAR file by a serialized index list.
type FilterStarArgs struct {
	Input   string
	Indices string // --ind
	Output  string
}

// FilterStar builds a validated filter_star invocation (a utility command).
func FilterStar(a FilterStarArgs) (Invocation, error) {
	if a.Input == "" || a.Output == "" {
		return Invocation{}, fmt.Errorf("filter_star: input and output are required")
	}
	if a.Indices == "" {
		return Invocation{}, fmt.Errorf("filter_star: index file is required")
	}

	return Invocation{
		Subcommand: "filter_star",
		Args:       []string{a.Input, "--ind", a.Indices, "-o", a.Output},
		Utility:    true,
	}, nil
}

// PhaseFlipArgs holds the parameters for a phase_flip invocation, which
// applies CTF phase correction to an image stack.
type PhaseFlipArgs struct {
	Input  string
	CTF    string // serialized CTF parameters, positional
	Output string
}

// PhaseFlip builds a validated phase_flip invocation (a utility command).
func PhaseFlip(a PhaseFlipArgs) (Invocation, error) {
	if a.Input == "" || a.CTF == "" || a.Output == "" {
		return Invocation{}, fmt.Errorf("phase_flip: input, ctf and output are required")
	}

	return Invocation{
		Subcommand: "phase_flip",
		Args:       []string{a.Input, a.CTF, "-o", a.Output},
		Utility:    true,
	}, nil
}
