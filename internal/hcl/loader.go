package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/cryoflow/internal/config"
	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/fsutil"
	"github.com/vk/cryoflow/internal/schema"
)

// Loader is the HCL implementation of the config.Loader interface.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load finds every .hcl file under the given paths, parses them, and
// translates the result into the unified config model. Duplicate step,
// resource, runner or asset identities across files are load errors.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)

	model := &config.Model{
		Runners:  make(map[string]*config.RunnerDefinition),
		Assets:   make(map[string]*config.AssetDefinition),
		Pipeline: &config.Pipeline{},
	}

	var filePaths []string
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan path %q: %w", path, err)
		}
		filePaths = append(filePaths, found...)
	}
	logger.Debug("Found HCL files to load.", "count", len(filePaths), "files", filePaths)

	seenSteps := make(map[string]string)
	seenResources := make(map[string]string)

	for _, filePath := range filePaths {
		hclFile, diags := l.parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
		}

		var file schema.File
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &file); diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", filePath, diags)
		}

		for _, rn := range file.Runners {
			if _, exists := model.Runners[rn.Type]; exists {
				return nil, nil, fmt.Errorf("duplicate runner manifest %q in %s", rn.Type, filePath)
			}
			def, err := l.translateRunnerDefinition(rn)
			if err != nil {
				return nil, nil, fmt.Errorf("in %s: %w", filePath, err)
			}
			model.Runners[rn.Type] = def
		}

		for _, as := range file.Assets {
			if _, exists := model.Assets[as.Type]; exists {
				return nil, nil, fmt.Errorf("duplicate asset manifest %q in %s", as.Type, filePath)
			}
			def, err := l.translateAssetDefinition(as)
			if err != nil {
				return nil, nil, fmt.Errorf("in %s: %w", filePath, err)
			}
			model.Assets[as.Type] = def
		}

		for _, s := range file.Steps {
			id := fmt.Sprintf("step.%s.%s", s.RunnerType, s.Name)
			if prev, exists := seenSteps[id]; exists {
				return nil, nil, fmt.Errorf("duplicate step %q in %s (first declared in %s)", id, filePath, prev)
			}
			seenSteps[id] = filePath
			model.Pipeline.Steps = append(model.Pipeline.Steps, l.translateStep(s))
		}

		for _, r := range file.Resources {
			id := fmt.Sprintf("resource.%s.%s", r.AssetType, r.Name)
			if prev, exists := seenResources[id]; exists {
				return nil, nil, fmt.Errorf("duplicate resource %q in %s (first declared in %s)", id, filePath, prev)
			}
			seenResources[id] = filePath
			model.Pipeline.Resources = append(model.Pipeline.Resources, l.translateResource(r))
		}

		logger.Debug("Loaded definitions from HCL file.", "file", filePath)
	}

	if err := validateReferences(model); err != nil {
		return nil, nil, err
	}

	logger.Info("Configuration loaded.",
		"steps", len(model.Pipeline.Steps),
		"resources", len(model.Pipeline.Resources),
		"runner_manifests", len(model.Runners),
		"asset_manifests", len(model.Assets),
	)

	return model, NewConverter(), nil
}

// validateReferences checks that every step and resource names a known
// runner or asset type. This is a load-time error so a typo fails before
// anything executes.
func validateReferences(model *config.Model) error {
	for _, s := range model.Pipeline.Steps {
		if _, ok := model.Runners[s.RunnerType]; !ok {
			return fmt.Errorf("step %q references unknown runner type %q", s.Name, s.RunnerType)
		}
	}
	for _, r := range model.Pipeline.Resources {
		if _, ok := model.Assets[r.AssetType]; !ok {
			return fmt.Errorf("resource %q references unknown asset type %q", r.Name, r.AssetType)
		}
	}
	return nil
}
