// This file translates HCL schema structs into the format-agnostic
// configuration model defined in the config package.

package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/cryoflow/internal/config"
	"github.com/vk/cryoflow/internal/schema"
)

// extractBodyAttributes flattens an HCL body into a map of named, unevaluated
// expressions. Evaluation is deferred until execution so expressions can
// reference outputs of completed steps.
func extractBodyAttributes(body hcl.Body) map[string]hcl.Expression {
	if body == nil {
		return nil
	}

	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		// A non-attribute item inside arguments/uses is a definition error;
		// surface it as an empty map and let required-argument validation
		// report the missing names with context.
		return nil
	}

	out := make(map[string]hcl.Expression, len(attrs))
	for name, attr := range attrs {
		out[name] = attr.Expr
	}
	return out
}

// translateStep converts the HCL-specific step schema into the agnostic model.
func (l *Loader) translateStep(s *schema.Step) *config.Step {
	step := &config.Step{
		RunnerType: s.RunnerType,
		Name:       s.Name,
		DependsOn:  s.DependsOn,
	}
	if s.Arguments != nil {
		step.Arguments = extractBodyAttributes(s.Arguments.Body)
	}
	if s.Uses != nil {
		step.Uses = extractBodyAttributes(s.Uses.Body)
	}
	return step
}

// translateResource converts the HCL-specific resource schema into the agnostic model.
func (l *Loader) translateResource(r *schema.Resource) *config.Resource {
	resource := &config.Resource{
		AssetType: r.AssetType,
		Name:      r.Name,
		DependsOn: r.DependsOn,
	}
	if r.Arguments != nil {
		resource.Arguments = extractBodyAttributes(r.Arguments.Body)
	}
	return resource
}

// translateInputDefinition processes a single manifest input block, handling
// its default value. An input with a valid, non-null default is optional.
func translateInputDefinition(in *schema.InputDefinition, ownerKind, ownerName string) (*config.InputDefinition, error) {
	def := &config.InputDefinition{
		Name:        in.Name,
		Description: in.Description,
	}

	if in.Default != nil {
		val, diags := in.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid default value for input %q in %s %q: %w", in.Name, ownerKind, ownerName, diags)
		}
		if !val.IsNull() {
			def.Default = &val
			def.Optional = true
		}
	}

	return def, nil
}

// translateRunnerDefinition converts an HCL runner manifest into the agnostic model.
func (l *Loader) translateRunnerDefinition(s *schema.RunnerDefinition) (*config.RunnerDefinition, error) {
	r := &config.RunnerDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
		Uses:        make(map[string]*config.UsesDefinition),
	}
	if s.Lifecycle != nil {
		r.Lifecycle = &config.Lifecycle{OnRun: s.Lifecycle.OnRun}
	}
	for _, in := range s.Inputs {
		def, err := translateInputDefinition(in, "runner", s.Type)
		if err != nil {
			return nil, err
		}
		r.Inputs[in.Name] = def
	}
	for _, out := range s.Outputs {
		r.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Description: out.Description,
		}
	}
	for _, use := range s.Uses {
		r.Uses[use.LocalName] = &config.UsesDefinition{
			LocalName: use.LocalName,
			AssetType: use.AssetType,
		}
	}
	return r, nil
}

// translateAssetDefinition converts an HCL asset manifest into the agnostic model.
func (l *Loader) translateAssetDefinition(s *schema.AssetDefinition) (*config.AssetDefinition, error) {
	a := &config.AssetDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
	}
	if s.Lifecycle != nil {
		a.Lifecycle = &config.AssetLifecycle{Create: s.Lifecycle.Create, Destroy: s.Lifecycle.Destroy}
	}
	for _, in := range s.Inputs {
		def, err := translateInputDefinition(in, "asset", s.Type)
		if err != nil {
			return nil, err
		}
		a.Inputs[in.Name] = def
	}
	for _, out := range s.Outputs {
		a.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Description: out.Description,
		}
	}
	return a, nil
}
