// Package config defines the format-agnostic configuration model for the
// engine: the pipeline of steps and resources declared by the user, and the
// runner/asset manifests that describe each module's contract. Format-specific
// loaders (currently HCL) translate their syntax into this model, so nothing
// outside the loader depends on a particular configuration language.
package config
