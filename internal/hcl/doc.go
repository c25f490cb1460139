// Package hcl implements the HCL-backed configuration loader and converter.
// It parses pipeline files and module manifests, translates them into the
// format-agnostic config model, and provides the reflection-based bridge
// between HCL expressions and the Go structs used by modules.
package hcl
