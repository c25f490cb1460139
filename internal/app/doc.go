// Package app wires the application together: it owns the logger, loads the
// pipeline and module manifests, populates and validates the registry, and
// drives the dag/executor machinery for single runs, dry runs, and watch
// mode.
package app
