// Package graph indexes a scene snapshot so the connectivity engine can look up
// components by id or type and walk their outgoing edges.
package graph

import "github.com/assemblylab/pcbench/engine/domain"

// Edge is a resolved connection: the source component plus the raw link.
type Edge struct {
	From domain.Component
	domain.Connection
}
