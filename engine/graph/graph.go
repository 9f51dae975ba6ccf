package graph

import (
	"slices"

	"github.com/assemblylab/pcbench/engine/domain"
)

// Graph is a read-only index over one scene snapshot. It never mutates the
// scene and holds no state beyond the snapshot it was built from.
type Graph struct {
	scene domain.Scene
	byID  map[string]domain.Component
}

// New indexes a scene.
func New(s domain.Scene) *Graph {
	g := &Graph{scene: s, byID: make(map[string]domain.Component, len(s.Components))}
	for _, c := range s.Components {
		if _, dup := g.byID[c.ID]; !dup {
			g.byID[c.ID] = c
		}
	}
	return g
}

// Components returns the placed components in placement order.
func (g *Graph) Components() []domain.Component {
	return g.scene.Components
}

// Component returns the component with the given id.
func (g *Graph) Component(id string) (domain.Component, bool) {
	c, ok := g.byID[id]
	return c, ok
}

// First returns the first placed component of the first type in types that is
// present. Listing an alias after the canonical type gives it lower priority.
func (g *Graph) First(types ...domain.ComponentType) (domain.Component, bool) {
	for _, t := range types {
		for _, c := range g.scene.Components {
			if c.Type == t {
				return c, true
			}
		}
	}
	return domain.Component{}, false
}

// Has reports whether any component of type t is placed.
func (g *Graph) Has(t domain.ComponentType) bool {
	_, ok := g.First(t)
	return ok
}

// OfType returns every placed component whose type is in types.
func (g *Graph) OfType(types ...domain.ComponentType) []domain.Component {
	var out []domain.Component
	for _, c := range g.scene.Components {
		if slices.Contains(types, c.Type) {
			out = append(out, c)
		}
	}
	return out
}

// Out returns the outgoing connections of c.
func (g *Graph) Out(c domain.Component) []domain.Connection {
	return g.scene.EdgesFrom(c)
}

// OutOfFirst returns the outgoing connections of the component First(types...)
// selects, or nil when none is placed.
func (g *Graph) OutOfFirst(types ...domain.ComponentType) []domain.Connection {
	c, ok := g.First(types...)
	if !ok {
		return nil
	}
	return g.Out(c)
}

// Edges returns every connection whose source is a placed component, grouped
// by component in placement order. Connections keyed by unknown ids are skipped.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, c := range g.scene.Components {
		for _, e := range g.Out(c) {
			out = append(out, Edge{From: c, Connection: e})
		}
	}
	return out
}

// Unconnected returns the components that have no outgoing connection.
func (g *Graph) Unconnected() []domain.Component {
	var out []domain.Component
	for _, c := range g.scene.Components {
		if len(g.Out(c)) == 0 {
			out = append(out, c)
		}
	}
	return out
}
