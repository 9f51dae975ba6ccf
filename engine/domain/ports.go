package domain

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Port is a socket on a component (or on the wall) that accepts one connection.
type Port struct {
	ID            string          `json:"id"`
	Owner         ComponentType   `json:"owner"`
	Kind          ConnectionKind  `json:"connectionType"`
	AcceptedTypes []ComponentType `json:"accepts"`
	OccupiedBy    string          `json:"occupiedBy,omitempty"`
}

// Accepts reports whether a component of type t may correctly plug into p.
func (p Port) Accepts(t ComponentType) bool {
	return slices.Contains(p.AcceptedTypes, t)
}

// Free reports whether nothing is plugged into p.
func (p Port) Free() bool { return p.OccupiedBy == "" }

var (
	usbDevices   = []ComponentType{TypeKeyboard, TypeMouse, TypeWebcam, TypeScanner, TypePrinter, TypeMic}
	powerDevices = []ComponentType{TypeCentralUnit, TypeMonitor, TypePrinter, TypeScanner}
)

// StandardPorts returns the port layout of the simulation scene: six USB, one
// HDMI and two audio sockets on the central unit, four power-strip outlets,
// the wall outlet, and four USB plus one HDMI socket on the adapter.
func StandardPorts() []Port {
	var ports []Port
	centralUSB := append(slices.Clone(usbDevices), TypeAdapter, TypeUSBAdapter)
	for i := 1; i <= 6; i++ {
		ports = append(ports, Port{ID: fmt.Sprintf("usb%d", i), Owner: TypeCentralUnit, Kind: KindData, AcceptedTypes: centralUSB})
	}
	ports = append(ports,
		Port{ID: "hdmi1", Owner: TypeCentralUnit, Kind: KindData, AcceptedTypes: []ComponentType{TypeMonitor}},
		Port{ID: "audio-out", Owner: TypeCentralUnit, Kind: KindData, AcceptedTypes: []ComponentType{TypeHeadphones, TypeSpeakers}},
		Port{ID: "mic-in", Owner: TypeCentralUnit, Kind: KindData, AcceptedTypes: []ComponentType{TypeMic}},
	)
	for i := 1; i <= 4; i++ {
		ports = append(ports, Port{ID: fmt.Sprintf("power-strip-%d", i), Owner: TypePowerStrip, Kind: KindPower, AcceptedTypes: powerDevices})
	}
	ports = append(ports, Port{ID: "wall-outlet", Owner: OwnerWall, Kind: KindPower, AcceptedTypes: []ComponentType{TypePowerStrip}})
	for i := 1; i <= 4; i++ {
		ports = append(ports, Port{ID: fmt.Sprintf("adapter-port%d", i), Owner: TypeAdapter, Kind: KindData, AcceptedTypes: usbDevices})
	}
	ports = append(ports, Port{ID: "adapter-hdmi1", Owner: TypeAdapter, Kind: KindData, AcceptedTypes: []ComponentType{TypeMonitor}})
	return ports
}

// Board tracks which component occupies which port while the student wires
// the scene. It is owned by a single UI session and is not safe for
// concurrent use.
type Board struct {
	ports map[string]*Port
	edges map[string][]Connection
}

// NewBoard creates a board over the given ports, all initially free.
func NewBoard(ports []Port) *Board {
	b := &Board{ports: make(map[string]*Port, len(ports)), edges: make(map[string][]Connection)}
	for _, p := range ports {
		p.OccupiedBy = ""
		p.AcceptedTypes = slices.Clone(p.AcceptedTypes)
		b.ports[p.ID] = &p
	}
	return b
}

// Port returns a copy of the port with the given id.
func (b *Board) Port(id string) (Port, bool) {
	p, ok := b.ports[id]
	if !ok {
		return Port{}, false
	}
	return *p, true
}

// Plug records an edge from c into portID. A power port takes only power
// edges and a data port only data edges. The edge is stored even when the
// port does not suit the device type; correct reports whether it does.
func (b *Board) Plug(c Component, portID string, kind ConnectionKind) (correct bool, err error) {
	p, ok := b.ports[portID]
	if !ok {
		return false, NewValidationError("port", portID, ErrUnknownPort)
	}
	if p.Kind != kind {
		return false, NewValidationError("connectionType", string(kind), ErrKindMismatch)
	}
	if !p.Free() {
		return false, NewValidationError("port", portID, ErrPortOccupied)
	}
	if b.countKind(c.ID, kind) >= allowedEdges(c, kind) {
		return false, NewValidationError("connectionType", string(kind), ErrDuplicateKind)
	}

	p.OccupiedBy = c.ID
	b.edges[c.ID] = append(b.edges[c.ID], Connection{
		ToPortID:        portID,
		Kind:            kind,
		ToComponentType: p.Owner,
	})
	return p.Accepts(c.Type), nil
}

// Unplug removes the edge from componentID into portID and frees the port.
func (b *Board) Unplug(componentID, portID string) error {
	edges := b.edges[componentID]
	i := slices.IndexFunc(edges, func(e Connection) bool { return e.ToPortID == portID })
	if i < 0 {
		return NewValidationError("port", portID, ErrUnknownPort)
	}
	b.edges[componentID] = slices.Delete(edges, i, i+1)
	if p, ok := b.ports[portID]; ok && p.OccupiedBy == componentID {
		p.OccupiedBy = ""
	}
	return nil
}

// Remove drops every edge of a deleted component and frees its ports.
func (b *Board) Remove(componentID string) {
	for _, e := range b.edges[componentID] {
		if p, ok := b.ports[e.ToPortID]; ok && p.OccupiedBy == componentID {
			p.OccupiedBy = ""
		}
	}
	delete(b.edges, componentID)
}

// Connections exports the current edges as a scene connection multimap.
func (b *Board) Connections() map[string][]Connection {
	out := make(map[string][]Connection, len(b.edges))
	for id, edges := range b.edges {
		if len(edges) > 0 {
			out[id] = slices.Clone(edges)
		}
	}
	return out
}

func (b *Board) countKind(componentID string, kind ConnectionKind) int {
	n := 0
	for _, e := range b.edges[componentID] {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// allowedEdges is one per kind, except that a device listing several data
// types (a microphone needing mic-in and USB) may hold one data edge per type.
func allowedEdges(c Component, kind ConnectionKind) int {
	if kind == KindData && len(c.Needs.DataType) > 1 {
		return len(c.Needs.DataType)
	}
	return 1
}

var portOwners = sync.OnceValue(func() map[string]ComponentType {
	m := make(map[string]ComponentType)
	for _, p := range StandardPorts() {
		m[p.ID] = p.Owner
	}
	return m
})

// PortOwner returns the owner of a port of the standard layout.
func PortOwner(portID string) (ComponentType, bool) {
	t, ok := portOwners()[portID]
	return t, ok
}

// Replay wires a scene onto a fresh board over ports, component by component
// in placement order, and returns the errors met: unknown or occupied ports,
// kind mismatches, repeated kinds, and edges keyed by no placed component.
// Edges plugged into a port that does not suit the device are counted in
// misplaced.
func Replay(s Scene, ports []Port) (b *Board, misplaced int, errs []error) {
	b = NewBoard(ports)
	used := make(map[string]bool, len(s.Components))
	for _, c := range s.Components {
		key := c.ID
		if _, ok := s.Connections[key]; !ok && c.Name != "" {
			key = c.Name
		}
		if used[key] {
			continue
		}
		used[key] = true
		for _, e := range s.EdgesFrom(c) {
			correct, err := b.Plug(c, e.ToPortID, e.Kind)
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("%s: %w", c.ID, err))
			case !correct:
				misplaced++
			}
		}
	}

	var orphans []string
	for key, edges := range s.Connections {
		if !used[key] && len(edges) > 0 {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		errs = append(errs, NewValidationError("component", key, ErrUnknownComponent))
	}
	return b, misplaced, errs
}
