package connectivity

import (
	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/engine/graph"
)

// InputDevices are the types the coarse check treats as input devices.
var InputDevices = []domain.ComponentType{domain.TypeKeyboard, domain.TypeMouse, domain.TypeMic}

// BasicResult is the coarse, fast connectivity signal.
type BasicResult struct {
	HasCentralUnit        bool `json:"hasCentralUnit"`
	CentralUnitPowered    bool `json:"centralUnitPowered"`
	HasMonitor            bool `json:"hasMonitor"`
	MonitorConnected      bool `json:"monitorConnected"`
	HasInputDevices       bool `json:"hasInputDevices"`
	InputDevicesConnected bool `json:"inputDevicesConnected"`
}

// Basic runs the coarse checks. Any power edge counts as powered, any data
// edge from the monitor counts as connected, and any edge from any input
// device counts as connected.
func Basic(s domain.Scene) BasicResult {
	return basic(graph.New(s))
}

func basic(g *graph.Graph) BasicResult {
	var r BasicResult
	if cu, ok := g.First(domain.TypeCentralUnit); ok {
		r.HasCentralUnit = true
		r.CentralUnitPowered = hasKind(g.Out(cu), domain.KindPower)
	}
	if mon, ok := g.First(domain.TypeMonitor); ok {
		r.HasMonitor = true
		r.MonitorConnected = hasKind(g.Out(mon), domain.KindData)
	}
	for _, d := range g.OfType(InputDevices...) {
		r.HasInputDevices = true
		if len(g.Out(d)) > 0 {
			r.InputDevicesConnected = true
		}
	}
	return r
}

func hasKind(edges []domain.Connection, kind domain.ConnectionKind) bool {
	for _, e := range edges {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func hasKindOn(edges []domain.Connection, kind domain.ConnectionKind, roles ...Role) bool {
	for _, e := range edges {
		if e.Kind == kind && isAny(e.ToPortID, roles...) {
			return true
		}
	}
	return false
}
