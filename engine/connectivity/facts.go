package connectivity

import (
	"slices"

	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/engine/graph"
)

// TrackedDevices are the peripherals whose data path is audited, in report order.
var TrackedDevices = []domain.ComponentType{
	domain.TypeKeyboard, domain.TypeMouse, domain.TypeWebcam, domain.TypeScanner,
	domain.TypePrinter, domain.TypeMic, domain.TypeMonitor,
}

// PowerState describes the power supply of one component of interest.
type PowerState struct {
	Present       bool `json:"present"`
	Powered       bool `json:"powered"`
	ViaPowerStrip bool `json:"viaPowerStrip"`
}

// Facts is the ground truth every verdict is checked against. It is recomputed
// from the snapshot on each call.
type Facts struct {
	CentralUnit PowerState `json:"centralUnit"`
	Monitor     PowerState `json:"monitor"`
	Printer     PowerState `json:"printer"`
	Scanner     PowerState `json:"scanner"`
	PowerStrip  PowerState `json:"powerStrip"`
	Adapter     PowerState `json:"adapter"`

	MonitorConnectedToHDMI    bool `json:"monitorConnectedToHdmi"`
	AdapterConnectedToCentral bool `json:"usbAdapterConnectedToCentral"`
	PowerStripConnectedToWall bool `json:"powerStripConnectedToWall"`

	ConnectedViaAdapter  []domain.ComponentType `json:"inputDevicesConnectedViaAdapter"`
	PresentDevices       []domain.ComponentType `json:"presentDeviceTypes"`
	DataConnectedDevices []domain.ComponentType `json:"deviceDataConnectedTypes"`
}

// Detailed classifies every edge by port role and derives the facts. When
// several components share a type, the first placed one is inspected.
func Detailed(s domain.Scene) Facts {
	return detailed(graph.New(s))
}

// Inspect returns both the coarse result and the facts for one snapshot.
func Inspect(s domain.Scene) (BasicResult, Facts) {
	g := graph.New(s)
	return basic(g), detailed(g)
}

func detailed(g *graph.Graph) Facts {
	f := Facts{
		CentralUnit: powerState(g, domain.TypeCentralUnit),
		Monitor:     powerState(g, domain.TypeMonitor),
		Printer:     powerState(g, domain.TypePrinter),
		Scanner:     powerState(g, domain.TypeScanner),
		PowerStrip:  powerState(g, domain.TypePowerStrip),
		Adapter:     powerState(g, domain.TypeAdapter, domain.TypeUSBAdapter),
	}

	monitorEdges := g.OutOfFirst(domain.TypeMonitor)
	f.MonitorConnectedToHDMI = hasKindOn(monitorEdges, domain.KindData, RoleCentralHDMI)
	f.AdapterConnectedToCentral = hasKindOn(g.OutOfFirst(domain.TypeAdapter, domain.TypeUSBAdapter), domain.KindData, RoleCentralUSB)
	f.PowerStripConnectedToWall = hasKindOn(g.OutOfFirst(domain.TypePowerStrip), domain.KindPower, RoleWallOutlet)

	f.ConnectedViaAdapter = []domain.ComponentType{}
	f.PresentDevices = []domain.ComponentType{}
	f.DataConnectedDevices = []domain.ComponentType{}
	for _, t := range TrackedDevices {
		dev, ok := g.First(t)
		if !ok {
			continue
		}
		f.PresentDevices = append(f.PresentDevices, t)
		edges := g.Out(dev)
		if hasKindOn(edges, domain.KindData, RoleAdapterUSB, RoleAdapterHDMI) {
			f.ConnectedViaAdapter = append(f.ConnectedViaAdapter, t)
		}
		if hasKindOn(edges, domain.KindData, dataRoles...) {
			f.DataConnectedDevices = append(f.DataConnectedDevices, t)
		}
	}
	return f
}

func powerState(g *graph.Graph, types ...domain.ComponentType) PowerState {
	c, ok := g.First(types...)
	if !ok {
		return PowerState{}
	}
	edges := g.Out(c)
	return PowerState{
		Present:       true,
		Powered:       hasKind(edges, domain.KindPower),
		ViaPowerStrip: hasKindOn(edges, domain.KindPower, RolePowerStripOutlet),
	}
}

// MonitorHasValidDataPath reports whether the monitor reaches the central unit,
// either on its HDMI port or through an adapter that is itself linked.
func (f Facts) MonitorHasValidDataPath() bool {
	return f.MonitorConnectedToHDMI ||
		(f.Adapter.Present && f.AdapterConnectedToCentral && slices.Contains(f.ConnectedViaAdapter, domain.TypeMonitor))
}

// AdapterStranded reports whether devices rely on an adapter that is not
// linked to the central unit.
func (f Facts) AdapterStranded() bool {
	return f.Adapter.Present && len(f.ConnectedViaAdapter) > 0 && !f.AdapterConnectedToCentral
}

// DataConnectedPeripherals lists data-connected tracked devices other than the monitor.
func (f Facts) DataConnectedPeripherals() []domain.ComponentType {
	return slices.DeleteFunc(slices.Clone(f.DataConnectedDevices), isMonitor)
}

// UnlinkedDevices lists present tracked devices other than the monitor that
// have no qualifying data edge.
func (f Facts) UnlinkedDevices() []domain.ComponentType {
	var out []domain.ComponentType
	for _, t := range f.PresentDevices {
		if t != domain.TypeMonitor && !slices.Contains(f.DataConnectedDevices, t) {
			out = append(out, t)
		}
	}
	return out
}

// NothingConnected reports a scene where neither the central unit nor the
// monitor is powered and no device carries data.
func (f Facts) NothingConnected() bool {
	return !f.CentralUnit.Powered && !f.Monitor.Powered && len(f.DataConnectedDevices) == 0
}

func isMonitor(t domain.ComponentType) bool { return t == domain.TypeMonitor }
