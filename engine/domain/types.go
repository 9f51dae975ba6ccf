// Package domain defines the component, port, connection and verdict types shared
// by the connectivity engine. It acts as the validation gate at the service boundary.
package domain

// ComponentType identifies what kind of device a placed component is.
type ComponentType string

const (
	TypeCentralUnit ComponentType = "central-unit"
	TypeMonitor     ComponentType = "monitor"
	TypeKeyboard    ComponentType = "keyboard"
	TypeMouse       ComponentType = "mouse"
	TypePrinter     ComponentType = "printer"
	TypeScanner     ComponentType = "scanner"
	TypeWebcam      ComponentType = "webcam"
	TypeMic         ComponentType = "mic"
	TypeHeadphones  ComponentType = "headphones"
	TypeSpeakers    ComponentType = "speakers"
	TypePowerStrip  ComponentType = "power-strip"
	TypeAdapter     ComponentType = "adapter"
	TypeUSBAdapter  ComponentType = "usb-adapter" // legacy alias of TypeAdapter
)

// OwnerWall owns the immovable wall outlet; it is never a placed component.
const OwnerWall ComponentType = "wall"

// ValidComponentTypes is the closed set of placeable component types.
var ValidComponentTypes = map[ComponentType]bool{
	TypeCentralUnit: true, TypeMonitor: true, TypeKeyboard: true, TypeMouse: true,
	TypePrinter: true, TypeScanner: true, TypeWebcam: true, TypeMic: true,
	TypeHeadphones: true, TypeSpeakers: true, TypePowerStrip: true,
	TypeAdapter: true, TypeUSBAdapter: true,
}

// IsAdapter reports whether t is the adapter or its legacy alias.
func (t ComponentType) IsAdapter() bool {
	return t == TypeAdapter || t == TypeUSBAdapter
}

// ConnectionKind is the nature of a link: power or data.
type ConnectionKind string

const (
	KindPower ConnectionKind = "power"
	KindData  ConnectionKind = "data"
)

// Needs lists the capabilities a component requires to work.
type Needs struct {
	Power    bool      `json:"power,omitempty"`
	Data     bool      `json:"data,omitempty"`
	DataType DataTypes `json:"dataType,omitempty"`
}

// Component is a device placed in the scene by the UI.
type Component struct {
	ID    string        `json:"id" validate:"required"`
	Name  string        `json:"name,omitempty"`
	Type  ComponentType `json:"type" validate:"required,component_type"`
	Info  string        `json:"info"`
	Needs Needs         `json:"needs"`

	decodeErr error
}

// Connection is a directed edge from a device toward the port it plugs into.
// The source component is the key of the Scene connection multimap.
type Connection struct {
	ToPortID        string         `json:"toPortId"`
	Kind            ConnectionKind `json:"connectionType"`
	ToComponentID   string         `json:"toComponentId,omitempty"`
	ToComponentType ComponentType  `json:"toComponentType,omitempty"`
}

// Scene is a snapshot of everything placed and wired by the student.
type Scene struct {
	Components  []Component             `json:"components"`
	Connections map[string][]Connection `json:"connections"`
}

// EdgesFrom returns the outgoing connections of c. Connections are keyed by
// component id; the scene-graph name is tried as a fallback.
func (s Scene) EdgesFrom(c Component) []Connection {
	if edges, ok := s.Connections[c.ID]; ok {
		return edges
	}
	if c.Name != "" {
		return s.Connections[c.Name]
	}
	return nil
}

// Verdict is the graded outcome of one analysis.
type Verdict struct {
	IsValid     bool     `json:"isValid"`
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// NewVerdict returns a verdict with non-nil issue and suggestion lists so that
// they always encode as JSON arrays.
func NewVerdict() Verdict {
	return Verdict{Issues: []string{}, Suggestions: []string{}}
}

// ClampScore bounds a score to [0,100].
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
