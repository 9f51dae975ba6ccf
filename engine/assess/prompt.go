package assess

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/engine/graph"
)

const analysisPreamble = "You are an expert computer technician evaluating a student's computer setup for educational purposes."

const analysisRequirements = `Requirements for a functional setup:
1. ESSENTIAL COMPONENTS: central-unit, monitor, keyboard, mouse, power-strip
2. POWER: central unit and monitor must be powered (ideally via power strip connected to wall)
3. DATA: monitor via HDMI to central unit, keyboard/mouse via USB to central unit (direct or via adapter)
4. ADAPTERS: if used, must be connected to central unit for devices behind them to work

Important modeling notes:
- Check for missing essential components FIRST before connection issues
- Treat the installation as a connection graph. A device may connect indirectly via an adapter
- Power must be provided separately. Power chains: device → power-strip-X and power-strip → wall-outlet
- If a device is connected to an adapter but the adapter is NOT connected to the central unit, data does not flow
- When an adapter is not linked to the central unit, explicitly list which devices are impacted
- Be precise about what's missing vs what's incorrectly connected

Please analyze this computer setup and provide feedback on:
1. Essential Components: Are all required components present?
2. Power Connections: Are power needs met?
3. Data Connections: Are data paths functional?

Respond in this EXACT JSON format:
{
  "isValid": boolean,
  "score": number (0-100),
  "feedback": "Bref résumé en français (1-2 phrases)",
  "issues": ["Puce courte en français (un point par problème)", "..."],
  "suggestions": ["Puce courte en français (amélioration concrète)", "..."]
}

Return ONLY a JSON object.`

// DescribeSetup renders the scene as the plain-text inventory the model reads:
// placed components, every connection with a readable port name, and the
// components left unconnected.
func DescribeSetup(s domain.Scene) string {
	g := graph.New(s)
	var b strings.Builder
	b.WriteString("=== COMPUTER SETUP ANALYSIS ===\n\n")

	b.WriteString("COMPONENTS PLACED:\n")
	for _, c := range g.Components() {
		fmt.Fprintf(&b, "- %s\n", display(c))
	}

	b.WriteString("\nCONNECTIONS MADE:\n")
	var current string
	for _, e := range g.Edges() {
		if e.From.ID != current {
			current = e.From.ID
			fmt.Fprintf(&b, "\n%s:\n", display(e.From))
		}
		fmt.Fprintf(&b, "  → Connected to %s on %s [%s] (%s)\n",
			portLabel(e.ToPortID), orUnknown(string(targetType(g, e.Connection))), orUnknown(e.ToComponentID), e.Kind)
	}

	if unconnected := g.Unconnected(); len(unconnected) > 0 {
		b.WriteString("\nUNCONNECTED COMPONENTS:\n")
		for _, c := range unconnected {
			fmt.Fprintf(&b, "- %s\n", display(c))
		}
	}
	return b.String()
}

// targetType names the component behind a port: the type sent by the client,
// else the type of the placed target, else the owner in the standard layout.
func targetType(g *graph.Graph, e domain.Connection) domain.ComponentType {
	if e.ToComponentType != "" {
		return e.ToComponentType
	}
	if c, ok := g.Component(e.ToComponentID); ok && c.Type != "" {
		return c.Type
	}
	owner, _ := domain.PortOwner(e.ToPortID)
	return owner
}

type promptComponent struct {
	ID    string               `json:"id"`
	Type  domain.ComponentType `json:"type"`
	Info  string               `json:"info"`
	Needs domain.Needs         `json:"needs"`
}

type promptEdge struct {
	ToPortID string                `json:"toPortId"`
	Kind     domain.ConnectionKind `json:"connectionType"`
}

type promptScene struct {
	Components  []promptComponent       `json:"components"`
	Connections map[string][]promptEdge `json:"connections"`
}

// SceneJSON serializes the compact scene snapshot embedded in the prompt.
// Connections are keyed by component id; edges of unknown components are left out.
func SceneJSON(s domain.Scene) string {
	g := graph.New(s)
	ps := promptScene{Components: []promptComponent{}, Connections: map[string][]promptEdge{}}
	for _, c := range g.Components() {
		ps.Components = append(ps.Components, promptComponent{ID: c.ID, Type: c.Type, Info: c.Info, Needs: c.Needs})
	}
	for _, e := range g.Edges() {
		ps.Connections[e.From.ID] = append(ps.Connections[e.From.ID], promptEdge{ToPortID: e.ToPortID, Kind: e.Kind})
	}
	data, _ := json.Marshal(ps)
	return string(data)
}

// AnalysisPrompt builds the full instruction sent to the model.
func AnalysisPrompt(s domain.Scene) string {
	return analysisPreamble + "\n\n" + DescribeSetup(s) + "\n\nSCENE_JSON=`" + SceneJSON(s) + "`\n\n" + analysisRequirements
}

// SuggestionPrompt asks for a device configuration suited to an activity.
func SuggestionPrompt(activity string) string {
	return `You are an expert in recommending computer device configurations based on user activities.

Based on the activity specified, suggest a suitable configuration of devices (monitor, keyboard, mouse, and other relevant devices) to optimize the setup for that activity.

Activity: ` + activity + `

Respond with ONLY a JSON object with exactly these string keys: "monitor", "keyboard", "mouse", "other".`
}

func display(c domain.Component) string {
	switch {
	case c.Info != "":
		return c.Info
	case c.Name != "":
		return c.Name
	default:
		return c.ID
	}
}

func portLabel(portID string) string {
	return strings.ToUpper(strings.ReplaceAll(portID, "-", " "))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
