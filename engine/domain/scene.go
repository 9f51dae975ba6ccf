package domain

import (
	"encoding/json"
	"fmt"
)

// DataTypes holds the data link types a component needs. On the wire it is
// either a single string ("usb") or a list (["mic-in", "usb"]). Non-string
// list items are dropped and any other shape decodes to no data types.
type DataTypes []string

func (d *DataTypes) UnmarshalJSON(b []byte) error {
	*d = nil
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one != "" {
			*d = DataTypes{one}
		}
		return nil
	}
	var many []json.RawMessage
	if err := json.Unmarshal(b, &many); err != nil {
		return nil
	}
	for _, item := range many {
		if err := json.Unmarshal(item, &one); err == nil && one != "" {
			*d = append(*d, one)
		}
	}
	return nil
}

func (d DataTypes) MarshalJSON() ([]byte, error) {
	if len(d) == 1 {
		return json.Marshal(d[0])
	}
	return json.Marshal([]string(d))
}

// UnmarshalJSON reads the power and data flags with the client's loose
// truthiness ("true", 1 and true all count). A needs value that is not an
// object decodes to no needs.
func (n *Needs) UnmarshalJSON(b []byte) error {
	var w struct {
		Power    json.RawMessage `json:"power"`
		Data     json.RawMessage `json:"data"`
		DataType DataTypes       `json:"dataType"`
	}
	*n = Needs{}
	if err := json.Unmarshal(b, &w); err != nil {
		return nil
	}
	*n = Needs{Power: truthy(w.Power), Data: truthy(w.Data), DataType: w.DataType}
	return nil
}

func truthy(raw json.RawMessage) bool {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

// componentWire accepts both the flat component shape and the scene-graph
// shape {name, userData:{id,type,info,needs}} sent by the 3D client.
type componentWire struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     ComponentType `json:"type"`
	Info     string        `json:"info"`
	Needs    Needs         `json:"needs"`
	UserData *struct {
		ID    string        `json:"id"`
		Type  ComponentType `json:"type"`
		Info  string        `json:"info"`
		Needs Needs         `json:"needs"`
	} `json:"userData"`
}

func (c *Component) UnmarshalJSON(b []byte) error {
	var w componentWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = Component{ID: w.ID, Name: w.Name, Type: w.Type, Info: w.Info, Needs: w.Needs}
	if u := w.UserData; u != nil {
		if u.ID != "" {
			c.ID = u.ID
		}
		if u.Type != "" {
			c.Type = u.Type
		}
		if u.Info != "" {
			c.Info = u.Info
		}
		c.Needs = u.Needs
	}
	if c.ID == "" {
		c.ID = c.Name
	}
	return nil
}

func (e *Connection) UnmarshalJSON(b []byte) error {
	type plain Connection
	var w struct {
		plain
		ToComponentName string `json:"toComponentName"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = Connection(w.plain)
	if e.ToComponentID == "" {
		e.ToComponentID = w.ToComponentName
	}
	return nil
}

// UnmarshalJSON decodes components and edges one at a time so a single bad
// entry does not sink the snapshot. A component that fails to decode is kept
// as an empty placeholder carrying its error, which Sanitize reports and
// drops. Malformed edges are skipped, and a connections value that is not an
// object decodes to no edges.
func (s *Scene) UnmarshalJSON(b []byte) error {
	var w struct {
		Components  json.RawMessage `json:"components"`
		Connections json.RawMessage `json:"connections"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Scene{Connections: map[string][]Connection{}}

	var items []json.RawMessage
	if json.Unmarshal(w.Components, &items) == nil {
		for i, item := range items {
			var c Component
			if err := json.Unmarshal(item, &c); err != nil {
				c = Component{decodeErr: fmt.Errorf("component %d: %w", i, err)}
			}
			s.Components = append(s.Components, c)
		}
	}

	var byComponent map[string]json.RawMessage
	if json.Unmarshal(w.Connections, &byComponent) != nil {
		return nil
	}
	for key, raw := range byComponent {
		var edges []json.RawMessage
		if json.Unmarshal(raw, &edges) != nil {
			continue
		}
		for _, edge := range edges {
			var e Connection
			if json.Unmarshal(edge, &e) == nil {
				s.Connections[key] = append(s.Connections[key], e)
			}
		}
	}
	return nil
}

// DecodeScene parses a scene snapshot. Missing fields decode to an empty
// scene; only a body that is not a JSON object is an error.
func DecodeScene(b []byte) (Scene, error) {
	var s Scene
	if err := json.Unmarshal(b, &s); err != nil {
		return Scene{}, fmt.Errorf("decode scene: %w", err)
	}
	if s.Connections == nil {
		s.Connections = map[string][]Connection{}
	}
	return s, nil
}
