package graph

import (
	"encoding/json"
	"fmt"
)

// NodeDesc describes one node in a graph description. Well-known string
// fields double as configure keys for plugin-backed nodes; entries in Params
// are applied via SetParam when numeric and via Configure when strings.
// String params that are neither numeric nor known configuration keys are
// passed through to Configure unchanged; plugins ignore keys they don't
// know.
type NodeDesc struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	SF2Path      string `json:"sf2_path"`
	LV2URI       string `json:"lv2_uri"`
	SamplePath   string `json:"sample_path"`
	ChannelCount int    `json:"channel_count"`
	PitchLo      int    `json:"pitch_lo"`
	PitchHi      int    `json:"pitch_hi"`
	GateMode     int    `json:"gate_mode"`

	Params map[string]json.RawMessage `json:"params"`
}

// Connection routes one output port to one input port. Fan-out from a
// single output is allowed; a second connection into the same input is a
// build error.
type Connection struct {
	FromNode string `json:"from_node"`
	FromPort string `json:"from_port"`
	ToNode   string `json:"to_node"`
	ToPort   string `json:"to_port"`
}

// Desc is the parsed form of a graph description.
type Desc struct {
	BPM         float64      `json:"bpm"`
	Nodes       []NodeDesc   `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// ParseDesc decodes a JSON graph description.
func ParseDesc(data []byte) (*Desc, error) {
	var raw struct {
		BPM         float64           `json:"bpm"`
		Nodes       []json.RawMessage `json:"nodes"`
		Connections []Connection      `json:"connections"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("graph description: %w", err)
	}
	desc := &Desc{BPM: raw.BPM, Connections: raw.Connections}
	for i, jn := range raw.Nodes {
		nd := NodeDesc{
			Type:         "sine",
			ChannelCount: 2,
			PitchHi:      127,
		}
		if err := json.Unmarshal(jn, &nd); err != nil {
			return nil, fmt.Errorf("graph description: node %d: %w", i, err)
		}
		desc.Nodes = append(desc.Nodes, nd)
	}
	return desc, nil
}

// splitParams separates a node's params into numeric values (applied with
// SetParam after activation) and string values (delivered via Configure
// before activation).
func splitParams(nd *NodeDesc) (numeric []paramValue, strings []configValue, err error) {
	for key, raw := range nd.Params {
		var f float64
		if jsonErr := json.Unmarshal(raw, &f); jsonErr == nil {
			numeric = append(numeric, paramValue{key, float32(f)})
			continue
		}
		var s string
		if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
			strings = append(strings, configValue{key, s})
			continue
		}
		return nil, nil, fmt.Errorf("node %s: param %q is neither number nor string", nd.ID, key)
	}
	return numeric, strings, nil
}

type paramValue struct {
	name  string
	value float32
}

type configValue struct {
	key   string
	value string
}
