package plugins

import "github.com/mrdg/groove/plugin"

func init() {
	plugin.Register(plugin.Registration{
		ID:  "builtin.note_gate",
		New: func() plugin.Plugin { return newNoteGate() },
	})
}

// Output modes.
const (
	gateModeGate      = 0 // 1.0 while any in-band note is held
	gateModeVelocity  = 1 // normalized velocity of the loudest held note
	gateModePitch     = 2 // highest held pitch mapped over [pitch_lo, pitch_hi]
	gateModeNoteCount = 3 // held notes / band width, clamped to 1
)

// noteGate converts note events into a control signal.
type noteGate struct {
	plugin.Base

	mode             int
	pitchLo, pitchHi int

	// velocity per (channel, pitch); 0 = not held
	held  [16 * 128]uint8
	count int

	value float32
}

func newNoteGate() *noteGate {
	return &noteGate{pitchHi: 127}
}

func (n *noteGate) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		ID:          "builtin.note_gate",
		DisplayName: "Note Gate",
		Category:    "Utility",
		Doc:         "Converts note events into a control signal. Modes: Gate, Velocity, Pitch, NoteCount.",
		Author:      "builtin",
		Version:     1,
		Ports: []plugin.PortDescriptor{
			{ID: "event_in", DisplayName: "MIDI In", Doc: "Note events to convert",
				Type: plugin.Event, Role: plugin.Input},
			{ID: "control_out", DisplayName: "Control Out", Doc: "Output control signal",
				Type: plugin.Control, Role: plugin.Output,
				Hint: plugin.Continuous, Min: 0, Max: 1},
			{ID: "mode", DisplayName: "Mode", Doc: "Output mode",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Categorical, Min: 0, Max: 3, Step: 1,
				Choices: []string{"Gate", "Velocity", "Pitch", "NoteCount"}},
			{ID: "pitch_lo", DisplayName: "Pitch Low", Doc: "Lower bound of pitch band",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Integer, Min: 0, Max: 127, Step: 1},
			{ID: "pitch_hi", DisplayName: "Pitch High", Doc: "Upper bound of pitch band",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Integer, Default: 127, Min: 0, Max: 127, Step: 1},
		},
	}
}

func (n *noteGate) inBand(pitch int) bool {
	return pitch >= n.pitchLo && pitch <= n.pitchHi
}

func (n *noteGate) NoteOn(channel, pitch, velocity int) {
	if !n.inBand(pitch) || velocity == 0 {
		return
	}
	key := channel*128 + pitch
	if n.held[key] == 0 {
		n.count++
	}
	n.held[key] = uint8(velocity)
	n.recompute()
}

func (n *noteGate) NoteOff(channel, pitch int) {
	if !n.inBand(pitch) {
		return
	}
	key := channel*128 + pitch
	if n.held[key] != 0 {
		n.held[key] = 0
		n.count--
	}
	n.recompute()
}

func (n *noteGate) AllNotesOff(channel int) {
	for key := range n.held {
		if n.held[key] == 0 {
			continue
		}
		if channel == -1 || key/128 == channel {
			n.held[key] = 0
			n.count--
		}
	}
	n.recompute()
}

func (n *noteGate) Process(ctx *plugin.Context, buf *plugin.Buffers) {
	// Control inputs allow modulating mode and band from other nodes.
	if c := buf.Control("mode"); c != nil {
		n.mode = clampInt(int(c.Value), 0, 3)
	}
	if c := buf.Control("pitch_lo"); c != nil {
		n.pitchLo = clampInt(int(c.Value), 0, 127)
	}
	if c := buf.Control("pitch_hi"); c != nil {
		n.pitchHi = clampInt(int(c.Value), 0, 127)
	}
	n.recompute()

	if out := buf.Control("control_out"); out != nil {
		out.Value = n.value
	}
}

func (n *noteGate) recompute() {
	if n.count == 0 {
		n.value = 0
		return
	}
	switch n.mode {
	case gateModeGate:
		n.value = 1
	case gateModeVelocity:
		max := uint8(0)
		for _, v := range n.held {
			if v > max {
				max = v
			}
		}
		n.value = float32(max) / 127
	case gateModePitch:
		bw := n.pitchHi - n.pitchLo
		if bw <= 0 {
			n.value = 0
			return
		}
		highest := -1
		for key, v := range n.held {
			if v != 0 && key%128 > highest {
				highest = key % 128
			}
		}
		n.value = clamp32(float32(highest-n.pitchLo)/float32(bw), 0, 1)
	case gateModeNoteCount:
		bw := n.pitchHi - n.pitchLo + 1
		if bw <= 0 {
			n.value = 0
			return
		}
		n.value = clamp32(float32(n.count)/float32(bw), 0, 1)
	default:
		n.value = 0
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
