package plugins

import (
	"math"
	"sort"

	"github.com/mrdg/groove/plugin"
)

func init() {
	plugin.Register(plugin.Registration{
		ID:  "builtin.arpeggiator",
		New: func() plugin.Plugin { return newArpeggiator() },
	})
}

// Pattern modes.
const (
	arpUp = iota
	arpDown
	arpUpDown
	arpAsPlayed
)

const arpMaxHeld = 32

type heldNote struct {
	channel  int
	pitch    int
	velocity int
}

// arpeggiator cycles through the held notes at a beat-synced rate and emits
// the result on its event output. Step boundaries falling inside the block
// get their exact frame offset; the gate parameter schedules the matching
// note-off a fraction of a step later.
type arpeggiator struct {
	plugin.Base

	held []heldNote // as played
	step int
	down bool // direction for the up-down pattern

	// pending note-off for the sounding arp note
	offBeat    float64
	offPitch   int
	offChannel int
	offPending bool
}

func newArpeggiator() *arpeggiator {
	return &arpeggiator{held: make([]heldNote, 0, arpMaxHeld)}
}

func (a *arpeggiator) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		ID:          "builtin.arpeggiator",
		DisplayName: "Arpeggiator",
		Category:    "EventEffect",
		Doc:         "Tempo-synced arpeggiator: cycles held notes in the selected pattern.",
		Author:      "builtin",
		Version:     1,
		Ports: []plugin.PortDescriptor{
			{ID: "events_in", DisplayName: "Events In", Doc: "MIDI input (held notes)",
				Type: plugin.Event, Role: plugin.Input},
			{ID: "events_out", DisplayName: "Events Out", Doc: "Arpeggiated MIDI output",
				Type: plugin.Event, Role: plugin.Output},
			{ID: "pattern", DisplayName: "Pattern", Doc: "Arpeggio pattern",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Categorical, Min: 0, Max: 3, Step: 1,
				Choices: []string{"Up", "Down", "Up-Down", "As Played"}},
			{ID: "rate", DisplayName: "Rate (beats)",
				Doc:  "Step length in beats. 0.25 = sixteenth, 0.5 = eighth, 1.0 = quarter.",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Default: 0.25, Min: 0.0625, Max: 4},
			{ID: "gate", DisplayName: "Gate", Doc: "Note length as fraction of step",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Default: 0.8, Min: 0.05, Max: 1},
			{ID: "octaves", DisplayName: "Octaves", Doc: "Octave range for the arpeggio",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Integer, Default: 1, Min: 1, Max: 4, Step: 1},
			{ID: "velocity", DisplayName: "Velocity", Doc: "Output velocity (0 = use input velocity)",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Integer, Min: 0, Max: 127, Step: 1},
		},
	}
}

func (a *arpeggiator) NoteOn(channel, pitch, velocity int) {
	if velocity == 0 {
		a.NoteOff(channel, pitch)
		return
	}
	for i := range a.held {
		if a.held[i].channel == channel && a.held[i].pitch == pitch {
			a.held[i].velocity = velocity
			return
		}
	}
	if len(a.held) < arpMaxHeld {
		a.held = append(a.held, heldNote{channel, pitch, velocity})
	}
}

func (a *arpeggiator) NoteOff(channel, pitch int) {
	for i := range a.held {
		if a.held[i].channel == channel && a.held[i].pitch == pitch {
			a.held = append(a.held[:i], a.held[i+1:]...)
			return
		}
	}
}

func (a *arpeggiator) AllNotesOff(channel int) {
	if channel == -1 {
		a.held = a.held[:0]
		a.step = 0
		return
	}
	for i := 0; i < len(a.held); i++ {
		if a.held[i].channel == channel {
			a.held = append(a.held[:i], a.held[i+1:]...)
			i--
		}
	}
}

func (a *arpeggiator) Process(ctx *plugin.Context, buf *plugin.Buffers) {
	out := buf.Events("events_out")
	if out == nil {
		return
	}

	pattern := clampInt(int(ctl(buf, "pattern", 0)), 0, 3)
	rate := float64(ctl(buf, "rate", 0.25))
	if rate < 0.0625 {
		rate = 0.0625
	}
	gate := float64(ctl(buf, "gate", 0.8))
	octaves := clampInt(int(ctl(buf, "octaves", 1)), 1, 4)
	velOverride := clampInt(int(ctl(buf, "velocity", 0)), 0, 127)

	endBeat := ctx.BeatPos + float64(ctx.BlockSize)*ctx.BeatsPerSample

	frameAt := func(beat float64) int {
		f := int((beat - ctx.BeatPos) / ctx.BeatsPerSample)
		return clampInt(f, 0, ctx.BlockSize-1)
	}

	// Release the sounding note when its gate expires within this block.
	flushOff := func(before float64) {
		if a.offPending && a.offBeat < before {
			out.Out = append(out.Out, plugin.MidiEvent{
				Frame:   frameAt(a.offBeat),
				Status:  0x80 | uint8(a.offChannel&0x0F),
				Data1:   uint8(a.offPitch),
				Channel: uint8(a.offChannel),
			})
			a.offPending = false
		}
	}

	if len(a.held) == 0 {
		flushOff(endBeat)
		return
	}

	// Walk the step boundaries that fall inside [BeatPos, endBeat).
	t := math.Ceil(ctx.BeatPos/rate) * rate
	for ; t < endBeat; t += rate {
		flushOff(t + 1e-9)

		note := a.pickNote(pattern, octaves)
		vel := note.velocity
		if velOverride > 0 {
			vel = velOverride
		}
		out.Out = append(out.Out, plugin.MidiEvent{
			Frame:   frameAt(t),
			Status:  0x90 | uint8(note.channel&0x0F),
			Data1:   uint8(note.pitch),
			Data2:   uint8(vel),
			Channel: uint8(note.channel),
		})
		a.offBeat = t + rate*gate
		a.offPitch = note.pitch
		a.offChannel = note.channel
		a.offPending = true
	}
	flushOff(endBeat)
}

// pickNote selects the next note in the pattern and advances the step.
func (a *arpeggiator) pickNote(pattern, octaves int) heldNote {
	var notes [arpMaxHeld * 4]heldNote
	n := 0
	for oct := 0; oct < octaves; oct++ {
		for _, h := range a.held {
			pitch := h.pitch + 12*oct
			if pitch > 127 {
				continue
			}
			notes[n] = heldNote{h.channel, pitch, h.velocity}
			n++
		}
	}
	seq := notes[:n]

	switch pattern {
	case arpUp:
		sort.Slice(seq, func(i, j int) bool { return seq[i].pitch < seq[j].pitch })
	case arpDown:
		sort.Slice(seq, func(i, j int) bool { return seq[i].pitch > seq[j].pitch })
	case arpUpDown:
		sort.Slice(seq, func(i, j int) bool { return seq[i].pitch < seq[j].pitch })
	}

	if a.step >= len(seq) {
		a.step = 0
		a.down = !a.down
	}
	i := a.step
	if pattern == arpUpDown && a.down {
		i = len(seq) - 1 - a.step
	}
	a.step++
	return seq[i]
}
