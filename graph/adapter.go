package graph

import (
	"log"
	"math"
	"sync/atomic"

	"github.com/mrdg/groove/plugin"
)

// eventCap bounds the per-port event storage pre-allocated at activation.
// Appends beyond it still work but may allocate on the audio thread.
const eventCap = 256

// controlPort is the per-port state for one plugin control port. The most
// recent SetParam value lands in pending, which starts at the descriptor
// default; the audio thread reads it once per block. Ports live behind
// pointers so the atomics never move.
type controlPort struct {
	portID  string
	output  bool
	outSlot int // index into the node's output buffer slice; -1 for inputs

	pending   atomic.Uint32 // float32 bits
	connected bool          // set at graph activation; audio thread reads only
}

func (c *controlPort) store(v float32) {
	c.pending.Store(math.Float32bits(v))
}

func (c *controlPort) load() float32 {
	return math.Float32frombits(c.pending.Load())
}

type audioPort struct {
	portID string
	stereo bool
	output bool
}

type eventPort struct {
	portID string
	output bool
}

// Adapter wraps a Plugin into a Node. It expands stereo plugin ports into
// mono port pairs, keeps per-port pending control values, accumulates
// incoming events for the plugin's event input ports, and exposes the
// plugin's event outputs to the graph for routing.
type Adapter struct {
	id   string
	p    plugin.Plugin
	desc plugin.Descriptor

	decls    []PortDecl
	audio    []audioPort
	controls []*controlPort
	events   []eventPort

	buffers    plugin.Buffers
	eventAccum []plugin.MidiEvent
}

// NewAdapter wraps the plugin; the adapter owns it from here on.
func NewAdapter(nodeID string, p plugin.Plugin) *Adapter {
	a := &Adapter{
		id:         nodeID,
		p:          p,
		desc:       p.Descriptor(),
		eventAccum: make([]plugin.MidiEvent, 0, eventCap),
	}
	a.buildPortMapping()
	return a
}

// Plugin exposes the wrapped plugin for control-thread calls such as
// Configure, ReadMonitor and GraphData.
func (a *Adapter) Plugin() plugin.Plugin { return a.p }

// PluginDescriptor returns the descriptor cached at construction.
func (a *Adapter) PluginDescriptor() plugin.Descriptor { return a.desc }

func (a *Adapter) buildPortMapping() {
	outSlot := 0
	for _, pd := range a.desc.Ports {
		isOut := pd.Role == plugin.Output || pd.Role == plugin.Monitor
		switch pd.Type {
		case plugin.AudioMono:
			a.audio = append(a.audio, audioPort{portID: pd.ID, output: isOut})
			a.decls = append(a.decls, PortDecl{Name: pd.ID, Type: Audio, Output: isOut})
			a.buffers.AddAudio(pd.ID)
			if isOut {
				outSlot++
			}
		case plugin.AudioStereo:
			// A stereo plugin port becomes two mono graph ports.
			a.audio = append(a.audio, audioPort{portID: pd.ID, stereo: true, output: isOut})
			a.decls = append(a.decls,
				PortDecl{Name: pd.ID + "_L", Type: Audio, Output: isOut},
				PortDecl{Name: pd.ID + "_R", Type: Audio, Output: isOut})
			a.buffers.AddAudio(pd.ID)
			if isOut {
				outSlot += 2
			}
		case plugin.Control:
			cp := &controlPort{portID: pd.ID, output: isOut, outSlot: -1}
			cp.pending.Store(math.Float32bits(pd.Default))
			if isOut {
				cp.outSlot = outSlot
				outSlot++
			}
			a.controls = append(a.controls, cp)
			a.decls = append(a.decls, PortDecl{
				Name: pd.ID, Type: Control, Output: isOut,
				Default: pd.Default, Min: pd.Min, Max: pd.Max,
			})
			a.buffers.AddControl(pd.ID)
		case plugin.Event:
			// Event ports are out-of-band: input arrives via the node event
			// hooks, output is read by the graph after Process.
			a.events = append(a.events, eventPort{portID: pd.ID, output: isOut})
			a.buffers.AddEvents(pd.ID)
		}
	}
}

func (a *Adapter) ID() string        { return a.id }
func (a *Adapter) Ports() []PortDecl { return a.decls }

func (a *Adapter) Activate(sampleRate float64, maxBlockSize int) {
	a.p.Activate(sampleRate, maxBlockSize)
	for i := range a.events {
		if a.events[i].output {
			eb := a.buffers.Events(a.events[i].portID)
			if eb.Out == nil {
				eb.Out = make([]plugin.MidiEvent, 0, eventCap)
			}
		}
	}
}

func (a *Adapter) Deactivate() { a.p.Deactivate() }

// setControlConnected marks an input control port as having a live upstream
// connection; connected ports take the graph value over the pending one.
// Called by Graph activation, before the audio thread sees the node.
func (a *Adapter) setControlConnected(portID string) {
	for _, cp := range a.controls {
		if cp.portID == portID && !cp.output {
			cp.connected = true
			return
		}
	}
}

// Process wires the flat graph buffers into the plugin's keyed views, calls
// the plugin, then writes control outputs back into the graph slots.
func (a *Adapter) Process(ctx *plugin.Context, in, out []PortBuffer) {
	pctx := *ctx

	inI, outI := 0, 0
	audioI, ctrlI := 0, 0
	for _, pd := range a.desc.Ports {
		isOut := pd.Role == plugin.Output || pd.Role == plugin.Monitor
		switch pd.Type {
		case plugin.AudioMono:
			ab := a.buffers.Audio(a.audio[audioI].portID)
			if isOut {
				ab.Left = out[outI].Audio
				outI++
				zero(ab.Left)
			} else {
				ab.Left = in[inI].Audio
				inI++
			}
			ab.Right = nil
			audioI++
		case plugin.AudioStereo:
			ab := a.buffers.Audio(a.audio[audioI].portID)
			if isOut {
				ab.Left = out[outI].Audio
				ab.Right = out[outI+1].Audio
				outI += 2
				zero(ab.Left)
				zero(ab.Right)
			} else {
				ab.Left = in[inI].Audio
				ab.Right = in[inI+1].Audio
				inI += 2
			}
			audioI++
		case plugin.Control:
			cp := a.controls[ctrlI]
			cb := a.buffers.Control(cp.portID)
			if isOut {
				cb.Value = 0
				outI++
			} else {
				if cp.connected {
					cb.Value = in[inI].Control
				} else {
					cb.Value = cp.load()
				}
				inI++
			}
			ctrlI++
		case plugin.Event:
			// No graph-level slots.
		}
	}

	for i := range a.events {
		eb := a.buffers.Events(a.events[i].portID)
		if a.events[i].output {
			eb.Out = eb.Out[:0]
			eb.In = nil
		} else {
			eb.In = a.eventAccum
			eb.Out = nil
		}
	}

	a.p.Process(&pctx, &a.buffers)

	// Control output write-back into the graph's per-port slots.
	for _, cp := range a.controls {
		if cp.output {
			out[cp.outSlot].Control = a.buffers.Control(cp.portID).Value
		}
	}

	a.eventAccum = a.eventAccum[:0]
}

// eventOut returns the events the plugin wrote to an output port during the
// last Process call.
func (a *Adapter) eventOut(portID string) []plugin.MidiEvent {
	if eb := a.buffers.Events(portID); eb != nil {
		return eb.Out
	}
	return nil
}

// SetParam stores the value in the port's pending atomic; the audio thread
// picks it up no later than the next block.
func (a *Adapter) SetParam(name string, value float32) {
	for _, cp := range a.controls {
		if cp.portID == name && !cp.output {
			cp.store(value)
			return
		}
	}
	log.Printf("adapter %s: unknown param %q", a.id, name)
}

// Event hooks: NoteOn, NoteOff and PitchBend accumulate a MIDI record for the
// plugin's event input ports and also forward to the plugin's convenience
// hooks; the remaining hooks only forward.

func (a *Adapter) NoteOn(channel, pitch, velocity int) {
	a.eventAccum = append(a.eventAccum, plugin.MidiEvent{
		Status:  0x90 | uint8(channel&0x0F),
		Data1:   uint8(pitch),
		Data2:   uint8(velocity),
		Channel: uint8(channel),
	})
	a.p.NoteOn(channel, pitch, velocity)
}

func (a *Adapter) NoteOff(channel, pitch int) {
	a.eventAccum = append(a.eventAccum, plugin.MidiEvent{
		Status:  0x80 | uint8(channel&0x0F),
		Data1:   uint8(pitch),
		Channel: uint8(channel),
	})
	a.p.NoteOff(channel, pitch)
}

func (a *Adapter) AllNotesOff(channel int) {
	a.p.AllNotesOff(channel)
}

func (a *Adapter) ProgramChange(channel, bank, program int) {
	a.p.ProgramChange(channel, bank, program)
}

func (a *Adapter) PitchBend(channel, value int) {
	a.eventAccum = append(a.eventAccum, plugin.MidiEvent{
		Status:  0xE0 | uint8(channel&0x0F),
		Data1:   uint8(value & 0x7F),
		Data2:   uint8((value >> 7) & 0x7F),
		Channel: uint8(channel),
	})
	a.p.PitchBend(channel, value)
}

func (a *Adapter) ChannelVolume(channel, volume int) {
	a.p.ChannelVolume(channel, volume)
}

func (a *Adapter) ControlChange(channel, cc, value int) {
	a.p.ControlChange(channel, cc, value)
}

// PushControl lands a scheduled control value on the first input control
// port.
func (a *Adapter) PushControl(beat float64, value float32) {
	for _, cp := range a.controls {
		if !cp.output {
			cp.store(value)
			return
		}
	}
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}
