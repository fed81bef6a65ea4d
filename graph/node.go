// Package graph implements the signal graph: typed nodes with ports,
// connections, a topological evaluation order, a pre-allocated buffer pool,
// and a block-synchronous evaluator. Graphs are built and activated on the
// control thread and then handed to the audio thread, which only reads them.
package graph

import "github.com/mrdg/groove/plugin"

// PortType is the kind of signal carried by a graph-level port. Event
// streams are handled out-of-band through the node event hooks and never
// appear in declared ports.
type PortType int

const (
	Audio PortType = iota
	Control
)

// PortDecl declares one port of a node. Inputs and outputs are matched to
// buffers by the order they appear in the declaration list.
type PortDecl struct {
	Name    string
	Type    PortType
	Output  bool
	Default float32
	Min     float32
	Max     float32
}

// PortBuffer is a buffer flowing between nodes on the audio thread. Audio
// points into the graph's pre-allocated pool; Control carries a single value
// per block.
type PortBuffer struct {
	Type    PortType
	Audio   []float32
	Control float32
}

// Node is the uniform interface the graph evaluates. Built-in nodes
// implement it directly; plugins are wrapped by an Adapter.
type Node interface {
	ID() string

	// Ports returns the node's port declarations, in a stable order.
	Ports() []PortDecl

	// Activate is called once when the graph is activated; Deactivate once
	// on retirement. Deactivate may run without a prior Activate.
	Activate(sampleRate float64, maxBlockSize int)
	Deactivate()

	// Process runs one block on the audio thread. in and out are indexed
	// by the order of the input and output ports in Ports().
	Process(ctx *plugin.Context, in, out []PortBuffer)

	// SetParam is called from the control thread; values land in atomics.
	SetParam(name string, value float32)

	// Event hooks, called on the audio thread before Process.
	NoteOn(channel, pitch, velocity int)
	NoteOff(channel, pitch int)
	AllNotesOff(channel int) // channel -1 = all channels
	ProgramChange(channel, bank, program int)
	PitchBend(channel, value int) // 14-bit, 8192 = center
	ChannelVolume(channel, volume int)
	ControlChange(channel, cc, value int)

	// PushControl queues a scheduled control value applied at Process time.
	PushControl(beat float64, value float32)
}

// NoEvents provides no-op event hooks for nodes that don't consume events.
type NoEvents struct{}

func (NoEvents) NoteOn(channel, pitch, velocity int)      {}
func (NoEvents) NoteOff(channel, pitch int)               {}
func (NoEvents) AllNotesOff(channel int)                  {}
func (NoEvents) ProgramChange(channel, bank, program int) {}
func (NoEvents) PitchBend(channel, value int)             {}
func (NoEvents) ChannelVolume(channel, volume int)        {}
func (NoEvents) ControlChange(channel, cc, value int)     {}
func (NoEvents) PushControl(beat float64, value float32)  {}
