// Package plugin defines the contract between the engine and a processing
// unit: a self-describing descriptor, a lifecycle, a block process call, and
// a set of event hooks.
//
// Threading model:
//   - Descriptor, Configure, ReadMonitor and GraphData/SetGraphData are
//     called on the control thread.
//   - Activate and Deactivate are called on the control thread, never while
//     Process is running.
//   - Process and all event hooks are called on the audio thread. They must
//     not allocate, lock, or do I/O.
package plugin

// PortType says what kind of signal flows through a port.
type PortType int

const (
	AudioMono   PortType = iota // one channel of audio, block_size samples
	AudioStereo                 // left/right pair; the graph sees two mono ports
	Event                       // MIDI-style event stream within a block
	Control                     // single float per block
)

// PortRole is the role of a port within the signal graph.
type PortRole int

const (
	Input     PortRole = iota
	Output             // routable output
	Sidechain          // secondary input (e.g. compressor key)
	Monitor            // display output read through ReadMonitor; the adapter declares it as a graph output port like Output
)

// ControlHint tells a frontend how to present a control port. It is
// metadata only and has no effect on processing.
type ControlHint int

const (
	Continuous ControlHint = iota
	Toggle
	Integer
	Categorical
	Radio
	Meter
	GraphEditor
)

// PortDescriptor fully describes one port of a plugin.
type PortDescriptor struct {
	ID          string
	DisplayName string
	Doc         string
	Type        PortType
	Role        PortRole

	// Control port metadata; ignored for audio and event ports.
	Hint    ControlHint
	Default float32
	Min     float32
	Max     float32
	Step    float32 // 0 = continuous
	Choices []string

	// For GraphEditor ports: identifies the editor type ("eq_curve",
	// "adsr_envelope", "breakpoint", ...).
	GraphType string

	// Whether the port is hidden from a graph editor's connectable ports by
	// default; the zero value shows it.
	HidePort bool
}

// ConfigType is the type of a configuration parameter.
type ConfigType int

const (
	ConfigString ConfigType = iota
	ConfigFilePath
	ConfigInteger
	ConfigFloat
	ConfigBool
	ConfigCategorical
)

// ConfigParam is configuration that doesn't flow through the signal graph,
// e.g. a sample file path. Values are always string-encoded.
type ConfigParam struct {
	ID          string
	DisplayName string
	Doc         string
	Type        ConfigType
	Default     string
	FileFilter  string
	Choices     []string
}

// Descriptor is the complete self-description of a plugin. A plugin
// instance must return the same descriptor every call.
type Descriptor struct {
	ID          string // unique, e.g. "builtin.sine"
	DisplayName string
	Category    string // "Synth", "Effect", "Mixer", "EventEffect", "Utility", ...
	Doc         string
	Author      string
	Version     int

	Ports        []PortDescriptor
	ConfigParams []ConfigParam
}

// Context carries timing and transport state for one process block.
type Context struct {
	BlockSize      int
	SampleRate     float64
	BPM            float64
	BeatPos        float64 // beat at the start of this block
	BeatsPerSample float64
}

// Plugin is the processing unit contract. Embed Base to pick up no-op
// defaults for everything except Descriptor and Process.
type Plugin interface {
	Descriptor() Descriptor

	// Activate is called once before the first Process; internal buffers
	// are allocated here. Deactivate may be called without a prior
	// Activate, e.g. when graph construction fails downstream.
	Activate(sampleRate float64, maxBlockSize int)
	Deactivate()

	// Configure delivers a ConfigParam value before Activate.
	Configure(key, value string)

	// Process runs one block. Audio output buffers arrive zeroed; event
	// output buffers arrive empty and the plugin appends into them.
	Process(ctx *Context, buf *Buffers)

	// Event hooks, for plugins without an explicit event input port.
	NoteOn(channel, pitch, velocity int)
	NoteOff(channel, pitch int)
	AllNotesOff(channel int) // channel -1 = all channels
	ProgramChange(channel, bank, program int)
	PitchBend(channel, value int) // 14-bit, 8192 = center
	ChannelVolume(channel, volume int)
	ControlChange(channel, cc, value int)

	// ReadMonitor returns the last observed value of a Monitor port.
	// Called on the control thread; plugins use atomics internally.
	ReadMonitor(portID string) float32

	// GraphData and SetGraphData move complex editor payloads (curves,
	// envelopes) between plugin and frontend. The format is plugin-defined.
	GraphData(portID string) string
	SetGraphData(portID, data string)
}

// Base provides no-op defaults for the optional parts of the Plugin
// interface.
type Base struct{}

func (Base) Activate(sampleRate float64, maxBlockSize int) {}
func (Base) Deactivate()                                   {}
func (Base) Configure(key, value string)                   {}
func (Base) NoteOn(channel, pitch, velocity int)           {}
func (Base) NoteOff(channel, pitch int)                    {}
func (Base) AllNotesOff(channel int)                       {}
func (Base) ProgramChange(channel, bank, program int)      {}
func (Base) PitchBend(channel, value int)                  {}
func (Base) ChannelVolume(channel, volume int)             {}
func (Base) ControlChange(channel, cc, value int)          {}
func (Base) ReadMonitor(portID string) float32             { return 0 }
func (Base) GraphData(portID string) string                { return "{}" }
func (Base) SetGraphData(portID, data string)              {}
