package graph

import (
	"sync"

	"github.com/mrdg/groove/plugin"
)

type previewNote struct {
	channel  int
	pitch    int
	velocity int
}

// TrackSource is an addressable event source for one sequencer track. It has
// no audio ports: scheduled events from the dispatcher and preview notes
// injected from the control thread fan out to a registered list of
// downstream nodes.
//
// Preview notes are independent of the transport: a transport all-notes-off
// silences downstream voices but held preview notes are re-asserted on the
// next block, so only an explicit preview note-off or preview all-notes-off
// ends them.
type TrackSource struct {
	id         string
	downstream []Node // non-owning; valid for the graph lifetime

	mu         sync.Mutex
	pendingOn  []previewNote
	pendingOff []previewNote // pitch -1 = all notes, all channels

	// Audio-thread state, touched only in Process and the event hooks.
	drainOn  []previewNote
	drainOff []previewNote
	held     []previewNote
	reassert bool
}

func NewTrackSource(id string) *TrackSource {
	return &TrackSource{
		id:       id,
		drainOn:  make([]previewNote, 0, 64),
		drainOff: make([]previewNote, 0, 64),
		held:     make([]previewNote, 0, 64),
	}
}

func (t *TrackSource) ID() string { return t.id }

// Ports is empty: the node drives downstream nodes through direct calls, not
// the buffer graph. It only participates in eval ordering.
func (t *TrackSource) Ports() []PortDecl { return nil }

func (t *TrackSource) Activate(sampleRate float64, maxBlockSize int) {}
func (t *TrackSource) Deactivate()                                   {}

// setDownstream is called during graph activation with the unique
// destinations of this node's outgoing connections.
func (t *TrackSource) setDownstream(nodes []Node) { t.downstream = nodes }

// Process drains the preview queues and forwards them downstream. Runs once
// per block before any downstream node processes.
func (t *TrackSource) Process(ctx *plugin.Context, in, out []PortBuffer) {
	t.mu.Lock()
	t.drainOn = append(t.drainOn[:0], t.pendingOn...)
	t.drainOff = append(t.drainOff[:0], t.pendingOff...)
	t.pendingOn = t.pendingOn[:0]
	t.pendingOff = t.pendingOff[:0]
	t.mu.Unlock()

	for _, off := range t.drainOff {
		if off.pitch == -1 {
			for _, n := range t.downstream {
				n.AllNotesOff(-1)
			}
			t.held = t.held[:0]
			t.reassert = false
			continue
		}
		for _, n := range t.downstream {
			n.NoteOff(off.channel, off.pitch)
		}
		t.dropHeld(off.channel, off.pitch)
	}

	if t.reassert {
		t.reassert = false
		for _, pn := range t.held {
			for _, n := range t.downstream {
				n.NoteOn(pn.channel, pn.pitch, pn.velocity)
			}
		}
	}

	for _, pn := range t.drainOn {
		for _, n := range t.downstream {
			n.NoteOn(pn.channel, pn.pitch, pn.velocity)
		}
		t.held = append(t.held, pn)
	}
}

func (t *TrackSource) dropHeld(channel, pitch int) {
	for i := 0; i < len(t.held); i++ {
		if t.held[i].channel == channel && t.held[i].pitch == pitch {
			t.held = append(t.held[:i], t.held[i+1:]...)
			i--
		}
	}
}

func (t *TrackSource) SetParam(name string, value float32) {}

// Scheduled event forwarding, called from the dispatcher on the audio
// thread. No locking: the audio thread owns downstream for the graph
// lifetime.

func (t *TrackSource) NoteOn(channel, pitch, velocity int) {
	for _, n := range t.downstream {
		n.NoteOn(channel, pitch, velocity)
	}
}

func (t *TrackSource) NoteOff(channel, pitch int) {
	for _, n := range t.downstream {
		n.NoteOff(channel, pitch)
	}
}

func (t *TrackSource) ProgramChange(channel, bank, program int) {
	for _, n := range t.downstream {
		n.ProgramChange(channel, bank, program)
	}
}

func (t *TrackSource) PitchBend(channel, value int) {
	for _, n := range t.downstream {
		n.PitchBend(channel, value)
	}
}

func (t *TrackSource) ChannelVolume(channel, volume int) {
	for _, n := range t.downstream {
		n.ChannelVolume(channel, volume)
	}
}

func (t *TrackSource) ControlChange(channel, cc, value int) {
	for _, n := range t.downstream {
		n.ControlChange(channel, cc, value)
	}
}

// AllNotesOff is the transport stop/seek path. It silences downstream but
// does not clear preview state; held preview notes restart next block.
func (t *TrackSource) AllNotesOff(channel int) {
	for _, n := range t.downstream {
		n.AllNotesOff(channel)
	}
	if len(t.held) > 0 {
		t.reassert = true
	}
}

func (t *TrackSource) PushControl(beat float64, value float32) {}

// Preview interface, called from the control thread.

func (t *TrackSource) PreviewNoteOn(channel, pitch, velocity int) {
	t.mu.Lock()
	t.pendingOn = append(t.pendingOn, previewNote{channel, pitch, velocity})
	t.mu.Unlock()
}

func (t *TrackSource) PreviewNoteOff(channel, pitch int) {
	t.mu.Lock()
	t.pendingOff = append(t.pendingOff, previewNote{channel: channel, pitch: pitch})
	t.mu.Unlock()
}

// PreviewAllNotesOff clears the preview queues and emits an all-channels
// notes-off downstream on the next block.
func (t *TrackSource) PreviewAllNotesOff() {
	t.mu.Lock()
	t.pendingOn = t.pendingOn[:0]
	t.pendingOff = append(t.pendingOff, previewNote{channel: -1, pitch: -1})
	t.mu.Unlock()
}
