package graph

import (
	"reflect"
	"testing"

	"github.com/mrdg/groove/plugin"
)

// sink records the events a downstream node receives.
type sink struct {
	NoEvents
	id    string
	calls []string
}

func (s *sink) ID() string                                          { return s.id }
func (s *sink) Ports() []PortDecl                                   { return nil }
func (s *sink) Activate(sampleRate float64, maxBlockSize int)       {}
func (s *sink) Deactivate()                                         {}
func (s *sink) Process(*plugin.Context, []PortBuffer, []PortBuffer) {}
func (s *sink) SetParam(name string, value float32)                 {}
func (s *sink) NoteOn(ch, pitch, vel int)                           { s.calls = append(s.calls, "on") }
func (s *sink) NoteOff(ch, pitch int)                               { s.calls = append(s.calls, "off") }
func (s *sink) AllNotesOff(ch int)                                  { s.calls = append(s.calls, "all-off") }

func process(ts *TrackSource) {
	ts.Process(&plugin.Context{BlockSize: 64}, nil, nil)
}

func TestTrackSourceScheduledForwarding(t *testing.T) {
	ts := NewTrackSource("t")
	down := &sink{id: "d"}
	ts.setDownstream([]Node{down})

	ts.NoteOn(0, 60, 100)
	ts.NoteOff(0, 60)
	if want, got := []string{"on", "off"}, down.calls; !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestTrackSourcePreviewDrainedInProcess(t *testing.T) {
	ts := NewTrackSource("t")
	down := &sink{id: "d"}
	ts.setDownstream([]Node{down})

	ts.PreviewNoteOn(0, 60, 100)
	if len(down.calls) != 0 {
		t.Fatal("preview must not forward before the next block")
	}
	process(ts)
	if want, got := []string{"on"}, down.calls; !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestTrackSourcePreviewSurvivesTransportStop(t *testing.T) {
	ts := NewTrackSource("t")
	down := &sink{id: "d"}
	ts.setDownstream([]Node{down})

	ts.PreviewNoteOn(0, 60, 100)
	process(ts)

	// Transport stop: all-notes-off reaches downstream, but the held
	// preview note is re-asserted on the next block.
	ts.AllNotesOff(-1)
	process(ts)
	if want, got := []string{"on", "all-off", "on"}, down.calls; !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}

	// Only the explicit preview note off ends it.
	ts.PreviewNoteOff(0, 60)
	process(ts)
	ts.AllNotesOff(-1)
	process(ts)
	if want, got := []string{"on", "all-off", "on", "off", "all-off"}, down.calls; !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestTrackSourcePreviewAllNotesOff(t *testing.T) {
	ts := NewTrackSource("t")
	down := &sink{id: "d"}
	ts.setDownstream([]Node{down})

	ts.PreviewNoteOn(0, 60, 100)
	process(ts)
	ts.PreviewNoteOn(0, 64, 100) // still queued when the clear arrives
	ts.PreviewAllNotesOff()
	process(ts)

	// The queued note on was cleared; downstream got the all-off.
	if want, got := []string{"on", "all-off"}, down.calls; !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}

	// Nothing is re-asserted afterwards.
	ts.AllNotesOff(-1)
	process(ts)
	if want, got := []string{"on", "all-off", "all-off"}, down.calls; !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}
