package sched

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/mrdg/groove/graph"
	"github.com/mrdg/groove/plugin"
)

// recorder implements graph.Node and records every hook call.
type recorder struct {
	graph.NoEvents
	id    string
	calls []string
}

func (r *recorder) ID() string                                                      { return r.id }
func (r *recorder) Ports() []graph.PortDecl                                         { return nil }
func (r *recorder) Activate(sampleRate float64, maxBlockSize int)                   {}
func (r *recorder) Deactivate()                                                     {}
func (r *recorder) Process(*plugin.Context, []graph.PortBuffer, []graph.PortBuffer) {}
func (r *recorder) SetParam(name string, value float32)                             {}

func (r *recorder) NoteOn(ch, pitch, vel int)  { r.record("on %d %d %d", ch, pitch, vel) }
func (r *recorder) NoteOff(ch, pitch int)      { r.record("off %d %d", ch, pitch) }
func (r *recorder) ProgramChange(ch, b, p int) { r.record("prog %d %d %d", ch, b, p) }
func (r *recorder) PitchBend(ch, v int)        { r.record("bend %d %d", ch, v) }
func (r *recorder) ChannelVolume(ch, v int)    { r.record("vol %d %d", ch, v) }
func (r *recorder) PushControl(beat float64, v float32) {
	r.record("ctl %.2f %.2f", beat, v)
}

func (r *recorder) record(format string, args ...interface{}) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

type lookup map[string]graph.Node

func (l lookup) FindNode(id string) graph.Node {
	n, ok := l[id]
	if !ok {
		return nil
	}
	return n
}

func mustParse(t *testing.T, batch string) *Schedule {
	t.Helper()
	s, err := Parse([]byte(batch))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDispatchExactlyOnce(t *testing.T) {
	// Every event with beat < the final boundary is delivered exactly once,
	// in order, regardless of how the beat range is sliced into blocks.
	s := mustParse(t, `{"events": [
		{"beat": 0,    "type": "note_on",  "node_id": "t", "pitch": 60, "velocity": 100},
		{"beat": 0.5,  "type": "note_off", "node_id": "t", "pitch": 60},
		{"beat": 0.5,  "type": "note_on",  "node_id": "t", "pitch": 62, "velocity": 90},
		{"beat": 1.75, "type": "note_off", "node_id": "t", "pitch": 62},
		{"beat": 3,    "type": "note_on",  "node_id": "t", "pitch": 64, "velocity": 80}
	]}`)

	want := []string{
		"on 0 60 100",
		"off 0 60",
		"on 0 62 90",
		"off 0 62",
	}

	boundaries := [][]float64{
		{0, 0.5, 1.0, 1.5, 2.0},
		{0, 2.0},
		{0, 0.1, 0.1, 1.99, 2.0}, // zero-width and uneven blocks
	}
	for _, bs := range boundaries {
		var d Dispatcher
		d.SwapSchedule(s)
		d.CheckPending()
		rec := &recorder{id: "t"}
		g := lookup{"t": rec}
		for i := 0; i+1 < len(bs); i++ {
			d.Dispatch(bs[i], bs[i+1], g)
		}
		if !reflect.DeepEqual(want, rec.calls) {
			t.Errorf("boundaries %v:\nwant: %v\ngot:  %v", bs, want, rec.calls)
		}
	}
}

func TestDispatchEventMapping(t *testing.T) {
	s := mustParse(t, `{"events": [
		{"beat": 0, "type": "program", "node_id": "t", "channel": 1, "pitch": 5, "velocity": 2},
		{"beat": 0, "type": "volume",  "node_id": "t", "channel": 1, "pitch": 90},
		{"beat": 0, "type": "bend",    "node_id": "t", "channel": 1, "pitch": 0, "velocity": 64},
		{"beat": 0, "type": "control", "node_id": "t", "value": 0.75}
	]}`)
	var d Dispatcher
	d.SwapSchedule(s)
	d.CheckPending()
	rec := &recorder{id: "t"}
	d.Dispatch(0, 1, lookup{"t": rec})

	want := []string{
		"prog 1 2 5",    // bank = velocity, program = pitch
		"vol 1 90",      // volume = pitch
		"bend 1 8192",   // pitch | velocity<<7 = 64<<7
		"ctl 0.00 0.75", // normalized value
	}
	if !reflect.DeepEqual(want, rec.calls) {
		t.Errorf("wrong calls:\nwant: %v\ngot:  %v", want, rec.calls)
	}
}

func TestDispatchUnknownNode(t *testing.T) {
	s := mustParse(t, `{"events": [
		{"beat": 0, "type": "note_on", "node_id": "missing", "pitch": 60, "velocity": 100},
		{"beat": 0, "type": "note_on", "node_id": "t", "pitch": 61, "velocity": 100}
	]}`)
	var d Dispatcher
	d.SwapSchedule(s)
	d.CheckPending()
	rec := &recorder{id: "t"}
	d.Dispatch(0, 1, lookup{"t": rec})

	// The stale event is dropped silently; the engine keeps going.
	if want, got := []string{"on 0 61 100"}, rec.calls; !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestCheckPendingIdempotent(t *testing.T) {
	s := mustParse(t, `{"events": [
		{"beat": 2, "type": "note_on", "node_id": "t", "pitch": 60, "velocity": 100}
	]}`)
	var d Dispatcher
	if old := d.SwapSchedule(s); old != nil {
		t.Errorf("first swap should displace nothing, got %v", old)
	}
	if old := d.CheckPending(); old != nil {
		t.Errorf("first check should return no prior schedule, got %v", old)
	}
	if want, got := 2.0, d.ArrangementLength(); want != got {
		t.Errorf("arrangement length: want %v, got %v", want, got)
	}
	if old := d.CheckPending(); old != nil {
		t.Errorf("second check with no swap must be a no-op, got %v", old)
	}
}

func TestSwapReturnsDisplacedPending(t *testing.T) {
	a := mustParse(t, `{"events": []}`)
	b := mustParse(t, `{"events": []}`)
	var d Dispatcher
	d.SwapSchedule(a)
	if old := d.SwapSchedule(b); old != a {
		t.Errorf("second swap should hand back the displaced pending schedule")
	}
}

func TestSeek(t *testing.T) {
	s := mustParse(t, `{"events": [
		{"beat": 0, "type": "note_on", "node_id": "t", "pitch": 60, "velocity": 100},
		{"beat": 1, "type": "note_on", "node_id": "t", "pitch": 61, "velocity": 100},
		{"beat": 2, "type": "note_on", "node_id": "t", "pitch": 62, "velocity": 100}
	]}`)
	var d Dispatcher
	d.SwapSchedule(s)
	d.CheckPending()

	d.Seek(1)
	rec := &recorder{id: "t"}
	d.Dispatch(1, 3, lookup{"t": rec})
	want := []string{"on 0 61 100", "on 0 62 100"}
	if !reflect.DeepEqual(want, rec.calls) {
		t.Errorf("after seek:\nwant: %v\ngot:  %v", want, rec.calls)
	}

	// Seeking back rewinds the cursor.
	d.Seek(0)
	rec.calls = nil
	d.Dispatch(0, 0.5, lookup{"t": rec})
	if want, got := []string{"on 0 60 100"}, rec.calls; !reflect.DeepEqual(want, got) {
		t.Errorf("after rewind: want %v, got %v", want, got)
	}
}
