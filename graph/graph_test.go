package graph

import (
	"strings"
	"testing"

	"github.com/mrdg/groove/plugin"

	_ "github.com/mrdg/groove/plugins"
)

const testBlockSize = 256

func buildGraph(t *testing.T, desc string) *Graph {
	t.Helper()
	d, err := ParseDesc([]byte(desc))
	if err != nil {
		t.Fatal(err)
	}
	g, err := New(d)
	if err != nil {
		t.Fatal(err)
	}
	g.Activate(44100, testBlockSize)
	return g
}

func testCtx(blockSize int) *plugin.Context {
	bpm := 120.0
	return &plugin.Context{
		BlockSize:      blockSize,
		SampleRate:     44100,
		BPM:            bpm,
		BeatsPerSample: bpm / 60 / 44100,
	}
}

const sineMixerDesc = `{
	"bpm": 120,
	"nodes": [
		{"id": "track1", "type": "track_source"},
		{"id": "sine1", "type": "sine"},
		{"id": "mixer", "type": "mixer", "channel_count": 2}
	],
	"connections": [
		{"from_node": "sine1", "from_port": "audio_out_L", "to_node": "mixer", "to_port": "audio_in_L_0"},
		{"from_node": "sine1", "from_port": "audio_out_R", "to_node": "mixer", "to_port": "audio_in_R_0"}
	]
}`

func TestGraphProcess(t *testing.T) {
	g := buildGraph(t, sineMixerDesc)

	if g.OutputL() == nil || g.OutputR() == nil {
		t.Fatal("graph should cache the mixer's stereo output")
	}

	// Silent until a note arrives.
	g.Process(testCtx(testBlockSize))
	if peak(g.OutputL()) != 0 {
		t.Errorf("expected silence before any note, peak %v", peak(g.OutputL()))
	}

	g.FindNode("sine1").NoteOn(0, 69, 100)
	g.Process(testCtx(testBlockSize))
	if peak(g.OutputL()) == 0 {
		t.Error("expected signal after note on")
	}
	if want, got := peak(g.OutputL()), peak(g.OutputR()); want != got {
		t.Errorf("stereo outputs should match for a centered sine: %v vs %v", want, got)
	}
}

func TestGraphStereoExpansion(t *testing.T) {
	g := buildGraph(t, sineMixerDesc)
	sine := g.FindNode("sine1")
	ports := sine.Ports()
	// The plugin's stereo audio_out expands to two mono ports, in L R order.
	var names []string
	for _, p := range ports {
		if p.Output && p.Type == Audio {
			names = append(names, p.Name)
		}
	}
	if len(names) != 2 || names[0] != "audio_out_L" || names[1] != "audio_out_R" {
		t.Errorf("wrong expanded port names: %v", names)
	}
}

func TestGraphEvalOrder(t *testing.T) {
	g := buildGraph(t, sineMixerDesc)
	order := g.EvalOrder()
	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	if pos["sine1"] > pos["mixer"] {
		t.Errorf("sine must evaluate before mixer: %v", order)
	}
}

func TestGraphCycleFallback(t *testing.T) {
	// Two mixers connected both ways form a cycle; activation falls back to
	// declaration order and the graph still runs.
	desc := `{
		"nodes": [
			{"id": "mixer", "type": "mixer"},
			{"id": "other", "type": "mixer"}
		],
		"connections": [
			{"from_node": "mixer", "from_port": "audio_out_L", "to_node": "other", "to_port": "audio_in_L_0"},
			{"from_node": "other", "from_port": "audio_out_L", "to_node": "mixer", "to_port": "audio_in_L_0"}
		]
	}`
	g := buildGraph(t, desc)
	if want, got := []string{"mixer", "other"}, g.EvalOrder(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected declaration order fallback, got %v", got)
	}
	g.Process(testCtx(testBlockSize)) // must not panic
}

func TestGraphSelfLoopDropped(t *testing.T) {
	desc := `{
		"nodes": [{"id": "mixer", "type": "mixer"}],
		"connections": [
			{"from_node": "mixer", "from_port": "audio_out_L", "to_node": "mixer", "to_port": "audio_in_L_0"}
		]
	}`
	g := buildGraph(t, desc)
	if want, got := 1, len(g.EvalOrder()); want != got {
		t.Errorf("self loop should not break the sort: order %v", g.EvalOrder())
	}
}

func TestGraphUnknownNodeType(t *testing.T) {
	d, err := ParseDesc([]byte(`{"nodes": [{"id": "x", "type": "warble"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(d); err == nil || !strings.Contains(err.Error(), "warble") {
		t.Errorf("expected unknown-type error naming the type, got %v", err)
	}
}

func TestGraphDuplicateInputConnection(t *testing.T) {
	desc := `{
		"nodes": [
			{"id": "a", "type": "sine"},
			{"id": "b", "type": "sine"},
			{"id": "mixer", "type": "mixer"}
		],
		"connections": [
			{"from_node": "a", "from_port": "audio_out_L", "to_node": "mixer", "to_port": "audio_in_L_0"},
			{"from_node": "b", "from_port": "audio_out_L", "to_node": "mixer", "to_port": "audio_in_L_0"}
		]
	}`
	d, err := ParseDesc([]byte(desc))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(d); err == nil {
		t.Error("expected error for two connections into one input port")
	}
}

func TestGraphFanOut(t *testing.T) {
	// One sine output feeding two mixer inputs is fine.
	desc := `{
		"nodes": [
			{"id": "sine1", "type": "sine"},
			{"id": "mixer", "type": "mixer", "channel_count": 2}
		],
		"connections": [
			{"from_node": "sine1", "from_port": "audio_out_L", "to_node": "mixer", "to_port": "audio_in_L_0"},
			{"from_node": "sine1", "from_port": "audio_out_L", "to_node": "mixer", "to_port": "audio_in_L_1"}
		]
	}`
	g := buildGraph(t, desc)
	g.FindNode("sine1").NoteOn(0, 69, 100)
	g.Process(testCtx(testBlockSize))
	if peak(g.OutputL()) == 0 {
		t.Error("fanned-out signal should reach the mix")
	}
}

func TestGraphSetParamUnknownNode(t *testing.T) {
	g := buildGraph(t, sineMixerDesc)
	g.SetParam("nope", "gain", 1) // silent no-op
	g.SetParam("sine1", "gain", 0)
	g.FindNode("sine1").NoteOn(0, 69, 100)
	g.Process(testCtx(testBlockSize))
	if want, got := float32(0), peak(g.OutputL()); want != got {
		t.Errorf("gain 0 should silence the sine, peak %v", got)
	}
}

func TestGraphControlRouting(t *testing.T) {
	// note_gate drives the sine's gain port through the buffer graph: with
	// no in-band note held the gate outputs 0, so the sine is muted even
	// while a voice is sounding.
	desc := `{
		"nodes": [
			{"id": "track1", "type": "track_source"},
			{"id": "gate", "type": "note_gate"},
			{"id": "sine1", "type": "sine"},
			{"id": "mixer", "type": "mixer"}
		],
		"connections": [
			{"from_node": "track1", "from_port": "events", "to_node": "gate", "to_port": "event_in"},
			{"from_node": "gate", "from_port": "control_out", "to_node": "sine1", "to_port": "gain"},
			{"from_node": "sine1", "from_port": "audio_out_L", "to_node": "mixer", "to_port": "audio_in_L_0"},
			{"from_node": "sine1", "from_port": "audio_out_R", "to_node": "mixer", "to_port": "audio_in_R_0"}
		]
	}`
	g := buildGraph(t, desc)

	g.FindNode("sine1").NoteOn(0, 69, 100)
	g.Process(testCtx(testBlockSize))
	if want, got := float32(0), peak(g.OutputL()); want != got {
		t.Errorf("gate low should mute the sine via the control wire, peak %v", got)
	}

	// Holding a note at the gate raises its output to 1 and the sine opens.
	g.FindNode("gate").NoteOn(0, 60, 100)
	g.Process(testCtx(testBlockSize))
	if peak(g.OutputL()) == 0 {
		t.Error("gate high should open the sine gain")
	}
}

func TestGraphEventRoutingSameBlock(t *testing.T) {
	// Arpeggiator note-ons emitted during Process reach the sine in the
	// same block: the sine is later in the eval order, so the block that
	// produces the event also sounds it.
	desc := `{
		"nodes": [
			{"id": "arp", "type": "arpeggiator"},
			{"id": "sine1", "type": "sine"},
			{"id": "mixer", "type": "mixer"}
		],
		"connections": [
			{"from_node": "arp", "from_port": "events_out", "to_node": "sine1", "to_port": "events_in"},
			{"from_node": "sine1", "from_port": "audio_out_L", "to_node": "mixer", "to_port": "audio_in_L_0"},
			{"from_node": "sine1", "from_port": "audio_out_R", "to_node": "mixer", "to_port": "audio_in_R_0"}
		]
	}`
	g := buildGraph(t, desc)

	g.FindNode("arp").NoteOn(0, 60, 100)
	ctx := testCtx(testBlockSize)
	ctx.BeatPos = 0 // a step boundary falls at beat 0
	g.Process(ctx)
	if peak(g.OutputL()) == 0 {
		t.Error("arpeggiated note should sound within the emitting block")
	}
}

func TestGraphUnconnectedInputIsSilent(t *testing.T) {
	// A mixer with nothing wired reads the zero buffer on every input.
	g := buildGraph(t, `{"nodes": [{"id": "mixer", "type": "mixer"}]}`)
	g.Process(testCtx(testBlockSize))
	if want, got := float32(0), peak(g.OutputL()); want != got {
		t.Errorf("unconnected mixer should be silent, got %v", got)
	}
}

func peak(buf []float32) float32 {
	var p float32
	for _, v := range buf {
		if v > p {
			p = v
		}
		if -v > p {
			p = -v
		}
	}
	return p
}
