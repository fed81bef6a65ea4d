package plugins

import (
	"encoding/json"
	"testing"

	"github.com/mrdg/groove/plugin"
)

func TestControlMonitorReadback(t *testing.T) {
	m := &controlMonitor{}
	m.Activate(44100, 512)

	buf := &plugin.Buffers{}
	buf.AddControl("control_in")
	ctx := &plugin.Context{BlockSize: 512}

	for _, v := range []float32{0.2, 0.9, 0.4} {
		buf.Control("control_in").Value = v
		m.Process(ctx, buf)
	}

	if want, got := float32(0.4), m.ReadMonitor("latest"); want != got {
		t.Errorf("latest: want %v, got %v", want, got)
	}
	if want, got := float32(0.9), m.ReadMonitor("max"); want != got {
		t.Errorf("max: want %v, got %v", want, got)
	}
	// Unfilled history slots don't drag the minimum down: count only covers
	// written entries, and the first written value was 0.2.
	if want, got := float32(0.2), m.ReadMonitor("min"); want != got {
		t.Errorf("min: want %v, got %v", want, got)
	}
}

func TestControlMonitorHistory(t *testing.T) {
	m := &controlMonitor{}
	m.Activate(44100, 512)

	buf := &plugin.Buffers{}
	buf.AddControl("control_in")
	ctx := &plugin.Context{BlockSize: 512}

	for i := 0; i < 3; i++ {
		buf.Control("control_in").Value = float32(i)
		m.Process(ctx, buf)
	}

	var history []float64
	if err := json.Unmarshal([]byte(m.GraphData("history")), &history); err != nil {
		t.Fatalf("history is not valid JSON: %v", err)
	}
	if want, got := 3, len(history); want != got {
		t.Fatalf("want %v entries, got %v", want, got)
	}
	for i, v := range history {
		if float64(i) != v {
			t.Errorf("history[%d] = %v, want %v (chronological order)", i, v, i)
		}
	}

	if want, got := "[]", m.GraphData("other"); want != got {
		t.Errorf("unknown port: want %q, got %q", want, got)
	}
}
