package plugins

import (
	"math"
	"strconv"
	"sync/atomic"

	"github.com/mrdg/groove/plugin"
)

func init() {
	plugin.Register(plugin.Registration{
		ID:  "builtin.control_monitor",
		New: func() plugin.Plugin { return &controlMonitor{} },
	})
}

// historySize is the length of the circular history the UI can fetch for a
// sparkline.
const historySize = 512

// controlMonitor taps a control stream. The latest/min/max values are read
// through the Monitor port path; the full history is served as JSON through
// GraphData("history").
type controlMonitor struct {
	plugin.Base

	buf    [historySize]float32
	head   atomic.Int32
	count  atomic.Int32
	latest atomic.Uint32 // float32 bits
}

func (m *controlMonitor) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		ID:          "builtin.control_monitor",
		DisplayName: "Control Monitor",
		Category:    "Utility",
		Doc:         "Monitors a Control stream and exposes recent values to the control thread.",
		Author:      "builtin",
		Version:     1,
		Ports: []plugin.PortDescriptor{
			{ID: "control_in", DisplayName: "Control In", Doc: "Control stream to monitor",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Min: 0, Max: 1},
			{ID: "latest", DisplayName: "Latest", Doc: "Most recent value",
				Type: plugin.Control, Role: plugin.Monitor,
				Hint: plugin.Meter, Min: 0, Max: 1},
			{ID: "min", DisplayName: "Min", Doc: "Rolling minimum",
				Type: plugin.Control, Role: plugin.Monitor,
				Hint: plugin.Meter, Min: 0, Max: 1},
			{ID: "max", DisplayName: "Max", Doc: "Rolling maximum",
				Type: plugin.Control, Role: plugin.Monitor,
				Hint: plugin.Meter, Min: 0, Max: 1},
		},
	}
}

func (m *controlMonitor) Activate(sampleRate float64, maxBlockSize int) {
	m.head.Store(0)
	m.count.Store(0)
	m.latest.Store(0)
	for i := range m.buf {
		m.buf[i] = 0
	}
}

func (m *controlMonitor) Process(ctx *plugin.Context, buf *plugin.Buffers) {
	var v float32
	if in := buf.Control("control_in"); in != nil {
		v = in.Value
	}

	h := m.head.Load()
	m.buf[h] = v
	m.head.Store((h + 1) % historySize)
	if c := m.count.Load(); c < historySize {
		m.count.Store(c + 1)
	}
	m.latest.Store(math.Float32bits(v))
}

func (m *controlMonitor) ReadMonitor(portID string) float32 {
	if portID == "latest" {
		return math.Float32frombits(m.latest.Load())
	}
	cnt := int(m.count.Load())
	if cnt == 0 {
		return 0
	}
	mn, mx := m.buf[0], m.buf[0]
	for i := 0; i < cnt; i++ {
		if m.buf[i] < mn {
			mn = m.buf[i]
		}
		if m.buf[i] > mx {
			mx = m.buf[i]
		}
	}
	switch portID {
	case "min":
		return mn
	case "max":
		return mx
	}
	return math.Float32frombits(m.latest.Load())
}

func (m *controlMonitor) GraphData(portID string) string {
	if portID != "history" {
		return "[]"
	}
	cnt := int(m.count.Load())
	head := int(m.head.Load())
	if cnt == 0 {
		return "[]"
	}
	start := 0
	if cnt == historySize {
		start = head
	}
	out := make([]byte, 0, cnt*8)
	out = append(out, '[')
	for i := 0; i < cnt; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		v := m.buf[(start+i)%historySize]
		out = strconv.AppendFloat(out, float64(v), 'g', 6, 32)
	}
	out = append(out, ']')
	return string(out)
}
