package graph

import (
	"sync/atomic"

	"github.com/mrdg/groove/plugin"
)

// ringSize is the capacity of the control ring. On overflow old values are
// silently overwritten; the output only ever needs the most recent value.
const ringSize = 64

type controlPoint struct {
	beat  float64
	value float32
}

// ControlSource delivers scheduled control values into the buffer graph. The
// dispatcher pushes timestamped values via PushControl; Process emits the
// most recent one on the control output each block.
//
// The ring is a single-producer single-consumer hand-off: both ends run on
// the audio thread today, but the acquire/release pairing keeps it correct
// if a control-thread producer ever appears.
type ControlSource struct {
	NoEvents
	id string

	ring     [ringSize]controlPoint
	writeIdx atomic.Int32
	readIdx  int32
	current  float32
}

func NewControlSource(id string) *ControlSource {
	return &ControlSource{id: id}
}

func (c *ControlSource) ID() string { return c.id }

func (c *ControlSource) Ports() []PortDecl {
	return []PortDecl{
		{Name: "control_out", Type: Control, Output: true, Min: 0, Max: 1},
	}
}

func (c *ControlSource) Activate(sampleRate float64, maxBlockSize int) {}
func (c *ControlSource) Deactivate()                                   {}
func (c *ControlSource) SetParam(name string, value float32)           {}

// PushControl overrides the NoEvents no-op: record the value in the ring.
func (c *ControlSource) PushControl(beat float64, value float32) {
	wi := c.writeIdx.Load()
	c.ring[wi%ringSize] = controlPoint{beat: beat, value: value}
	c.writeIdx.Store(wi + 1)
}

func (c *ControlSource) Process(ctx *plugin.Context, in, out []PortBuffer) {
	wi := c.writeIdx.Load()
	for c.readIdx < wi {
		c.current = c.ring[c.readIdx%ringSize].value
		c.readIdx++
	}
	out[0].Control = c.current
}
