package plugins

import (
	"math"

	"github.com/mrdg/groove/plugin"
)

func init() {
	plugin.Register(plugin.Registration{
		ID:  "builtin.control_lfo",
		New: func() plugin.Plugin { return &controlLFO{sampleRate: 44100} },
	})
}

// controlLFO generates a periodic waveform on a control output, one value
// per block. Free-running by default; with sync on, the phase is derived
// from the beat position so it stays coherent across seeks.
type controlLFO struct {
	plugin.Base
	sampleRate float64
	phase      float64 // free-running accumulator [0, 1)
}

func (l *controlLFO) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		ID:          "builtin.control_lfo",
		DisplayName: "Control LFO",
		Category:    "Utility",
		Doc:         "Generates a periodic waveform on a Control output port.",
		Author:      "builtin",
		Version:     1,
		Ports: []plugin.PortDescriptor{
			{ID: "control_out", DisplayName: "Control Out", Doc: "LFO output [0, 1]",
				Type: plugin.Control, Role: plugin.Output,
				Hint: plugin.Meter, Min: 0, Max: 1},
			{ID: "frequency", DisplayName: "Frequency", Doc: "LFO rate in Hz (free-running mode)",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Default: 1, Min: 0.01, Max: 100},
			{ID: "amplitude", DisplayName: "Amplitude", Doc: "Peak deviation from offset",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Default: 0.5, Min: 0, Max: 1},
			{ID: "offset", DisplayName: "Offset", Doc: "DC bias added to waveform",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Default: 0.5, Min: 0, Max: 1},
			{ID: "shape", DisplayName: "Shape", Doc: "Waveform shape",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Categorical, Min: 0, Max: 3, Step: 1,
				Choices: []string{"Sine", "Square", "Triangle", "Sawtooth"}},
			{ID: "sync", DisplayName: "Sync to BPM", Doc: "If 1, period set by 'beats', else free-running",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Toggle, Min: 0, Max: 1},
			{ID: "beats", DisplayName: "Period (beats)", Doc: "LFO period in beats when sync=1",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Default: 4, Min: 0.0625, Max: 64},
		},
	}
}

func (l *controlLFO) Activate(sampleRate float64, maxBlockSize int) {
	l.sampleRate = sampleRate
	l.phase = 0
}

func (l *controlLFO) Process(ctx *plugin.Context, buf *plugin.Buffers) {
	freq := ctl(buf, "frequency", 1)
	amp := ctl(buf, "amplitude", 0.5)
	off := ctl(buf, "offset", 0.5)
	shape := clampInt(int(ctl(buf, "shape", 0)), 0, 3)
	sync := ctl(buf, "sync", 0) >= 0.5
	beats := float64(ctl(buf, "beats", 4))
	if beats < 0.0625 {
		beats = 0.0625
	}

	var phase float64
	if sync {
		phase = math.Mod(ctx.BeatPos/beats, 1)
	} else {
		// Control rate: one value per block, so advance by a whole block.
		l.phase = math.Mod(l.phase+float64(freq)*float64(ctx.BlockSize)/l.sampleRate, 1)
		phase = l.phase
	}

	value := clamp32(off+amp*lfoShape(shape, float32(phase)), 0, 1)
	if out := buf.Control("control_out"); out != nil {
		out.Value = value
	}
}

func ctl(buf *plugin.Buffers, id string, fallback float32) float32 {
	if c := buf.Control(id); c != nil {
		return c.Value
	}
	return fallback
}

// lfoShape maps phase [0, 1) to [-1, 1].
func lfoShape(shape int, phase float32) float32 {
	switch shape {
	case 1: // square
		if phase < 0.5 {
			return 1
		}
		return -1
	case 2: // triangle
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	case 3: // sawtooth, rising ramp
		return 2*phase - 1
	default: // sine
		return float32(math.Sin(2 * math.Pi * float64(phase)))
	}
}
