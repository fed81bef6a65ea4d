package plugins

import (
	"fmt"
	"strconv"

	"github.com/mrdg/groove/plugin"
)

func init() {
	plugin.Register(plugin.Registration{
		ID:  "builtin.mixer",
		New: func() plugin.Plugin { return newMixer() },
	})
}

// mixer sums N stereo input pairs into one stereo output with per-channel
// gain, a master gain, and tanh saturation on the way out. The channel count
// is fixed via configure before activation; the descriptor reflects it.
type mixer struct {
	plugin.Base
	channels int

	// Port names cached so the hot path never formats strings.
	inL, inR, gains []string
}

func newMixer() *mixer { return &mixer{channels: 2} }

func (m *mixer) Descriptor() plugin.Descriptor {
	d := plugin.Descriptor{
		ID:          "builtin.mixer",
		DisplayName: "Mixer",
		Category:    "Mixer",
		Doc:         "Sums N stereo input pairs into one stereo output with per-channel gain.",
		Author:      "builtin",
		Version:     1,
		ConfigParams: []plugin.ConfigParam{
			{ID: "channel_count", DisplayName: "Channels",
				Doc:  "Number of stereo input channels",
				Type: plugin.ConfigInteger, Default: strconv.Itoa(m.channels)},
		},
	}
	for i := 0; i < m.channels; i++ {
		idx := strconv.Itoa(i)
		d.Ports = append(d.Ports,
			plugin.PortDescriptor{ID: "audio_in_L_" + idx, DisplayName: "Input " + idx + " L",
				Type: plugin.AudioMono, Role: plugin.Input},
			plugin.PortDescriptor{ID: "audio_in_R_" + idx, DisplayName: "Input " + idx + " R",
				Type: plugin.AudioMono, Role: plugin.Input},
			plugin.PortDescriptor{ID: "gain_" + idx, DisplayName: "Gain " + idx,
				Doc:  "Gain for input channel " + idx,
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Default: 1, Min: 0, Max: 2})
	}
	d.Ports = append(d.Ports,
		plugin.PortDescriptor{ID: "master_gain", DisplayName: "Master Gain",
			Doc:  "Master output gain",
			Type: plugin.Control, Role: plugin.Input,
			Hint: plugin.Continuous, Default: 1, Min: 0, Max: 2},
		plugin.PortDescriptor{ID: "audio_out", DisplayName: "Audio Out",
			Doc:  "Stereo mix output",
			Type: plugin.AudioStereo, Role: plugin.Output})
	return d
}

func (m *mixer) Configure(key, value string) {
	if key != "channel_count" {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 64 {
		return
	}
	m.channels = n
}

func (m *mixer) Activate(sampleRate float64, maxBlockSize int) {
	m.inL = m.inL[:0]
	m.inR = m.inR[:0]
	m.gains = m.gains[:0]
	for i := 0; i < m.channels; i++ {
		m.inL = append(m.inL, fmt.Sprintf("audio_in_L_%d", i))
		m.inR = append(m.inR, fmt.Sprintf("audio_in_R_%d", i))
		m.gains = append(m.gains, fmt.Sprintf("gain_%d", i))
	}
}

func (m *mixer) Process(ctx *plugin.Context, buf *plugin.Buffers) {
	out := buf.Audio("audio_out")
	if out == nil {
		return
	}

	master := float32(1)
	if mg := buf.Control("master_gain"); mg != nil {
		master = mg.Value
	}

	for ch := 0; ch < m.channels; ch++ {
		inL := buf.Audio(m.inL[ch])
		inR := buf.Audio(m.inR[ch])
		if inL == nil || inR == nil {
			continue
		}
		g := master
		if gain := buf.Control(m.gains[ch]); gain != nil {
			g *= gain.Value
		}
		for i := 0; i < ctx.BlockSize; i++ {
			out.Left[i] += inL.Left[i] * g
			out.Right[i] += inR.Left[i] * g
		}
	}

	for i := 0; i < ctx.BlockSize; i++ {
		out.Left[i] = tanh32(out.Left[i])
		out.Right[i] = tanh32(out.Right[i])
	}
}
