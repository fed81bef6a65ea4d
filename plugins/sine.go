package plugins

import (
	"math"

	"github.com/mrdg/groove/plugin"
)

func init() {
	plugin.Register(plugin.Registration{
		ID:  "builtin.sine",
		New: func() plugin.Plugin { return newSine() },
	})
}

const sineVoices = 16

type sineVoice struct {
	channel    int
	pitch      int
	phase      float64
	phaseDelta float64
	amp        float32
	env        float32
	envRelease float32
	releasing  bool
	active     bool
}

// sine is a polyphonic sine synth with a short per-voice release envelope
// and a soft-clipped output.
type sine struct {
	plugin.Base
	sampleRate float64
	voices     [sineVoices]sineVoice
}

func newSine() *sine { return &sine{sampleRate: 44100} }

func (s *sine) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		ID:          "builtin.sine",
		DisplayName: "Sine Synth",
		Category:    "Synth",
		Doc:         "Simple polyphonic sine wave synthesizer with release envelope.",
		Author:      "builtin",
		Version:     1,
		Ports: []plugin.PortDescriptor{
			{ID: "audio_out", DisplayName: "Audio Out", Doc: "Stereo audio output",
				Type: plugin.AudioStereo, Role: plugin.Output},
			{ID: "gain", DisplayName: "Gain", Doc: "Output volume",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Default: 0.15, Min: 0, Max: 1},
		},
	}
}

func (s *sine) Activate(sampleRate float64, maxBlockSize int) {
	s.sampleRate = sampleRate
	for i := range s.voices {
		s.voices[i] = sineVoice{}
	}
}

func (s *sine) NoteOn(channel, pitch, velocity int) {
	v := s.findVoice(channel, pitch)
	if v == nil {
		v = s.freeVoice()
	}
	if v == nil {
		return // all voices busy
	}
	freq := 440 * math.Pow(2, float64(pitch-69)/12)
	*v = sineVoice{
		channel:    channel,
		pitch:      pitch,
		phaseDelta: 2 * math.Pi * freq / s.sampleRate,
		amp:        float32(velocity) / 127,
		env:        1,
		active:     true,
	}
}

func (s *sine) NoteOff(channel, pitch int) {
	if v := s.findVoice(channel, pitch); v != nil {
		v.releasing = true
		v.envRelease = float32(30 / s.sampleRate)
	}
}

func (s *sine) AllNotesOff(channel int) {
	for i := range s.voices {
		if s.voices[i].active && (channel == -1 || s.voices[i].channel == channel) {
			s.voices[i].active = false
		}
	}
}

func (s *sine) findVoice(channel, pitch int) *sineVoice {
	for i := range s.voices {
		v := &s.voices[i]
		if v.active && v.channel == channel && v.pitch == pitch {
			return v
		}
	}
	return nil
}

func (s *sine) freeVoice() *sineVoice {
	for i := range s.voices {
		if !s.voices[i].active {
			return &s.voices[i]
		}
	}
	return nil
}

func (s *sine) Process(ctx *plugin.Context, buf *plugin.Buffers) {
	audio := buf.Audio("audio_out")
	gain := float32(0.15)
	if g := buf.Control("gain"); g != nil {
		gain = g.Value
	}

	left, right := audio.Left, audio.Right
	for i := range s.voices {
		v := &s.voices[i]
		if !v.active {
			continue
		}
		amp := v.amp * gain
		for n := 0; n < ctx.BlockSize; n++ {
			env := float32(1)
			if v.releasing {
				v.env *= 1 - v.envRelease
				env = v.env
			}
			sample := float32(math.Sin(v.phase)) * amp * env
			left[n] += sample
			right[n] += sample
			v.phase += v.phaseDelta
			if v.phase > 2*math.Pi {
				v.phase -= 2 * math.Pi
			}
		}
		if v.releasing && v.env < 1e-4 {
			v.active = false
		}
	}

	for n := 0; n < ctx.BlockSize; n++ {
		left[n] = tanh32(left[n])
		right[n] = tanh32(right[n])
	}
}

func tanh32(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}
