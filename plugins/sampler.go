package plugins

import (
	"io"
	"log"
	"os"

	"github.com/mrdg/groove/plugin"
	wav "github.com/youpy/go-wav"
)

func init() {
	plugin.Register(plugin.Registration{
		ID:  "builtin.sampler",
		New: func() plugin.Plugin { return &sampler{} },
	})
}

const samplerVoices = 12

// sampler plays a WAV file one-shot on every note-on. The sample path is
// configured before activation; a missing or unreadable file degrades to
// silence.
type sampler struct {
	plugin.Base

	path string
	bufL []float32
	bufR []float32

	// Play positions into the sample buffer; 0 = voice unused. Position is
	// stored +1 so a voice at the first sample is distinguishable.
	voices [samplerVoices]voice
}

type voice struct {
	pos int
	amp float32
}

func (s *sampler) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		ID:          "builtin.sampler",
		DisplayName: "Sampler",
		Category:    "Synth",
		Doc:         "One-shot sample player triggered by note-on.",
		Author:      "builtin",
		Version:     1,
		Ports: []plugin.PortDescriptor{
			{ID: "audio_out", DisplayName: "Audio Out", Doc: "Stereo audio output",
				Type: plugin.AudioStereo, Role: plugin.Output},
			{ID: "gain", DisplayName: "Gain", Doc: "Output volume",
				Type: plugin.Control, Role: plugin.Input,
				Hint: plugin.Continuous, Default: 1, Min: 0, Max: 2},
		},
		ConfigParams: []plugin.ConfigParam{
			{ID: "sample_path", DisplayName: "Sample",
				Doc:  "WAV file to play",
				Type: plugin.ConfigFilePath, FileFilter: "WAV Files (*.wav)"},
		},
	}
}

func (s *sampler) Configure(key, value string) {
	if key == "sample_path" {
		s.path = value
	}
}

func (s *sampler) Activate(sampleRate float64, maxBlockSize int) {
	for i := range s.voices {
		s.voices[i] = voice{}
	}
	if s.path == "" {
		return
	}
	if err := s.load(s.path); err != nil {
		log.Printf("sampler: %v", err)
		s.bufL, s.bufR = nil, nil
	}
}

func (s *sampler) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return err
	}
	stereo := format.NumChannels > 1

	s.bufL = s.bufL[:0]
	s.bufR = s.bufR[:0]
	for {
		samples, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for _, sample := range samples {
			l := float32(r.FloatValue(sample, 0))
			right := l
			if stereo {
				right = float32(r.FloatValue(sample, 1))
			}
			s.bufL = append(s.bufL, l)
			s.bufR = append(s.bufR, right)
		}
	}
	return nil
}

func (s *sampler) NoteOn(channel, pitch, velocity int) {
	if len(s.bufL) == 0 {
		return
	}
	for i := range s.voices {
		if s.voices[i].pos == 0 {
			s.voices[i] = voice{pos: 1, amp: float32(velocity) / 127}
			return
		}
	}
}

func (s *sampler) AllNotesOff(channel int) {
	for i := range s.voices {
		s.voices[i] = voice{}
	}
}

func (s *sampler) Process(ctx *plugin.Context, buf *plugin.Buffers) {
	audio := buf.Audio("audio_out")
	gain := float32(1)
	if g := buf.Control("gain"); g != nil {
		gain = g.Value
	}
	for i := range s.voices {
		v := &s.voices[i]
		if v.pos == 0 {
			continue
		}
		pos := v.pos - 1
		n := len(s.bufL) - pos
		if n > ctx.BlockSize {
			n = ctx.BlockSize
		}
		for k := 0; k < n; k++ {
			audio.Left[k] += s.bufL[pos+k] * v.amp * gain
			audio.Right[k] += s.bufR[pos+k] * v.amp * gain
		}
		pos += n
		if pos >= len(s.bufL) {
			*v = voice{}
		} else {
			v.pos = pos + 1
		}
	}
}
