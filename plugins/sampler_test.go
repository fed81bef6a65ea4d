package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mrdg/groove/plugin"
	wav "github.com/youpy/go-wav"
)

func writeTestWAV(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hit.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := wav.NewWriter(f, uint32(frames), 1, 44100, 16)
	samples := make([]wav.Sample, frames)
	for i := range samples {
		samples[i].Values[0] = 16384 // ~0.5 full scale
	}
	if err := w.WriteSamples(samples); err != nil {
		t.Fatal(err)
	}
	return path
}

func samplerBuffers(blockSize int) *plugin.Buffers {
	buf := &plugin.Buffers{}
	buf.AddAudio("audio_out")
	buf.Audio("audio_out").Left = make([]float32, blockSize)
	buf.Audio("audio_out").Right = make([]float32, blockSize)
	buf.AddControl("gain")
	buf.Control("gain").Value = 1
	return buf
}

func TestSamplerPlaysOneShot(t *testing.T) {
	path := writeTestWAV(t, 100)

	s := &sampler{}
	s.Configure("sample_path", path)
	s.Activate(44100, 64)
	if want, got := 100, len(s.bufL); want != got {
		t.Fatalf("sample length: want %v, got %v", want, got)
	}

	buf := samplerBuffers(64)
	ctx := &plugin.Context{BlockSize: 64, SampleRate: 44100}

	s.Process(ctx, buf)
	if peak(buf.Audio("audio_out").Left) != 0 {
		t.Error("expected silence before the trigger")
	}

	s.NoteOn(0, 60, 127)
	s.Process(ctx, buf)
	if peak(buf.Audio("audio_out").Left) == 0 {
		t.Error("expected sample playback after note on")
	}

	// The one-shot exhausts: 100 frames fit in two 64-frame blocks, then
	// the voice frees itself.
	zeroAudio(buf, 64)
	s.Process(ctx, buf)
	zeroAudio(buf, 64)
	s.Process(ctx, buf)
	if p := peak(buf.Audio("audio_out").Left); p != 0 {
		t.Errorf("one shot should have ended, peak %v", p)
	}
}

func TestSamplerMissingFile(t *testing.T) {
	s := &sampler{}
	s.Configure("sample_path", "/does/not/exist.wav")
	s.Activate(44100, 64) // logs, must not panic

	buf := samplerBuffers(64)
	s.NoteOn(0, 60, 127)
	s.Process(&plugin.Context{BlockSize: 64, SampleRate: 44100}, buf)
	if peak(buf.Audio("audio_out").Left) != 0 {
		t.Error("missing sample should play silence")
	}
}
