package engine

import (
	"bytes"

	wav "github.com/youpy/go-wav"
)

// encodeWAV wraps interleaved float32 PCM in a canonical RIFF/WAVE container
// with one fmt chunk (16-bit PCM) and one data chunk. Samples are clamped to
// [-1, 1] before conversion.
func encodeWAV(pcm []float32, sampleRate, channels int) ([]byte, error) {
	frames := len(pcm) / channels
	samples := make([]wav.Sample, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels && ch < 2; ch++ {
			v := pcm[i*channels+ch]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			samples[i].Values[ch] = int(v * 32767)
		}
	}

	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(frames), uint16(channels), uint32(sampleRate), 16)
	if err := w.WriteSamples(samples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
