package engine

import (
	"fmt"
	"math"

	"github.com/mrdg/groove/plugin"
)

// RenderOffline runs the graph and schedule block-by-block without a stream
// and returns interleaved stereo float32 PCM. The render covers
// max(arrangement length, durationBeats) converted at the current tempo,
// plus tailSeconds of decay.
//
// The render shares the live dispatcher with the realtime path; running it
// while the transport plays is undefined, so callers serialize the two.
func (e *Engine) RenderOffline(tailSeconds, durationBeats float64) ([]float32, error) {
	g := e.active.Load()
	if g == nil {
		return nil, fmt.Errorf("no active graph")
	}

	bpm := e.BPM()
	length := e.dispatcher.ArrangementLength()
	if durationBeats > length {
		length = durationBeats
	}
	if length <= 0 {
		return nil, fmt.Errorf("nothing to render")
	}

	totalSeconds := length*60/bpm + tailSeconds
	totalFrames := int(math.Ceil(totalSeconds * e.cfg.SampleRate))
	block := e.cfg.BlockSize

	e.dispatcher.Seek(0)

	out := make([]float32, 0, totalFrames*2)
	beat := 0.0
	bps := bpm / 60 / e.cfg.SampleRate

	for done := 0; done < totalFrames; {
		n := block
		if rest := totalFrames - done; rest < n {
			n = rest
		}
		endBeat := beat + float64(n)*bps

		e.dispatcher.Dispatch(beat, endBeat, g)

		ctx := plugin.Context{
			BlockSize:      n,
			SampleRate:     e.cfg.SampleRate,
			BPM:            bpm,
			BeatPos:        beat,
			BeatsPerSample: bps,
		}
		g.Process(&ctx)

		gL, gR := g.OutputL(), g.OutputR()
		if gL != nil && gR != nil {
			for i := 0; i < n; i++ {
				out = append(out, gL[i], gR[i])
			}
		} else {
			out = append(out, make([]float32, n*2)...)
		}

		beat = endBeat
		done += n
	}

	return out, nil
}

// RenderOfflineWAV renders and wraps the PCM in a 16-bit RIFF/WAVE
// container.
func (e *Engine) RenderOfflineWAV(tailSeconds, durationBeats float64) ([]byte, error) {
	pcm, err := e.RenderOffline(tailSeconds, durationBeats)
	if err != nil {
		return nil, err
	}
	return encodeWAV(pcm, int(e.cfg.SampleRate), 2)
}
