package engine

import (
	"math"

	"github.com/mrdg/groove/graph"
	"github.com/mrdg/groove/plugin"
)

// processBlock is the audio callback: drain commands, apply pending loop and
// schedule swaps, dispatch events for the block's beat range, evaluate the
// graph, copy its stereo output, then publish the new beat and advance the
// epoch.
func (e *Engine) processBlock(left, right []float32) {
	frames := len(left)

	e.cmdMu.Lock()
	e.cmdScratch = append(e.cmdScratch[:0], e.cmds...)
	e.cmds = e.cmds[:0]
	e.cmdMu.Unlock()

	for _, c := range e.cmdScratch {
		switch c.kind {
		case cmdPlay:
			e.playing.Store(true)
		case cmdStop:
			e.playing.Store(false)
			e.allNotesOff()
		case cmdSeek:
			e.dispatcher.Seek(c.arg)
			e.currentBeat.Store(math.Float64bits(c.arg))
			e.allNotesOff()
		case cmdAllNotesOff:
			e.allNotesOff()
		}
	}

	if ls := e.pendingLoop.Swap(nil); ls != nil {
		e.activeLoop = ls
	}

	e.dispatcher.CheckPending()

	g := e.active.Load()
	bpm := e.BPM()
	beat := e.CurrentBeat()
	bps := bpm / 60 / e.cfg.SampleRate

	if !e.playing.Load() || g == nil {
		// Run the graph anyway so preview notes sound, but hold the beat.
		if g != nil {
			ctx := plugin.Context{
				BlockSize:      frames,
				SampleRate:     e.cfg.SampleRate,
				BPM:            bpm,
				BeatPos:        beat,
				BeatsPerSample: bps,
			}
			g.Process(&ctx)
			copyOutput(g, left, right)
		} else {
			zeroBlock(left, right)
		}
		e.epoch.Add(1)
		return
	}

	endBeat := beat + float64(frames)*bps

	e.dispatcher.Dispatch(beat, endBeat, g)

	ctx := plugin.Context{
		BlockSize:      frames,
		SampleRate:     e.cfg.SampleRate,
		BPM:            bpm,
		BeatPos:        beat,
		BeatsPerSample: bps,
	}
	g.Process(&ctx)
	copyOutput(g, left, right)

	e.currentBeat.Store(math.Float64bits(endBeat))

	arrLen := e.dispatcher.ArrangementLength()
	if e.activeLoop != nil && e.activeLoop.enabled {
		if endBeat >= e.activeLoop.end {
			e.dispatcher.Seek(e.activeLoop.start)
			e.currentBeat.Store(math.Float64bits(e.activeLoop.start))
		}
	} else if arrLen > 0 && endBeat >= arrLen {
		e.playing.Store(false)
		e.allNotesOff()
		e.currentBeat.Store(math.Float64bits(0))
	}

	e.epoch.Add(1)
}

func (e *Engine) allNotesOff() {
	if g := e.active.Load(); g != nil {
		g.EachNode(func(n graph.Node) {
			n.AllNotesOff(-1)
		})
	}
}

func copyOutput(g *graph.Graph, left, right []float32) {
	gL, gR := g.OutputL(), g.OutputR()
	if gL == nil || gR == nil {
		zeroBlock(left, right)
		return
	}
	copy(left, gL)
	copy(right, gR)
}

func zeroBlock(left, right []float32) {
	for i := range left {
		left[i] = 0
		right[i] = 0
	}
}
