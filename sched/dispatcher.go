package sched

import (
	"sync/atomic"

	"github.com/mrdg/groove/graph"
)

// NodeLookup resolves event targets by node id. *graph.Graph satisfies it.
type NodeLookup interface {
	FindNode(id string) graph.Node
}

// Dispatcher owns the current schedule and a cursor into it. The control
// thread hands over new schedules through the pending slot; the audio thread
// takes them at the top of each block. Dispatch walks the sorted event list
// and invokes the matching hook on the addressed node.
type Dispatcher struct {
	pending atomic.Pointer[Schedule]
	current *Schedule
	idx     int
}

// SwapSchedule stores next in the pending slot and returns the schedule it
// displaced, if any. Called from the control thread.
func (d *Dispatcher) SwapSchedule(next *Schedule) *Schedule {
	return d.pending.Swap(next)
}

// CheckPending takes a pending schedule if one is waiting, makes it current
// and resets the cursor. It returns the schedule it replaced so the caller
// can release it; nil means nothing was pending. Idempotent once the slot is
// empty, so the control thread may also call it right after SwapSchedule to
// make the new schedule observable without waiting for an audio block.
func (d *Dispatcher) CheckPending() *Schedule {
	next := d.pending.Swap(nil)
	if next == nil {
		return nil
	}
	old := d.current
	d.current = next
	d.idx = 0
	return old
}

// Dispatch delivers every event with beat in [startBeat, endBeat) to its
// target node. Events addressing unknown node ids are dropped; the engine
// does not halt for a stale event.
func (d *Dispatcher) Dispatch(startBeat, endBeat float64, g NodeLookup) {
	if d.current == nil || g == nil {
		return
	}
	events := d.current.events
	for d.idx < len(events) {
		e := &events[d.idx]
		if e.Beat >= endBeat {
			break
		}
		if e.Beat >= startBeat {
			if node := g.FindNode(e.NodeID); node != nil {
				switch e.Type {
				case NoteOn:
					node.NoteOn(int(e.Channel), int(e.Pitch), int(e.Velocity))
				case NoteOff:
					node.NoteOff(int(e.Channel), int(e.Pitch))
				case Program:
					node.ProgramChange(int(e.Channel), int(e.Velocity), int(e.Pitch))
				case Volume:
					node.ChannelVolume(int(e.Channel), int(e.Pitch))
				case Bend:
					node.PitchBend(int(e.Channel), int(e.Pitch)|int(e.Velocity)<<7)
				case Control:
					node.PushControl(e.Beat, e.Value)
				}
			}
		}
		d.idx++
	}
}

// Seek moves the cursor to the first event with beat >= beat. A linear scan
// is fine; schedules are at most thousands of events and seeks happen at
// human rate.
func (d *Dispatcher) Seek(beat float64) {
	if d.current == nil {
		d.idx = 0
		return
	}
	events := d.current.events
	for i := range events {
		if events[i].Beat >= beat {
			d.idx = i
			return
		}
	}
	d.idx = len(events)
}

// ArrangementLength is the current schedule's total length in beats, or 0
// with no schedule.
func (d *Dispatcher) ArrangementLength() float64 {
	if d.current == nil {
		return 0
	}
	return d.current.totalLength
}
