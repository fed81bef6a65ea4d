// Package engine composes the signal graph, the event dispatcher and the
// stream abstraction into the realtime engine. Public operations run on the
// control thread; the stream driver calls back into processBlock on a single
// audio thread. Hand-offs between the two are lock-free except for a short
// mutex around the command queue.
package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrdg/groove/graph"
	"github.com/mrdg/groove/sched"
	"github.com/mrdg/groove/stream"
)

// Config fixes the stream format for the lifetime of the engine.
type Config struct {
	SampleRate   float64
	BlockSize    int
	OutputDevice int // -1 = default
}

type loopState struct {
	start   float64
	end     float64
	enabled bool
}

type cmdKind int

const (
	cmdPlay cmdKind = iota
	cmdStop
	cmdSeek
	cmdAllNotesOff
)

type command struct {
	kind cmdKind
	arg  float64
}

// Engine owns the stream, the dispatcher, the transport state and the
// current and retiring graphs.
type Engine struct {
	cfg    Config
	opener stream.Opener
	strm   stream.Stream

	dispatcher sched.Dispatcher

	// The audio thread acquire-loads active; the control thread
	// release-stores it while holding mu, which also guards the owned and
	// retiring references.
	active      atomic.Pointer[graph.Graph]
	mu          sync.Mutex
	owned       *graph.Graph
	retiring    *graph.Graph
	retireEpoch uint64

	// epoch advances at the end of every audio block; a retiring graph is
	// freed only after it has moved past the value recorded at retirement.
	epoch atomic.Uint64

	currentBeat atomic.Uint64 // float64 bits
	playing     atomic.Bool
	bpm         atomic.Uint64 // float64 bits

	pendingLoop atomic.Pointer[loopState]
	activeLoop  *loopState // audio thread only

	cmdMu      sync.Mutex
	cmds       []command
	cmdScratch []command
}

// New creates an engine. The opener is invoked by Open; pass
// stream.OpenPortAudio for the default driver, or a fake for tests.
func New(cfg Config, opener stream.Opener) *Engine {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 512
	}
	e := &Engine{
		cfg:        cfg,
		opener:     opener,
		cmdScratch: make([]command, 0, 16),
	}
	e.bpm.Store(math.Float64bits(120))
	return e
}

// SampleRate returns the configured sample rate.
func (e *Engine) SampleRate() float64 { return e.cfg.SampleRate }

// BlockSize returns the configured block size.
func (e *Engine) BlockSize() int { return e.cfg.BlockSize }

// Open acquires the output stream and starts the audio callback. Opening an
// already-open engine is a no-op.
func (e *Engine) Open() error {
	if e.strm != nil {
		return nil
	}
	cfg := stream.Config{
		SampleRate: e.cfg.SampleRate,
		BlockSize:  e.cfg.BlockSize,
		Device:     e.cfg.OutputDevice,
	}
	s, err := e.opener(cfg, func(out [][]float32) {
		e.processBlock(out[0], out[1])
	})
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if err := s.Start(); err != nil {
		s.Close()
		return fmt.Errorf("start stream: %w", err)
	}
	e.strm = s
	return nil
}

// IsOpen reports whether the stream is running.
func (e *Engine) IsOpen() bool { return e.strm != nil }

// Close stops the stream and releases both owned and retiring graphs.
func (e *Engine) Close() {
	e.Stop()
	if e.strm != nil {
		e.strm.Close()
		e.strm = nil
	}
	// The audio thread is gone; neither graph can be in use.
	e.active.Store(nil)
	e.mu.Lock()
	if e.owned != nil {
		e.owned.Deactivate()
		e.owned = nil
	}
	if e.retiring != nil {
		e.retiring.Deactivate()
		e.retiring = nil
	}
	e.mu.Unlock()
}

// SetGraph parses, builds and activates a graph from a JSON description and
// swaps it into the active position. The previously active graph retires
// with a one-generation lag: the next SetGraph (or Close) frees it, after the
// audio thread has completed a full block under the newer graph.
func (e *Engine) SetGraph(data []byte) error {
	desc, err := graph.ParseDesc(data)
	if err != nil {
		return err
	}
	g, err := graph.New(desc)
	if err != nil {
		return err
	}
	g.Activate(e.cfg.SampleRate, e.cfg.BlockSize)

	if desc.BPM > 0 {
		e.SetBPM(desc.BPM)
	}

	e.mu.Lock()
	e.reapRetiring()
	e.retiring = e.owned
	e.retireEpoch = e.epoch.Load()
	e.owned = g
	e.active.Store(g)
	e.mu.Unlock()
	return nil
}

// reapRetiring deactivates the retiring graph once the audio thread has
// finished a block under its successor. Callers hold mu.
func (e *Engine) reapRetiring() {
	if e.retiring == nil {
		return
	}
	if e.strm != nil {
		// Wait for the epoch to advance past the value recorded when the
		// graph retired. One block is a few ms; the deadline only guards
		// against a stalled stream.
		deadline := time.Now().Add(250 * time.Millisecond)
		for e.epoch.Load() == e.retireEpoch && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}
	e.retiring.Deactivate()
	e.retiring = nil
}

// SetSchedule parses an event batch and hands it to the dispatcher. The
// pending slot is taken on this thread right away so the new arrangement
// length is observable before the next audio block; CheckPending is
// idempotent, so the audio thread's own call is then a no-op.
func (e *Engine) SetSchedule(data []byte) error {
	s, err := sched.Parse(data)
	if err != nil {
		return err
	}
	e.dispatcher.SwapSchedule(s)
	e.dispatcher.CheckPending()
	return nil
}

// ArrangementLength is the current schedule's length in beats.
func (e *Engine) ArrangementLength() float64 {
	return e.dispatcher.ArrangementLength()
}

// Play starts the transport at the current beat.
func (e *Engine) Play() {
	e.dispatcher.CheckPending()
	e.playing.Store(true)
	e.sendCmd(command{kind: cmdPlay})
}

// Stop halts the transport and silences scheduled notes on the next block.
func (e *Engine) Stop() {
	e.sendCmd(command{kind: cmdStop})
}

// Seek moves the transport to the given beat on the next block.
func (e *Engine) Seek(beat float64) {
	e.sendCmd(command{kind: cmdSeek, arg: beat})
}

// AllNotesOff silences every node on the next block.
func (e *Engine) AllNotesOff() {
	e.sendCmd(command{kind: cmdAllNotesOff})
}

// SetLoop installs a loop region; the audio thread picks it up at the next
// block boundary.
func (e *Engine) SetLoop(start, end float64) {
	e.pendingLoop.Swap(&loopState{start: start, end: end, enabled: true})
}

// DisableLoop clears the loop region.
func (e *Engine) DisableLoop() {
	e.pendingLoop.Swap(&loopState{})
}

// SetBPM changes the tempo for subsequent blocks.
func (e *Engine) SetBPM(bpm float64) {
	e.bpm.Store(math.Float64bits(bpm))
}

// BPM returns the current tempo.
func (e *Engine) BPM() float64 {
	return math.Float64frombits(e.bpm.Load())
}

// CurrentBeat is the transport position published by the audio thread.
func (e *Engine) CurrentBeat() float64 {
	return math.Float64frombits(e.currentBeat.Load())
}

// IsPlaying reports the transport state.
func (e *Engine) IsPlaying() bool { return e.playing.Load() }

// SetParam forwards a parameter write to a node of the active graph. The
// value lands in a per-port atomic and takes effect no later than the block
// after the one in flight.
func (e *Engine) SetParam(nodeID, param string, value float32) {
	if g := e.active.Load(); g != nil {
		g.SetParam(nodeID, param, value)
	}
}

func (e *Engine) sendCmd(c command) {
	e.cmdMu.Lock()
	e.cmds = append(e.cmds, c)
	e.cmdMu.Unlock()
}

func (e *Engine) findTrackSource(nodeID string) *graph.TrackSource {
	g := e.active.Load()
	if g == nil {
		return nil
	}
	if nodeID != "" {
		ts, _ := g.FindNode(nodeID).(*graph.TrackSource)
		return ts
	}
	return g.FirstTrackSource()
}

// PreviewNoteOn injects a note outside the schedule. It routes to the
// addressed track source, or the first one when nodeID is empty, and is
// independent of the transport.
func (e *Engine) PreviewNoteOn(nodeID string, channel, pitch, velocity int) {
	if ts := e.findTrackSource(nodeID); ts != nil {
		ts.PreviewNoteOn(channel, pitch, velocity)
	}
}

// PreviewNoteOff releases a preview note.
func (e *Engine) PreviewNoteOff(nodeID string, channel, pitch int) {
	if ts := e.findTrackSource(nodeID); ts != nil {
		ts.PreviewNoteOff(channel, pitch)
	}
}

// PreviewAllNotesOff silences preview notes on the addressed track source,
// or on all of them when nodeID is empty.
func (e *Engine) PreviewAllNotesOff(nodeID string) {
	g := e.active.Load()
	if g == nil {
		return
	}
	if nodeID != "" {
		if ts, ok := g.FindNode(nodeID).(*graph.TrackSource); ok {
			ts.PreviewAllNotesOff()
		}
		return
	}
	g.EachNode(func(n graph.Node) {
		if ts, ok := n.(*graph.TrackSource); ok {
			ts.PreviewAllNotesOff()
		}
	})
}

// SetNodeConfig applies live config changes to an existing node. Keys that
// would change the graph shape are rejected with an error telling the caller
// to rebuild.
func (e *Engine) SetNodeConfig(nodeID string, config []byte) error {
	g := e.active.Load()
	if g == nil {
		return fmt.Errorf("no active graph")
	}
	node := g.FindNode(nodeID)
	if node == nil {
		return fmt.Errorf("unknown node: %s", nodeID)
	}

	var cfg map[string]json.RawMessage
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	adapter, ok := node.(*graph.Adapter)
	if !ok {
		return fmt.Errorf("node type does not support set_node_config")
	}

	for key, raw := range cfg {
		switch key {
		case "channel_count", "sf2_path", "lv2_uri", "sample_path":
			return fmt.Errorf("%s changes require a set_graph call", key)
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("unsupported config key %q", key)
		}
		adapter.SetParam(key, float32(f))
	}
	return nil
}

// NodeData returns editor data for a plugin port, e.g. a curve or a history
// buffer. The payload format is plugin-defined.
func (e *Engine) NodeData(nodeID, portID string) (string, error) {
	g := e.active.Load()
	if g == nil {
		return "", fmt.Errorf("no active graph")
	}
	adapter, ok := g.FindNode(nodeID).(*graph.Adapter)
	if !ok {
		return "", fmt.Errorf("unknown node: %s", nodeID)
	}
	return adapter.Plugin().GraphData(portID), nil
}

// ReadMonitor samples a Monitor-role port of a plugin node.
func (e *Engine) ReadMonitor(nodeID, portID string) (float32, error) {
	g := e.active.Load()
	if g == nil {
		return 0, fmt.Errorf("no active graph")
	}
	adapter, ok := g.FindNode(nodeID).(*graph.Adapter)
	if !ok {
		return 0, fmt.Errorf("unknown node: %s", nodeID)
	}
	return adapter.Plugin().ReadMonitor(portID), nil
}
