package graph

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mrdg/groove/plugin"
)

// entry is the per-node bookkeeping: the node, its declared ports, the pool
// indices feeding each input and output port, and the persistent buffer
// views rebuilt once at activation.
type entry struct {
	node  Node
	ports []PortDecl

	inIdx  []int // pool index per input port, in declared order
	outIdx []int // pool index per output port

	in  []PortBuffer
	out []PortBuffer

	initParams []paramValue

	// Control inputs fed by upstream control outputs, applied before the
	// node processes.
	wires []controlWire

	adapter *Adapter // non-nil when node is a plugin adapter
}

// controlWire copies one node's control output into a downstream node's
// control input slot each block, after the source has processed.
type controlWire struct {
	src     *entry
	srcSlot int
	dstSlot int
}

// eventRoute fans one adapter event-output port out to downstream nodes.
type eventRoute struct {
	portID  string
	targets []Node
}

// Graph owns the node set, connection list, evaluation order and buffer
// pool. It is built and activated on the control thread; after hand-off the
// audio thread only calls Process, SetParam-adjacent atomics excepted.
type Graph struct {
	nodes []*entry
	index map[string]int
	conns []Connection
	order []int // eval order, indices into nodes

	pool      *bufferPool
	blockSize int
	activated bool

	routes map[*entry][]eventRoute

	outL, outR []float32
}

// New builds a graph from a description. Node types resolve against the
// plugin registry first (by id, then with the "builtin." prefix); the
// remaining built-in node types are track_source and control_source.
// Numeric params are deferred until after activation so plugin buffers
// exist; string params are delivered to Configure immediately.
func New(desc *Desc) (*Graph, error) {
	g := &Graph{
		index:  make(map[string]int),
		conns:  desc.Connections,
		routes: make(map[*entry][]eventRoute),
	}

	for i := range desc.Nodes {
		nd := &desc.Nodes[i]
		if _, dup := g.index[nd.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", nd.ID)
		}

		numeric, configs, err := splitParams(nd)
		if err != nil {
			return nil, err
		}
		if nd.SF2Path != "" {
			configs = append(configs, configValue{"sf2_path", nd.SF2Path})
		}
		if nd.LV2URI != "" {
			configs = append(configs, configValue{"lv2_uri", nd.LV2URI})
		}
		if nd.SamplePath != "" {
			configs = append(configs, configValue{"sample_path", nd.SamplePath})
		}

		node, err := makeNode(nd, configs)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nd.ID, err)
		}

		if strings.Contains(nd.Type, "note_gate") {
			numeric = append(numeric,
				paramValue{"pitch_lo", float32(nd.PitchLo)},
				paramValue{"pitch_hi", float32(nd.PitchHi)},
				paramValue{"mode", float32(nd.GateMode)})
		}

		e := &entry{
			node:       node,
			ports:      node.Ports(),
			initParams: numeric,
		}
		e.adapter, _ = node.(*Adapter)

		g.index[nd.ID] = len(g.nodes)
		g.nodes = append(g.nodes, e)
	}

	// A second connection into the same input port is ambiguous.
	seen := make(map[string]bool)
	for _, c := range g.conns {
		key := c.ToNode + "/" + c.ToPort
		if seen[key] {
			return nil, fmt.Errorf("multiple connections into input %s", key)
		}
		seen[key] = true
	}

	return g, nil
}

func makeNode(nd *NodeDesc, configs []configValue) (Node, error) {
	p, ok := plugin.Create(nd.Type)
	if !ok {
		p, ok = plugin.Create("builtin." + nd.Type)
	}
	if ok {
		p.Configure("channel_count", strconv.Itoa(nd.ChannelCount))
		for _, cv := range configs {
			p.Configure(cv.key, cv.value)
		}
		return NewAdapter(nd.ID, p), nil
	}

	switch nd.Type {
	case "track_source":
		return NewTrackSource(nd.ID), nil
	case "control_source":
		return NewControlSource(nd.ID), nil
	}
	return nil, fmt.Errorf("unknown node type: %s", nd.Type)
}

// Activate computes the evaluation order, wires pool buffers to ports,
// activates every node and applies its initial params, and registers
// downstream fan-out targets on each track source.
func (g *Graph) Activate(sampleRate float64, maxBlockSize int) {
	g.blockSize = maxBlockSize

	if !g.topoSort() {
		// Non-fatal: declaration order still plays linear chains.
		log.Printf("graph: cycle detected, falling back to declaration order")
		g.order = g.order[:0]
		for i := range g.nodes {
			g.order = append(g.order, i)
		}
	}

	g.assignBuffers()

	for _, e := range g.nodes {
		e.node.Activate(sampleRate, maxBlockSize)
		for _, pv := range e.initParams {
			e.node.SetParam(pv.name, pv.value)
		}
	}

	// Mark adapter control inputs that have a live upstream connection.
	for _, c := range g.conns {
		i, ok := g.index[c.ToNode]
		if !ok {
			continue
		}
		if a := g.nodes[i].adapter; a != nil {
			a.setControlConnected(c.ToPort)
		}
	}

	// Hand each track source the unique destinations of its outgoing
	// connections.
	for _, e := range g.nodes {
		src, ok := e.node.(*TrackSource)
		if !ok {
			continue
		}
		var downstream []Node
		for _, c := range g.conns {
			if c.FromNode != src.ID() {
				continue
			}
			i, ok := g.index[c.ToNode]
			if !ok {
				continue
			}
			dest := g.nodes[i].node
			dupe := false
			for _, d := range downstream {
				if d == dest {
					dupe = true
					break
				}
			}
			if !dupe {
				downstream = append(downstream, dest)
			}
		}
		src.setDownstream(downstream)
	}

	g.buildEventRoutes()
	g.cacheOutput()
	g.activated = true
}

// Deactivate retires every node. Safe to call on a graph that never
// activated; nodes tolerate Deactivate without a prior Activate.
func (g *Graph) Deactivate() {
	for _, e := range g.nodes {
		e.node.Deactivate()
	}
	g.activated = false
}

// topoSort runs Kahn's algorithm over the connection DAG, dropping
// self-loops. Returns false when a cycle keeps the order incomplete.
func (g *Graph) topoSort() bool {
	adj := make([][]int, len(g.nodes))
	inDegree := make([]int, len(g.nodes))

	for _, c := range g.conns {
		if c.FromNode == c.ToNode {
			continue
		}
		from, ok1 := g.index[c.FromNode]
		to, ok2 := g.index[c.ToNode]
		if !ok1 || !ok2 {
			continue
		}
		adj[from] = append(adj[from], to)
		inDegree[to]++
	}

	var queue []int
	for i := range g.nodes {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	g.order = g.order[:0]
	for len(queue) > 0 {
		n := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		g.order = append(g.order, n)
		for _, m := range adj[n] {
			inDegree[m]--
			if inDegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	return len(g.order) == len(g.nodes)
}

// assignBuffers gives every output port a unique pool index (index 0 is the
// silent buffer), binds inputs to their source's index or to 0 when
// unconnected, and builds the persistent per-node buffer views.
func (g *Graph) assignBuffers() {
	bufCount := 1
	for _, e := range g.nodes {
		var inCount, outCount int
		for _, p := range e.ports {
			if p.Output {
				outCount++
			} else {
				inCount++
			}
		}
		e.inIdx = make([]int, inCount)
		e.outIdx = make([]int, outCount)
		for i := range e.outIdx {
			e.outIdx[i] = bufCount
			bufCount++
		}
	}

	g.pool = newBufferPool(bufCount, g.blockSize)

	// "node/port" → pool index for every output port.
	portBuf := make(map[string]int)
	// "node/port" → (entry, output slot) for control wiring.
	type outRef struct {
		e    *entry
		slot int
	}
	outRefs := make(map[string]outRef)

	for _, e := range g.nodes {
		outI := 0
		for _, p := range e.ports {
			if !p.Output {
				continue
			}
			key := e.node.ID() + "/" + p.Name
			portBuf[key] = e.outIdx[outI]
			outRefs[key] = outRef{e, outI}
			outI++
		}
	}

	for _, c := range g.conns {
		srcKey := c.FromNode + "/" + c.FromPort
		srcBuf, ok := portBuf[srcKey]
		if !ok {
			continue
		}
		i, ok := g.index[c.ToNode]
		if !ok {
			continue
		}
		to := g.nodes[i]
		inI := 0
		for _, p := range to.ports {
			if p.Output {
				continue
			}
			if p.Name == c.ToPort {
				to.inIdx[inI] = srcBuf
				if p.Type == Control {
					ref := outRefs[srcKey]
					to.wires = append(to.wires, controlWire{
						src: ref.e, srcSlot: ref.slot, dstSlot: inI,
					})
				}
				break
			}
			inI++
		}
	}

	// Persistent buffer views: audio pointers are stable for the graph
	// lifetime, control values are refreshed through wires each block.
	for _, e := range g.nodes {
		e.in = make([]PortBuffer, 0, len(e.inIdx))
		e.out = make([]PortBuffer, 0, len(e.outIdx))
		inI, outI := 0, 0
		for _, p := range e.ports {
			pb := PortBuffer{Type: p.Type}
			if p.Output {
				pb.Audio = g.pool.get(e.outIdx[outI])
				e.out = append(e.out, pb)
				outI++
			} else {
				pb.Audio = g.pool.get(e.inIdx[inI])
				if p.Type == Control && e.inIdx[inI] == 0 {
					pb.Control = p.Default
				}
				e.in = append(e.in, pb)
				inI++
			}
		}
	}
}

// buildEventRoutes resolves, once, the downstream targets of every adapter
// event-output port so Process never walks the connection list.
func (g *Graph) buildEventRoutes() {
	for _, e := range g.nodes {
		if e.adapter == nil {
			continue
		}
		for _, ep := range e.adapter.events {
			if !ep.output {
				continue
			}
			var targets []Node
			for _, c := range g.conns {
				if c.FromNode != e.node.ID() || c.FromPort != ep.portID {
					continue
				}
				if i, ok := g.index[c.ToNode]; ok {
					targets = append(targets, g.nodes[i].node)
				}
			}
			if len(targets) > 0 {
				g.routes[e] = append(g.routes[e], eventRoute{portID: ep.portID, targets: targets})
			}
		}
	}
}

// cacheOutput records the stereo output of the conventional mixer node.
func (g *Graph) cacheOutput() {
	i, ok := g.index["mixer"]
	if !ok {
		return
	}
	e := g.nodes[i]
	outI := 0
	for _, p := range e.ports {
		if !p.Output {
			continue
		}
		switch p.Name {
		case "audio_out_L":
			g.outL = g.pool.get(e.outIdx[outI])
		case "audio_out_R":
			g.outR = g.pool.get(e.outIdx[outI])
		}
		outI++
	}
}

// Process evaluates one block on the audio thread: zero the silent buffer,
// run every node in evaluation order, then route any event outputs to
// downstream nodes. Because the order is topological, events delivered to a
// downstream node take effect within the same block.
func (g *Graph) Process(ctx *plugin.Context) {
	if !g.activated {
		return
	}

	zero(g.pool.get(0))

	for _, i := range g.order {
		e := g.nodes[i]

		for _, w := range e.wires {
			e.in[w.dstSlot].Control = w.src.out[w.srcSlot].Control
		}

		e.node.Process(ctx, e.in, e.out)

		if e.adapter == nil {
			continue
		}
		for _, r := range g.routes[e] {
			events := e.adapter.eventOut(r.portID)
			if len(events) == 0 {
				continue
			}
			for _, target := range r.targets {
				deliver(target, events)
			}
		}
	}
}

// deliver decodes MIDI records into downstream event hooks.
func deliver(n Node, events []plugin.MidiEvent) {
	for _, ev := range events {
		ch := int(ev.Channel)
		switch ev.Status & 0xF0 {
		case 0x90:
			if ev.Data2 > 0 {
				n.NoteOn(ch, int(ev.Data1), int(ev.Data2))
			} else {
				n.NoteOff(ch, int(ev.Data1))
			}
		case 0x80:
			n.NoteOff(ch, int(ev.Data1))
		case 0xE0:
			n.PitchBend(ch, int(ev.Data1)|int(ev.Data2)<<7)
		case 0xC0:
			n.ProgramChange(ch, 0, int(ev.Data1))
		}
	}
}

// OutputL returns the left channel of the graph's stereo output, or nil if
// the graph has no mixer.
func (g *Graph) OutputL() []float32 { return g.outL }

// OutputR returns the right channel of the graph's stereo output.
func (g *Graph) OutputR() []float32 { return g.outR }

// SetParam forwards a parameter write to the addressed node. Unknown node
// ids are a silent no-op.
func (g *Graph) SetParam(nodeID, name string, value float32) {
	if n := g.FindNode(nodeID); n != nil {
		n.SetParam(name, value)
	}
}

// FindNode looks a node up by id.
func (g *Graph) FindNode(id string) Node {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.nodes[i].node
}

// EachNode visits every node in evaluation order.
func (g *Graph) EachNode(f func(Node)) {
	for _, i := range g.order {
		f(g.nodes[i].node)
	}
}

// FirstTrackSource returns the first track source in evaluation order, or
// nil.
func (g *Graph) FirstTrackSource() *TrackSource {
	for _, i := range g.order {
		if ts, ok := g.nodes[i].node.(*TrackSource); ok {
			return ts
		}
	}
	return nil
}

// EvalOrder returns the node ids in evaluation order.
func (g *Graph) EvalOrder() []string {
	ids := make([]string, 0, len(g.order))
	for _, i := range g.order {
		ids = append(ids, g.nodes[i].node.ID())
	}
	return ids
}
