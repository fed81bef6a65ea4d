package graph

// bufferPool holds the audio buffers for one activated graph in a single
// contiguous allocation. Index 0 is the silent buffer, zero-filled at the
// start of every block and bound to every unconnected input. No allocation
// or resize happens after activation.
type bufferPool struct {
	data  []float32
	block int
	n     int
}

func newBufferPool(n, blockSize int) *bufferPool {
	return &bufferPool{
		data:  make([]float32, n*blockSize),
		block: blockSize,
		n:     n,
	}
}

// get returns the buffer at index, valid for the lifetime of the activated
// graph. An out-of-range index yields the silent buffer so a stale index
// degrades to a silent block instead of taking down the audio thread.
func (p *bufferPool) get(index int) []float32 {
	if index < 0 || index >= p.n {
		checkf(false, "buffer index %d out of range (pool size %d)", index, p.n)
		index = 0
	}
	off := index * p.block
	return p.data[off : off+p.block : off+p.block]
}

func (p *bufferPool) count() int { return p.n }
