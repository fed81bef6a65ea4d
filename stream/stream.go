// Package stream is the engine's only coupling to audio drivers: open a
// two-channel float output at a sample rate and block size, feed it from a
// callback, stop and close on request. Two drivers are provided; picking one
// is the host's job.
package stream

// Config describes the output stream to open.
type Config struct {
	SampleRate float64
	BlockSize  int
	Device     int // -1 = default output device
}

// Process fills one block of output. out[0] is the left channel, out[1] the
// right, each BlockSize samples. It runs on the driver's audio thread.
type Process func(out [][]float32)

// Stream is a started output stream.
type Stream interface {
	Start() error
	Close() error
}

// Opener opens a stream for a config and callback. Drivers in this package
// and test fakes satisfy it.
type Opener func(cfg Config, cb Process) (Stream, error)
