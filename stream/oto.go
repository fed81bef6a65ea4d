package stream

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ebitengine/oto/v3"
)

// OpenOto opens an output stream through oto. Oto pulls interleaved bytes
// from an io.Reader, so the reader runs the callback a block at a time and
// interleaves into whatever chunk size the driver asks for.
func OpenOto(cfg Config, cb Process) (Stream, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(cfg.SampleRate),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("oto: %w", err)
	}
	<-ready

	src := &otoSource{
		cb:      cb,
		left:    make([]float32, cfg.BlockSize),
		right:   make([]float32, cfg.BlockSize),
		scratch: make([]byte, cfg.BlockSize*8),
	}
	src.out = [][]float32{src.left, src.right}

	return &otoStream{player: ctx.NewPlayer(src)}, nil
}

type otoStream struct {
	player *oto.Player
}

func (o *otoStream) Start() error {
	o.player.Play()
	return nil
}

func (o *otoStream) Close() error {
	return o.player.Close()
}

// otoSource adapts the block callback to oto's pull model. leftover holds
// interleaved bytes from a block that didn't fit the last read.
type otoSource struct {
	cb          Process
	left, right []float32
	out         [][]float32
	scratch     []byte // one block of interleaved bytes, reused
	leftover    []byte // unread tail of scratch
}

func (s *otoSource) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.leftover) == 0 {
			s.cb(s.out)
			s.leftover = s.interleave()
		}
		c := copy(p[n:], s.leftover)
		s.leftover = s.leftover[c:]
		n += c
	}
	return n, nil
}

func (s *otoSource) interleave() []byte {
	for i := range s.left {
		binary.LittleEndian.PutUint32(s.scratch[i*8:], math.Float32bits(s.left[i]))
		binary.LittleEndian.PutUint32(s.scratch[i*8+4:], math.Float32bits(s.right[i]))
	}
	return s.scratch
}
