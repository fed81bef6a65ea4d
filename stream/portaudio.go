package stream

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// OpenPortAudio opens the default output device through portaudio. The
// library hands the callback non-interleaved channel slices, which is the
// exact shape Process wants.
func OpenPortAudio(cfg Config, cb Process) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: %w", err)
	}
	s, err := portaudio.OpenDefaultStream(0, 2, cfg.SampleRate, cfg.BlockSize, func(out [][]float32) {
		cb(out)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio open: %w", err)
	}
	return &paStream{stream: s}, nil
}

type paStream struct {
	stream *portaudio.Stream
}

func (p *paStream) Start() error {
	return p.stream.Start()
}

func (p *paStream) Close() error {
	p.stream.Stop()
	err := p.stream.Close()
	portaudio.Terminate()
	return err
}
