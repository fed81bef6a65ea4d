// Command groove hosts the audio engine: it loads a signal graph and an
// event schedule from JSON files, plays them on a sound card or renders them
// to a WAV file, and takes live commands from a REPL.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/stream"

	_ "github.com/mrdg/groove/plugins"
)

func main() {
	var (
		graphFile = flag.String("graph", "", "graph description JSON file")
		schedFile = flag.String("schedule", "", "event schedule JSON file")
		driver    = flag.String("driver", "portaudio", "audio driver: portaudio or oto")
		srate     = flag.Float64("rate", 44100, "sample rate")
		block     = flag.Int("block", 512, "block size in frames")
		render    = flag.String("render", "", "render to WAV file instead of playing live")
		tail      = flag.Float64("tail", 1.0, "render tail in seconds")
		beats     = flag.Float64("beats", 0, "minimum render length in beats")
	)
	flag.Parse()

	var opener stream.Opener
	switch *driver {
	case "portaudio":
		opener = stream.OpenPortAudio
	case "oto":
		opener = stream.OpenOto
	default:
		log.Fatalf("unknown driver: %s", *driver)
	}

	eng := engine.New(engine.Config{
		SampleRate:   *srate,
		BlockSize:    *block,
		OutputDevice: -1,
	}, opener)

	if *graphFile != "" {
		if err := setGraphFromFile(eng, *graphFile); err != nil {
			log.Fatal(err)
		}
	}
	if *schedFile != "" {
		if err := setScheduleFromFile(eng, *schedFile); err != nil {
			log.Fatal(err)
		}
	}

	if *render != "" {
		if err := renderToFile(eng, *render, *tail, *beats); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := eng.Open(); err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	if err := repl(eng); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setGraphFromFile(eng *engine.Engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return eng.SetGraph(data)
}

func setScheduleFromFile(eng *engine.Engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return eng.SetSchedule(data)
}

func renderToFile(eng *engine.Engine, path string, tail, beats float64) error {
	wav, err := eng.RenderOfflineWAV(tail, beats)
	if err != nil {
		return err
	}
	return os.WriteFile(path, wav, 0644)
}
