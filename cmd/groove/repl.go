package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mrdg/groove/dub"
	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/plugin"
)

func repl(eng *engine.Engine) error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		quit, err := eval(eng, line)
		if err != nil {
			fmt.Println(err)
		}
		if quit {
			return nil
		}
	}
}

func eval(eng *engine.Engine, line string) (quit bool, err error) {
	cmd, err := dub.Parse(line)
	if err != nil {
		return false, err
	}
	name := string(cmd.Name)
	for _, c := range commands {
		if name != c.name {
			continue
		}
		if c.arity < 0 {
			if min := -(c.arity + 1); len(cmd.Args) < min {
				return false, fmt.Errorf("%s: need at least %v arguments, got %v",
					c.name, min, len(cmd.Args))
			}
		} else if len(cmd.Args) != c.arity {
			return false, fmt.Errorf("%s: wrong number of arguments: want %v, got %v",
				c.name, c.arity, len(cmd.Args))
		}
		return c.run(eng, cmd.Args)
	}
	return false, fmt.Errorf("unknown command: %s", name)
}

type command struct {
	name  string
	run   func(*engine.Engine, []dub.Node) (bool, error)
	arity int // exact count; -(n+1) means at least n
}

var commands = []command{
	{"play", playCmd, 0},
	{"stop", stopCmd, 0},
	{"seek", seekCmd, 1},
	{"pos", posCmd, 0},
	{"bpm", bpmCmd, 1},
	{"loop", loopCmd, -2},
	{"set", setCmd, 3},
	{"note", noteCmd, -3},
	{"off", offCmd, 2},
	{"silence", silenceCmd, -1},
	{"graph", graphCmd, 1},
	{"schedule", scheduleCmd, 1},
	{"render", renderCmd, -2},
	{"config", configCmd, 2},
	{"data", dataCmd, 2},
	{"monitor", monitorCmd, 2},
	{"plugins", pluginsCmd, 0},
	{"quit", quitCmd, 0},
}

func playCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	eng.Play()
	return false, nil
}

func stopCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	eng.Stop()
	return false, nil
}

func seekCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	beat, ok := dub.Num(args[0])
	if !ok {
		return false, fmt.Errorf("seek: beat must be a number")
	}
	eng.Seek(beat)
	return false, nil
}

func posCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	fmt.Printf("beat %.3f playing %v\n", eng.CurrentBeat(), eng.IsPlaying())
	return false, nil
}

func bpmCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	bpm, ok := dub.Num(args[0])
	if !ok {
		return false, fmt.Errorf("bpm: want a number")
	}
	eng.SetBPM(bpm)
	return false, nil
}

// loop off | loop <start> <end>
func loopCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	if s, ok := dub.Text(args[0]); ok && s == "off" {
		eng.DisableLoop()
		return false, nil
	}
	if len(args) != 2 {
		return false, fmt.Errorf("loop: want 'off' or start and end beats")
	}
	start, ok1 := dub.Num(args[0])
	end, ok2 := dub.Num(args[1])
	if !ok1 || !ok2 {
		return false, fmt.Errorf("loop: start and end must be numbers")
	}
	eng.SetLoop(start, end)
	return false, nil
}

func setCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	node, ok1 := dub.Text(args[0])
	param, ok2 := dub.Text(args[1])
	value, ok3 := dub.Num(args[2])
	if !ok1 || !ok2 || !ok3 {
		return false, fmt.Errorf("set: want node, param, value")
	}
	eng.SetParam(node, param, float32(value))
	return false, nil
}

// note <node> <pitch> [velocity]
func noteCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	node, _ := dub.Text(args[0])
	pitch, ok := dub.Num(args[1])
	if !ok {
		return false, fmt.Errorf("note: pitch must be a number")
	}
	velocity := 100.0
	if len(args) > 2 {
		velocity, _ = dub.Num(args[2])
	}
	eng.PreviewNoteOn(node, 0, int(pitch), int(velocity))
	return false, nil
}

func offCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	node, _ := dub.Text(args[0])
	pitch, ok := dub.Num(args[1])
	if !ok {
		return false, fmt.Errorf("off: pitch must be a number")
	}
	eng.PreviewNoteOff(node, 0, int(pitch))
	return false, nil
}

// silence [node]
func silenceCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	if len(args) == 0 {
		eng.PreviewAllNotesOff("")
		eng.AllNotesOff()
		return false, nil
	}
	node, _ := dub.Text(args[0])
	eng.PreviewAllNotesOff(node)
	return false, nil
}

func graphCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	path, _ := dub.Text(args[0])
	return false, setGraphFromFile(eng, path)
}

func scheduleCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	path, _ := dub.Text(args[0])
	return false, setScheduleFromFile(eng, path)
}

// render <file> [beats]
func renderCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	path, _ := dub.Text(args[0])
	beats := 0.0
	if len(args) > 1 {
		beats, _ = dub.Num(args[1])
	}
	return false, renderToFile(eng, path, 1.0, beats)
}

// config <node> <json>
func configCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	node, _ := dub.Text(args[0])
	cfg, ok := dub.Text(args[1])
	if !ok {
		return false, fmt.Errorf("config: want a JSON string")
	}
	return false, eng.SetNodeConfig(node, []byte(cfg))
}

func dataCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	node, _ := dub.Text(args[0])
	port, _ := dub.Text(args[1])
	data, err := eng.NodeData(node, port)
	if err != nil {
		return false, err
	}
	fmt.Println(data)
	return false, nil
}

func monitorCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	node, _ := dub.Text(args[0])
	port, _ := dub.Text(args[1])
	v, err := eng.ReadMonitor(node, port)
	if err != nil {
		return false, err
	}
	fmt.Printf("%g\n", v)
	return false, nil
}

func pluginsCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	for _, reg := range plugin.All() {
		desc := plugin.FindDescriptor(reg.ID)
		if desc == nil {
			continue
		}
		fmt.Printf("%-24s %-12s %s\n", desc.ID, desc.Category, desc.DisplayName)
	}
	return false, nil
}

func quitCmd(eng *engine.Engine, args []dub.Node) (bool, error) {
	return true, nil
}
