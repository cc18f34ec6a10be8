// Package main plays the layout of a danmaku XML file in the terminal.
// Each lane is one terminal row; horizontal positions are scaled to the
// terminal width.
//
// Usage:
//
//	go run ./cmd/danmu-term [--config danmu2ass.yaml] <file.xml>
//
// Controls: Space pause, Left/Right seek, Up/Down speed, Esc/q quit.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gonewx/danmu2ass/pkg/config"
	"github.com/gonewx/danmu2ass/pkg/convert"
	"github.com/gonewx/danmu2ass/pkg/preview"
)

var configFlag = flag.String("config", "", "YAML config file")

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [--config file] <file.xml>\n", os.Args[0])
		os.Exit(2)
	}

	cfg := config.DefaultAppConfig()
	if *configFlag != "" {
		loaded, err := config.LoadAppConfig(*configFlag, nil)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	tl, err := preview.LoadTimeline(flag.Arg(0), convert.Options{Config: cfg.Canvas, Denylist: cfg.Denylist})
	if err != nil {
		log.Fatalf("Failed to load %s: %v", flag.Arg(0), err)
	}

	term, err := preview.OpenTerminal(tl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer term.Close()

	term.Run()
}
