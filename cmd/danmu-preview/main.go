// Package main plays the layout of a danmaku XML file in a window,
// so the effect of canvas settings can be checked without a video player.
//
// Usage:
//
//	go run ./cmd/danmu-preview [flags] <file.xml>
//
// Flags:
//
//	--config <file>   YAML config file (same format as danmu2ass)
//	--font <file>     TTF/OTF font used for rendering (default: built-in M+ font)
//
// Controls:
//
//	Space        - Pause/resume
//	Left/Right   - Seek 5 seconds
//	Up/Down      - Change speed
//	G            - Toggle lane guides
//	Q/Escape     - Quit
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gonewx/danmu2ass/pkg/config"
	"github.com/gonewx/danmu2ass/pkg/convert"
	"github.com/gonewx/danmu2ass/pkg/preview"
	"github.com/gonewx/danmu2ass/pkg/preview/window"
)

var (
	configFlag  = flag.String("config", "", "YAML config file")
	fontFlag    = flag.String("font", "", "Font file used for rendering")
	verboseFlag = flag.Bool("verbose", false, "Enable verbose logging (default off)")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file.xml>\n", os.Args[0])
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := config.DefaultAppConfig()
	if *configFlag != "" {
		loaded, err := config.LoadAppConfig(*configFlag, nil)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	tl, err := preview.LoadTimeline(path, convert.Options{
		Config:   cfg.Canvas,
		Denylist: cfg.Denylist,
		Verbose:  *verboseFlag,
	})
	if err != nil {
		log.Fatalf("Failed to load %s: %v", path, err)
	}
	log.Printf("Loaded %d danmaku, %.1f seconds", tl.Len(), tl.End())

	w, err := window.New(tl, filepath.Base(path), *fontFlag)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	if err := w.Run(); err != nil {
		log.Fatal(err)
	}
}
