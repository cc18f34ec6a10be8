// Package main is the danmu2ass command: it converts bilibili danmaku
// (XML files, folders of XML files, or videos fetched by URL/BV/ss/ep id)
// into ASS subtitles.
//
// Usage:
//
//	danmu2ass [flags] <input>...
//
// Inputs:
//
//	video.xml                                   - single XML file
//	./danmaku/                                  - every .xml file in the folder
//	BV1z44y1E7m6 / https://www.bilibili.com/video/BV1z44y1E7m6?p=2
//	ss28296 / https://www.bilibili.com/bangumi/play/ss28296
//	ep473502 / https://www.bilibili.com/bangumi/play/ep473502
//
// Settings are resolved in this order (later wins): built-in defaults,
// settings saved by -save-settings, the YAML config file, command-line flags.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gonewx/danmu2ass/internal/bilibili"
	"github.com/gonewx/danmu2ass/pkg/config"
	"github.com/gonewx/danmu2ass/pkg/convert"
	"github.com/gonewx/danmu2ass/pkg/settings"
)

var (
	configFlag      = flag.String("config", "", "YAML config file (default: ./danmu2ass.yaml if present)")
	outputFlag      = flag.String("o", "", "Output .ass file (single file input) or output directory")
	widthFlag       = flag.Uint("width", 0, "Screen width")
	heightFlag      = flag.Uint("height", 0, "Screen height")
	fontFlag        = flag.String("font", "", "Font name")
	fontSizeFlag    = flag.Uint("font-size", 0, "Font size, 0 uses each danmaku's own size")
	widthRatioFlag  = flag.Float64("width-ratio", 0, "Width ratio used to estimate danmaku length")
	durationFlag    = flag.Float64("duration", 0, "Seconds a danmaku stays on screen")
	laneSizeFlag    = flag.Uint("lane-size", 0, "Height of one lane")
	floatPctFlag    = flag.Float64("float-percentage", 0, "Max fraction of the screen height used by scrolling danmaku")
	opacityFlag     = flag.Float64("opacity", 0, "Danmaku opacity (0.0 - 1.0)")
	outlineFlag     = flag.Float64("outline", 0, "Outline width")
	boldFlag        = flag.Bool("bold", true, "Bold text")
	timeOffsetFlag  = flag.Float64("time-offset", 0, "Timeline offset in seconds, >0 delays danmaku")
	maxDelayFlag    = flag.Float64("max-delay", 0, "Max seconds a danmaku may be delayed before it is dropped")
	denylistFlag    = flag.String("denylist", "", "File with one denied keyword per line")
	parallelFlag    = flag.Int("parallelism", 0, "Files converted concurrently in folder mode")
	saveFlag        = flag.Bool("save-settings", false, "Remember the canvas settings of this run")
	noSettingsFlag  = flag.Bool("no-settings", false, "Ignore saved settings")
	verboseFlag     = flag.Bool("verbose", false, "Enable verbose logging (default off)")
	pauseFlag       = flag.Bool("pause", false, "Wait for Enter before exiting")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <input>...\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	err := run()
	if *pauseFlag {
		if err != nil {
			fmt.Fprintf(os.Stderr, "\n发生错误：%v\n", err)
		}
		fmt.Println("按回车键继续")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("no input given")
	}

	var sm *settings.SettingsManager
	if *noSettingsFlag {
		sm, _ = settings.NewSettingsManager(nil)
	} else {
		sm = settings.Open()
	}

	cfg, err := loadConfig(sm.GetSettings())
	if err != nil {
		return err
	}
	if *verboseFlag {
		log.Printf("[Main] Canvas: %+v", cfg.Canvas)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := &processor{
		config: cfg,
		client: bilibili.NewClient(),
		opts: convert.Options{
			Config:   cfg.Canvas,
			Denylist: cfg.Denylist,
			Verbose:  cfg.Verbose,
		},
	}
	p.client.Verbose = cfg.Verbose

	for _, arg := range flag.Args() {
		if err := p.process(ctx, arg); err != nil {
			return fmt.Errorf("failed to process %s: %w", arg, err)
		}
	}

	if cfg.SaveSettings {
		sm.SetCanvas(cfg.Canvas)
		sm.SetDenylist(config.MergeDenylist(cfg.Denylist))
		if err := sm.Save(); err != nil {
			log.Printf("[Main] Warning: %v", err)
		}
	}
	return nil
}

// loadConfig layers saved settings, the config file and explicitly set flags.
func loadConfig(saved *settings.Settings) (*config.AppConfig, error) {
	base := config.DefaultAppConfig()
	base.Canvas = saved.Canvas
	base.Denylist = config.MergeDenylist(saved.Denylist)

	path := *configFlag
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigFile); err == nil {
			path = config.DefaultConfigFile
		}
	}

	cfg := base
	if path != "" {
		log.Printf("[Main] Loading config file %s", path)
		loaded, err := config.LoadAppConfig(path, base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.Output = *outputFlag
		case "width":
			cfg.Canvas.Width = uint32(*widthFlag)
		case "height":
			cfg.Canvas.Height = uint32(*heightFlag)
		case "font":
			cfg.Canvas.Font = *fontFlag
		case "font-size":
			cfg.Canvas.FontSize = uint32(*fontSizeFlag)
		case "width-ratio":
			cfg.Canvas.WidthRatio = *widthRatioFlag
		case "duration":
			cfg.Canvas.Duration = *durationFlag
		case "lane-size":
			cfg.Canvas.LaneSize = uint32(*laneSizeFlag)
		case "float-percentage":
			cfg.Canvas.FloatPercentage = *floatPctFlag
		case "opacity":
			cfg.Canvas.Opacity = *opacityFlag
		case "outline":
			cfg.Canvas.Outline = *outlineFlag
		case "bold":
			cfg.Canvas.Bold = *boldFlag
		case "time-offset":
			cfg.Canvas.TimeOffset = *timeOffsetFlag
		case "max-delay":
			cfg.Canvas.MaxDelay = *maxDelayFlag
		case "denylist":
			words, err := config.LoadDenylist(*denylistFlag)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Denylist = config.MergeDenylist(cfg.Denylist, words)
		case "parallelism":
			cfg.Parallelism = *parallelFlag
		case "save-settings":
			cfg.SaveSettings = *saveFlag
		case "verbose":
			cfg.Verbose = *verboseFlag
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
