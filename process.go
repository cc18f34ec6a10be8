package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gonewx/danmu2ass/internal/bilibili"
	"github.com/gonewx/danmu2ass/pkg/config"
	"github.com/gonewx/danmu2ass/pkg/convert"
)

type processor struct {
	config *config.AppConfig
	client *bilibili.Client
	opts   convert.Options
}

func (p *processor) process(ctx context.Context, arg string) error {
	in, err := bilibili.ParseInput(arg)
	if err != nil {
		return err
	}
	log.Printf("[Main] Input %s is a %s", arg, in.Kind)

	switch in.Kind {
	case bilibili.InputFile:
		report, err := convert.ConvertFile(in.Path, p.config.Output, p.opts)
		if err != nil {
			return err
		}
		log.Printf("[Main] Wrote %s (%d danmaku)", outputFor(in.Path, p.config.Output), report.Placed)
		return nil

	case bilibili.InputFolder:
		reports, err := convert.ConvertFolder(ctx, in.Path, p.config.Output, p.opts, p.config.Parallelism)
		log.Printf("[Main] Converted %d files in %s", len(reports), in.Path)
		return err

	default:
		return p.processRemote(ctx, in)
	}
}

func (p *processor) processRemote(ctx context.Context, in bilibili.Input) error {
	videos, err := p.client.Resolve(ctx, in)
	if err != nil {
		return err
	}

	outDir := p.config.Output
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, v := range videos {
		elems, err := p.client.DanmakuForVideo(ctx, v.CID, v.DurationSec)
		if err != nil {
			return fmt.Errorf("failed to download danmaku for %s: %w", v.Title, err)
		}
		items, skipped := bilibili.ToDanmaku(elems)
		if skipped > 0 {
			log.Printf("[Main] Skipped %d unsupported danmaku in %s", skipped, v.Title)
		}

		path := filepath.Join(outDir, sanitizeFilename(v.Title)+".ass")
		if err := p.writeRemote(path, v.Title, convert.NewSliceSource(items)); err != nil {
			return err
		}
		log.Printf("[Main] Wrote %s", path)
	}
	return nil
}

func (p *processor) writeRemote(path, title string, src convert.Source) error {
	return convert.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := convert.Convert(src, title, w, p.opts)
		return err
	})
}

func outputFor(in, out string) string {
	if out != "" {
		return out
	}
	return convert.OutputPath(in)
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// sanitizeFilename replaces characters that are invalid in file names on common platforms.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filenameReplacer.Replace(name))
	if name == "" {
		return "danmaku"
	}
	return name
}
