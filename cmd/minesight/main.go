// Command minesight analyzes one board photo without a window: it writes the
// highlighted board as PNG, prints the safe moves and statistics, and
// optionally writes the debug gallery as HTML.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/04pril/minesight/internal/analysis"
	"github.com/04pril/minesight/internal/config"
	"github.com/04pril/minesight/internal/render"
	"github.com/04pril/minesight/internal/session"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	analyzerURL := flag.String("analyzer", "", "analyzer base URL (overrides analyzer.url)")
	out := flag.String("out", "board.png", "where to write the highlighted board")
	galleryPath := flag.String("gallery", "", "write the debug gallery as HTML to this file")
	expand := flag.Bool("expand", false, "list every debug image instead of section headers")
	levelStr := flag.String("log-level", "", "debug|info|warn|error (overrides log.level)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] board-photo\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *analyzerURL != "" {
		cfg.Analyzer.URL = *analyzerURL
	}
	if *levelStr != "" {
		cfg.Log.Level = *levelStr
	}
	lvl, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	th, err := cfg.Theme()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	r, err := render.NewRenderer(cfg.Render.Size, th)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctl := session.New(analysis.NewClient(cfg.Analyzer.URL, cfg.Analyzer.Timeout, logger), r, session.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	})

	if path := flag.Arg(0); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		ctl.Select(&analysis.Upload{Filename: filepath.Base(path), Data: data})
	}

	fmt.Fprintln(os.Stderr, "Analyzing...")
	if ctl.Submit(context.Background()) != session.Success {
		fmt.Fprintln(os.Stderr, "error:", ctl.Views().ErrorMessage)
		os.Exit(1)
	}
	v := ctl.Views()

	if err := writeBoard(*out, v); err != nil {
		logger.Error("write board", "path", *out, "err", err)
		os.Exit(1)
	}

	fmt.Println("Safe moves:")
	for _, e := range v.MoveList {
		fmt.Println("  " + e.String())
	}
	fmt.Println("Statistics:")
	for _, line := range v.Stats.Lines() {
		fmt.Println("  " + line)
	}

	if !v.DebugVisible() {
		return
	}
	v.Gallery.SetExpanded(*expand)
	fmt.Println("Debug trace:")
	var sb strings.Builder
	_ = v.Gallery.WriteText(&sb)
	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Println("  " + line)
	}
	if *galleryPath != "" {
		f, err := os.Create(*galleryPath)
		if err != nil {
			logger.Error("write gallery", "path", *galleryPath, "err", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := v.Gallery.WriteHTML(f); err != nil {
			logger.Error("write gallery", "path", *galleryPath, "err", err)
			os.Exit(1)
		}
	}
}

func writeBoard(path string, v session.Views) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, v.Surface); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
