package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/04pril/minesight/internal/analysis"
	"github.com/04pril/minesight/internal/config"
	"github.com/04pril/minesight/internal/render"
	"github.com/04pril/minesight/internal/session"
	"github.com/04pril/minesight/internal/webui"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "listen address (overrides web.listen)")
	analyzerURL := flag.String("analyzer", "", "analyzer base URL (overrides analyzer.url)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Web.Listen = *addr
	}
	if *analyzerURL != "" {
		cfg.Analyzer.URL = *analyzerURL
	}

	lvl, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	th, err := cfg.Theme()
	if err != nil {
		logger.Error("theme", "err", err)
		os.Exit(1)
	}
	r, err := render.NewRenderer(cfg.Render.Size, th)
	if err != nil {
		logger.Error("renderer", "err", err)
		os.Exit(1)
	}
	client := analysis.NewClient(cfg.Analyzer.URL, cfg.Analyzer.Timeout, logger)
	ctl := session.New(client, r, session.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		PreviewWidth:   cfg.Preview.MaxWidth,
		PreviewHeight:  cfg.Preview.MaxHeight,
		PreviewPixels:  cfg.Preview.MaxPixels,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Web.Listen,
		Handler:           webui.New(ctl, cfg.MaxUploadBytes(), logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Web.Listen, "analyzer", cfg.Analyzer.URL, "theme", th.Name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
