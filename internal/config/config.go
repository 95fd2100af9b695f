// Package config loads minesight settings from YAML.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/04pril/minesight/internal/board"
	"github.com/04pril/minesight/internal/preview"
	"github.com/04pril/minesight/internal/render"
)

// Config is the top-level configuration.
type Config struct {
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Render   RenderConfig   `yaml:"render"`
	Preview  PreviewConfig  `yaml:"preview"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

// AnalyzerConfig locates the external board analyzer.
type AnalyzerConfig struct {
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxUploadMB int           `yaml:"max_upload_mb"`
}

// RenderConfig controls the board surface.
type RenderConfig struct {
	Size        int               `yaml:"size"`  // pixels, square
	Theme       string            `yaml:"theme"` // classic | dark
	DigitColors map[int]string    `yaml:"digit_colors"`
	Highlight   string            `yaml:"highlight"` // #rrggbbaa
	Colors      map[string]string `yaml:"colors"`    // closed | open | grid | label | background
}

// PreviewConfig bounds the selected-image preview.
type PreviewConfig struct {
	MaxWidth  int   `yaml:"max_width"`
	MaxHeight int   `yaml:"max_height"`
	MaxPixels int64 `yaml:"max_pixels"` // declared width*height above which no preview is decoded
}

// WebConfig is used by the browser front end.
type WebConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Analyzer: AnalyzerConfig{
			URL:         "http://localhost:5000",
			Timeout:     60 * time.Second,
			MaxUploadMB: 16,
		},
		Render: RenderConfig{
			Size:  400,
			Theme: "classic",
		},
		Preview: PreviewConfig{MaxWidth: 320, MaxHeight: 320, MaxPixels: preview.DefaultMaxPixels},
		Web:     WebConfig{Listen: ":8090"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if c.Analyzer.URL == "" {
		errs = append(errs, errors.New("analyzer.url is required"))
	}
	if c.Analyzer.Timeout < 0 {
		errs = append(errs, errors.New("analyzer.timeout must not be negative"))
	}
	if c.Render.Size%board.Size != 0 || c.Render.Size/board.Size < render.MinCellSize {
		errs = append(errs, fmt.Errorf("render.size %d must be a multiple of %d and at least %d",
			c.Render.Size, board.Size, board.Size*render.MinCellSize))
	}
	if c.Preview.MaxPixels < 0 {
		errs = append(errs, errors.New("preview.max_pixels must not be negative"))
	}
	if _, err := c.Theme(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// MaxUploadBytes converts the upload limit to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Analyzer.MaxUploadMB) << 20
}

// Theme resolves the named theme with color overrides applied.
func (c *Config) Theme() (render.Theme, error) {
	th, ok := render.ThemeByName(c.Render.Theme)
	if !ok {
		return render.Theme{}, fmt.Errorf("render.theme %q is unknown", c.Render.Theme)
	}
	if len(c.Render.DigitColors) > 0 {
		digits := make(map[int]color.Color, len(c.Render.DigitColors))
		for d, s := range c.Render.DigitColors {
			clr, err := ParseColor(s)
			if err != nil {
				return render.Theme{}, fmt.Errorf("render.digit_colors[%d]: %w", d, err)
			}
			digits[d] = clr
		}
		th = th.WithDigits(digits)
	}
	if c.Render.Highlight != "" {
		clr, err := ParseColor(c.Render.Highlight)
		if err != nil {
			return render.Theme{}, fmt.Errorf("render.highlight: %w", err)
		}
		th.Highlight = clr
	}
	for name, s := range c.Render.Colors {
		clr, err := ParseColor(s)
		if err != nil {
			return render.Theme{}, fmt.Errorf("render.colors.%s: %w", name, err)
		}
		switch strings.ToLower(name) {
		case "closed":
			th.Closed = clr
		case "open":
			th.Open = clr
		case "grid":
			th.Grid = clr
		case "label":
			th.Label = clr
		case "background":
			th.Background = clr
		default:
			return render.Theme{}, fmt.Errorf("render.colors.%s: unknown color", name)
		}
	}
	return th, nil
}

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa.
func ParseColor(s string) (color.Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return nil, fmt.Errorf("color %q: want #rgb, #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level %q is unknown", s)
}
