package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/04pril/minesight/internal/analysis"
	"github.com/04pril/minesight/internal/config"
	"github.com/04pril/minesight/internal/render"
	"github.com/04pril/minesight/internal/session"
)

const (
	outerPadding   = 12
	topPanelHeight = 56
	panelWidth     = 320
	minPanelHeight = 520
	lineHeight     = 16
	maxThumbHeight = 200
)

// chrome colors the window around the board surface.
type chrome struct {
	BG       color.Color
	Panel    color.Color
	Light    color.Color
	Dark     color.Color
	Button   color.Color
	Text     color.Color
	TextSoft color.Color
	Accent   color.Color
	Error    color.Color
	Overlay  color.Color
}

var chromes = map[string]chrome{
	"Classic": {
		BG:       rgb(192, 192, 192),
		Panel:    rgb(214, 214, 214),
		Light:    rgb(255, 255, 255),
		Dark:     rgb(128, 128, 128),
		Button:   rgb(192, 192, 192),
		Text:     rgb(12, 12, 12),
		TextSoft: rgb(60, 60, 60),
		Accent:   rgb(32, 128, 255),
		Error:    rgb(190, 20, 20),
		Overlay:  color.RGBA{0, 0, 0, 120},
	},
	"Dark": {
		BG:       rgb(34, 36, 42),
		Panel:    rgb(48, 51, 60),
		Light:    rgb(78, 82, 93),
		Dark:     rgb(18, 20, 26),
		Button:   rgb(62, 66, 78),
		Text:     rgb(245, 245, 245),
		TextSoft: rgb(200, 200, 210),
		Accent:   rgb(107, 199, 255),
		Error:    rgb(255, 98, 98),
		Overlay:  color.RGBA{0, 0, 0, 140},
	},
}

func chromeFor(th render.Theme) chrome {
	if c, ok := chromes[th.Name]; ok {
		return c
	}
	return chromes["Classic"]
}

type viewer struct {
	cfg    *config.Config
	ctl    *session.Controller
	logger *slog.Logger
	ctx    context.Context

	themeIdx int
	prefs    prefs

	boardSize  int
	fontMain   font.Face
	buttonRect image.Rectangle
	showHelp   bool
	cursor     int // selected debug section

	revision uint64
	boardImg *ebiten.Image
	thumb    *ebiten.Image
}

func newViewer(ctx context.Context, cfg *config.Config, ctl *session.Controller, boardSize int, logger *slog.Logger) *viewer {
	v := &viewer{
		cfg:       cfg,
		ctl:       ctl,
		logger:    logger,
		ctx:       ctx,
		boardSize: boardSize,
		fontMain:  basicfont.Face7x13,
		prefs:     loadPrefs(),
	}
	for i, th := range render.Themes {
		if strings.EqualFold(th.Name, cfg.Render.Theme) {
			v.themeIdx = i
		}
	}
	w, h := v.Layout(0, 0)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("minesight")
	return v
}

func (v *viewer) Layout(_, _ int) (int, int) {
	return v.boardSize + panelWidth + outerPadding*3, topPanelHeight + max(v.boardSize, minPanelHeight) + outerPadding
}

func (v *viewer) theme() render.Theme {
	return render.Themes[v.themeIdx]
}

func (v *viewer) cycleTheme() {
	v.themeIdx = (v.themeIdx + 1) % len(render.Themes)
	v.cfg.Render.Theme = v.theme().Name
	th, err := v.cfg.Theme()
	if err == nil {
		err = v.ctl.Restyle(th)
	}
	if err != nil {
		v.logger.Warn("restyle", "theme", v.cfg.Render.Theme, "err", err)
		return
	}
	v.prefs.Theme = th.Name
	savePrefs(v.prefs)
}

func (v *viewer) selectFile(up *analysis.Upload) {
	v.ctl.Select(up)
	v.cursor = 0
	if pe := v.ctl.Views().PreviewErr; pe != nil {
		v.logger.Warn("preview", "file", up.Filename, "err", pe)
	}
}

// handleDrop selects the first regular file dropped onto the window.
func (v *viewer) handleDrop() {
	fsys := ebiten.DroppedFiles()
	if fsys == nil {
		return
	}
	up, err := firstFile(fsys)
	if err != nil {
		v.logger.Warn("dropped file", "err", err)
		return
	}
	if up != nil {
		v.selectFile(up)
	}
}

func firstFile(fsys fs.FS) (*analysis.Upload, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, err
		}
		return &analysis.Upload{Filename: e.Name(), Data: data}, nil
	}
	return nil, nil
}

func (v *viewer) handleKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		v.showHelp = !v.showHelp
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		v.cycleTheme()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyA) {
		v.ctl.SubmitAsync(v.ctx)
	}

	gal := v.ctl.Views().Gallery
	if !gal.Visible() {
		return
	}
	n := len(gal.Sections)
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) {
		v.cursor = clamp(v.cursor-1, 0, n-1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) {
		v.cursor = clamp(v.cursor+1, 0, n-1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		v.ctl.ToggleSection(v.cursor)
	}
}

func (v *viewer) Update() error {
	v.handleDrop()
	v.handleKeys()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		mx, my := ebiten.CursorPosition()
		if pointInRect(mx, my, v.buttonRect) {
			v.ctl.SubmitAsync(v.ctx)
		} else if v.showHelp {
			v.showHelp = false
		}
	}

	v.ctl.Pump()
	v.sync()
	return nil
}

// sync re-uploads the board and preview bitmaps after the views changed.
func (v *viewer) sync() {
	views := v.ctl.Views()
	if views.Revision == v.revision {
		return
	}
	v.revision = views.Revision

	if v.boardImg != nil {
		v.boardImg.Deallocate()
		v.boardImg = nil
	}
	if views.Results && views.Surface != nil {
		v.boardImg = ebiten.NewImageFromImage(views.Surface)
	}

	if v.thumb != nil {
		v.thumb.Deallocate()
		v.thumb = nil
	}
	if views.PreviewImage != nil {
		v.thumb = ebiten.NewImageFromImage(views.PreviewImage.Pixels)
	}
	if views.Gallery == nil || v.cursor >= len(views.Gallery.Sections) {
		v.cursor = 0
	}
}

func (v *viewer) Draw(screen *ebiten.Image) {
	ch := chromeFor(v.theme())
	views := v.ctl.Views()
	screen.Fill(ch.BG)
	windowW, windowH := v.Layout(0, 0)

	// top panel
	drawRaisedRect(screen, outerPadding-2, 8, windowW-(outerPadding-2)*2, topPanelHeight-16, ch)
	text.Draw(screen, "minesight", v.fontMain, outerPadding+8, 28, ch.Text)
	text.Draw(screen, fmt.Sprintf("Theme:%s  F1: help", v.theme().Name), v.fontMain, outerPadding+8, 42, ch.TextSoft)

	bw, bh := 96, 26
	bx := windowW - outerPadding - 8 - bw
	v.buttonRect = image.Rect(bx, 15, bx+bw, 15+bh)
	drawRaisedRect(screen, bx, 15, bw, bh, ch)
	drawTextCentered(screen, "Analyze", v.fontMain, bx, 15+4, bw, ch.Text)

	// board
	boardX, boardY := outerPadding, topPanelHeight
	drawSunkenRect(screen, boardX-2, boardY-2, v.boardSize+4, v.boardSize+4, ch)
	if v.boardImg != nil {
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(boardX), float64(boardY))
		screen.DrawImage(v.boardImg, op)
	} else {
		drawTextCentered(screen, "No analysis yet", v.fontMain, boardX, boardY+v.boardSize/2-8, v.boardSize, ch.TextSoft)
	}

	// side panel
	px := boardX + v.boardSize + outerPadding
	drawSunkenRect(screen, px-2, boardY-2, panelWidth+4, windowH-boardY-outerPadding+4, ch)
	v.drawPanel(screen, views, px+8, boardY+16, windowH-outerPadding-8, ch)

	if views.Analyzing {
		drawBanner(screen, "Analyzing...", v.boardSize, ch)
	}
	if v.showHelp {
		drawOverlayPanel(screen, "HELP", []string{
			"Drop a board photo onto the window to select it",
			"Enter / A / Analyze button: analyze the selected photo",
			"Up/Down: choose a debug cell | Space: expand or collapse",
			"T: Theme | F1: Toggle Help",
		}, ch)
	}
}

func (v *viewer) drawPanel(screen *ebiten.Image, views session.Views, x, y, bottom int, ch chrome) {
	line := func(s string, clr color.Color) bool {
		if y > bottom {
			return false
		}
		text.Draw(screen, s, v.fontMain, x, y, clr)
		y += lineHeight
		return true
	}

	switch {
	case views.PreviewImage != nil:
		pi := views.PreviewImage
		line(fmt.Sprintf("%s  %dx%d %s", pi.Filename, pi.Source.X, pi.Source.Y, pi.Format), ch.Text)
		if v.thumb != nil {
			op := &ebiten.DrawImageOptions{}
			op.GeoM.Translate(float64(x), float64(y-8))
			screen.DrawImage(v.thumb, op)
			y += v.thumb.Bounds().Dy() + 4
		}
	case views.Preview == session.FileSelected:
		line("Selected file cannot be previewed", ch.TextSoft)
	default:
		line("Drop a board photo here", ch.TextSoft)
	}

	if views.ErrorVisible {
		y += 4
		for _, s := range wrap(views.ErrorMessage, (panelWidth-16)/7) {
			line(s, ch.Error)
		}
	}
	if !views.Results {
		return
	}

	y += 4
	line("Safe moves", ch.Accent)
	for _, e := range views.MoveList {
		if !line(e.String(), ch.Text) {
			return
		}
	}
	y += 4
	line("Statistics", ch.Accent)
	for _, s := range views.Stats.Lines() {
		line(s, ch.Text)
	}

	if !views.DebugVisible() {
		return
	}
	y += 4
	line("Debug trace", ch.Accent)
	for i, sec := range views.Gallery.Sections {
		mark := "+"
		if sec.Expanded {
			mark = "-"
		}
		prefix := "  "
		if i == v.cursor {
			prefix = "> "
		}
		if !line(fmt.Sprintf("%s%s %s (%d)", prefix, mark, sec.Title, len(sec.Images)), ch.Text) {
			return
		}
		if !sec.Expanded {
			continue
		}
		for _, it := range sec.Images {
			if !line("      "+it.Caption+": "+it.URL, ch.TextSoft) {
				return
			}
		}
	}
}

// wrap splits s into lines of at most width runes on word boundaries.
func wrap(s string, width int) []string {
	var out []string
	cur := ""
	for _, w := range strings.Fields(s) {
		if cur != "" && len([]rune(cur))+1+len([]rune(w)) > width {
			out = append(out, cur)
			cur = ""
		}
		if cur != "" {
			cur += " "
		}
		cur += w
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func drawOverlayPanel(screen *ebiten.Image, title string, lines []string, ch chrome) {
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	ebitenutil.DrawRect(screen, 0, 0, float64(w), float64(h), ch.Overlay)
	pw := min(460, w-36)
	ph := min(180, h-36)
	px, py := (w-pw)/2, (h-ph)/2
	drawSunkenRect(screen, px, py, pw, ph, ch)
	ebitenutil.DrawRect(screen, float64(px+6), float64(py+6), float64(pw-12), float64(ph-12), ch.Panel)

	ff := basicfont.Face7x13
	text.Draw(screen, title, ff, px+16, py+24, ch.Text)
	y := py + 50
	for _, ln := range lines {
		text.Draw(screen, ln, ff, px+16, y, ch.Text)
		y += 20
		if y > py+ph-18 {
			break
		}
	}
}

func drawBanner(screen *ebiten.Image, label string, boardSize int, ch chrome) {
	x := outerPadding + (boardSize-220)/2
	y := topPanelHeight + boardSize/2 - 15
	ebitenutil.DrawRect(screen, float64(x), float64(y), 220, 30, ch.Overlay)
	drawTextCentered(screen, label, basicfont.Face7x13, x, y+8, 220, ch.Accent)
}

func drawRaisedRect(screen *ebiten.Image, x, y, w, h int, ch chrome) {
	ebitenutil.DrawRect(screen, float64(x), float64(y), float64(w), float64(h), ch.Button)
	vector.StrokeLine(screen, float32(x), float32(y), float32(x+w), float32(y), 2, ch.Light, false)
	vector.StrokeLine(screen, float32(x), float32(y), float32(x), float32(y+h), 2, ch.Light, false)
	vector.StrokeLine(screen, float32(x+w), float32(y), float32(x+w), float32(y+h), 2, ch.Dark, false)
	vector.StrokeLine(screen, float32(x), float32(y+h), float32(x+w), float32(y+h), 2, ch.Dark, false)
}

func drawSunkenRect(screen *ebiten.Image, x, y, w, h int, ch chrome) {
	ebitenutil.DrawRect(screen, float64(x), float64(y), float64(w), float64(h), ch.Panel)
	vector.StrokeLine(screen, float32(x), float32(y), float32(x+w), float32(y), 2, ch.Dark, false)
	vector.StrokeLine(screen, float32(x), float32(y), float32(x), float32(y+h), 2, ch.Dark, false)
	vector.StrokeLine(screen, float32(x+w), float32(y), float32(x+w), float32(y+h), 2, ch.Light, false)
	vector.StrokeLine(screen, float32(x), float32(y+h), float32(x+w), float32(y+h), 2, ch.Light, false)
}

func drawTextCentered(screen *ebiten.Image, s string, f font.Face, x, y, w int, clr color.Color) {
	b := text.BoundString(f, s)
	tw := b.Dx()
	text.Draw(screen, s, f, x+(w-tw)/2, y+13, clr)
}

func rgb(r, g, b uint8) color.Color {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func pointInRect(x, y int, r image.Rectangle) bool {
	return x >= r.Min.X && x <= r.Max.X && y >= r.Min.Y && y <= r.Max.Y
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// prefs survive between runs.
type prefs struct {
	Theme string `json:"theme,omitempty"`
}

func prefsFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "minesight_prefs.json"
	}
	base := filepath.Join(dir, "minesight")
	_ = os.MkdirAll(base, 0o755)
	return filepath.Join(base, "prefs.json")
}

func loadPrefs() prefs {
	var out prefs
	data, err := os.ReadFile(prefsFilePath())
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return prefs{}
	}
	return out
}

func savePrefs(p prefs) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(prefsFilePath(), data, 0o644)
}

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	analyzerURL := flag.String("analyzer", "", "analyzer base URL (overrides analyzer.url)")
	levelStr := flag.String("log-level", "", "debug|info|warn|error (overrides log.level)")
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

	// a saved theme wins over the configured one
	if p := loadPrefs(); p.Theme != "" {
		if _, ok := render.ThemeByName(p.Theme); ok {
			cfg.Render.Theme = p.Theme
		}
	}
	th, err := cfg.Theme()
	if err != nil {
		logger.Error("theme", "err", err)
		os.Exit(2)
	}
	r, err := render.NewRenderer(cfg.Render.Size, th)
	if err != nil {
		logger.Error("renderer", "err", err)
		os.Exit(2)
	}

	ctl := session.New(analysis.NewClient(cfg.Analyzer.URL, cfg.Analyzer.Timeout, logger), r, session.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		PreviewWidth:   min(cfg.Preview.MaxWidth, panelWidth-16),
		PreviewHeight:  min(cfg.Preview.MaxHeight, maxThumbHeight),
		PreviewPixels:  cfg.Preview.MaxPixels,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v := newViewer(ctx, cfg, ctl, r.Size(), logger)
	if path := flag.Arg(0); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("open image", "path", path, "err", err)
			os.Exit(1)
		}
		v.selectFile(&analysis.Upload{Filename: filepath.Base(path), Data: data})
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeDisabled)
	if err := ebiten.RunGame(v); err != nil && !errors.Is(err, ebiten.Termination) {
		logger.Error("run", "err", err)
		os.Exit(1)
	}
}
