// Package session runs the analysis lifecycle: validate the selected image,
// submit it, and route the outcome to the board, move and debug views.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/04pril/minesight/internal/analysis"
	"github.com/04pril/minesight/internal/highlight"
	"github.com/04pril/minesight/internal/preview"
	"github.com/04pril/minesight/internal/render"
	"github.com/04pril/minesight/internal/trace"
)

// NoSelectionMessage is shown when submitting without a selected image.
const NoSelectionMessage = "Please select an image file"

// Analyzer submits an image to the external board analyzer.
// *analysis.Client satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, up analysis.Upload) (*analysis.Result, error)
}

// Options tunes a Controller. Zero values disable the corresponding limit.
type Options struct {
	MaxUploadBytes int64
	PreviewWidth   int
	PreviewHeight  int
	PreviewPixels  int64 // declared-size cap for previews, 0 means preview.DefaultMaxPixels
	Logger         *slog.Logger
}

// Controller owns the session state. It is not safe for concurrent use: all
// methods must be called from the goroutine that owns the views.
type Controller struct {
	analyzer    Analyzer
	renderer    *render.Renderer
	highlighter *highlight.Highlighter
	opts        Options
	logger      *slog.Logger

	machine   Machine
	selection *analysis.Upload
	rejection string
	views     Views
	inbox     chan Event
}

// New returns an idle controller drawing with r.
func New(an Analyzer, r *render.Renderer, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		analyzer:    an,
		renderer:    r,
		highlighter: highlight.New(r, r.Theme().Highlight),
		opts:        opts,
		logger:      logger,
		inbox:       make(chan Event, 4),
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State { return c.machine.State }

// Views returns a snapshot of the presentational state.
func (c *Controller) Views() Views { return c.views }

// Select replaces the current selection and renders its preview. A nil or
// empty upload clears the selection. Preview failures do not block analysis.
func (c *Controller) Select(up *analysis.Upload) {
	defer c.touch()
	c.rejection = ""
	c.views.PreviewImage = nil
	c.views.PreviewErr = nil
	if up.Empty() {
		c.selection = nil
		c.views.Preview = PreviewIdle
		return
	}
	sel := *up
	c.selection = &sel
	c.views.Preview = FileSelected

	img, err := preview.Load(sel, c.opts.PreviewWidth, c.opts.PreviewHeight, c.opts.PreviewPixels)
	if err != nil {
		c.logger.Warn("preview failed", "file", sel.Filename, "err", err)
		c.views.PreviewErr = err
		return
	}
	c.views.PreviewImage = img
	c.views.Preview = PreviewRendered
}

// Reject drops the current selection and makes the next submit fail
// validation with problem. Front ends use it for files they could not read in
// full.
func (c *Controller) Reject(problem string) {
	c.Select(nil)
	c.rejection = problem
}

// Submit runs one analysis to completion and returns the terminal state it
// reached. The controller is back in Idle when Submit returns.
func (c *Controller) Submit(ctx context.Context) State {
	return c.dispatch(ctx, SubmitRequested{}, false)
}

// SubmitAsync validates and issues the request without waiting for it. The
// outcome is delivered to the inbox and applied by Pump or Await.
func (c *Controller) SubmitAsync(ctx context.Context) {
	c.dispatch(ctx, SubmitRequested{}, true)
}

// Pump applies every outcome already delivered by async requests and returns
// how many were processed.
func (c *Controller) Pump() int {
	n := 0
	for {
		select {
		case ev := <-c.inbox:
			c.dispatch(context.Background(), ev, true)
			n++
		default:
			return n
		}
	}
}

// Await blocks until one async outcome arrives and applies it.
func (c *Controller) Await(ctx context.Context) error {
	select {
	case ev := <-c.inbox:
		c.dispatch(ctx, ev, true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restyle switches the theme and redraws the current result, if any.
func (c *Controller) Restyle(th render.Theme) error {
	r, err := render.NewRenderer(c.renderer.Size(), th)
	if err != nil {
		return err
	}
	c.renderer = r
	c.highlighter = highlight.New(r, th.Highlight)
	if c.views.Results {
		c.drawBoard()
		c.touch()
	}
	return nil
}

// ToggleSection expands or collapses debug gallery section i.
func (c *Controller) ToggleSection(i int) {
	if c.views.Gallery == nil {
		return
	}
	c.views.Gallery.Toggle(i)
	c.touch()
}

func (c *Controller) dispatch(ctx context.Context, ev Event, async bool) State {
	reached := c.machine.State
	queue := []Event{ev}
	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]

		prev := c.machine
		next, effects := Transition(prev, ev)
		c.machine = next
		if next.State != prev.State {
			c.logger.Debug("session", "from", prev.State, "to", next.State, "token", next.Token)
		} else if len(effects) == 0 {
			c.logger.Debug("session event ignored", "state", prev.State, "event", fmt.Sprintf("%T", ev))
		}

		for _, eff := range effects {
			if follow := c.apply(ctx, eff, async); follow != nil {
				queue = append(queue, follow)
			}
		}
		if next.State == Success || next.State == Failure {
			reached = next.State
			queue = append(queue, Acknowledged{})
		}
	}
	c.touch()
	return reached
}

func (c *Controller) apply(ctx context.Context, eff Effect, async bool) Event {
	switch eff := eff.(type) {
	case CheckSelection:
		return SelectionChecked{Problem: c.checkSelection()}
	case ShowIndicator:
		c.views.Analyzing = true
	case HideIndicator:
		c.views.Analyzing = false
	case SendRequest:
		up := *c.selection
		if async {
			go func() {
				c.inbox <- c.request(ctx, eff.Token, up)
			}()
			return nil
		}
		return c.request(ctx, eff.Token, up)
	case ShowResults:
		c.showResults(eff.Result)
	case HideResults:
		c.views.hideResults()
	case ShowError:
		c.views.ErrorVisible = true
		c.views.ErrorMessage = eff.Message
	case ClearError:
		c.views.ErrorVisible = false
		c.views.ErrorMessage = ""
	}
	return nil
}

func (c *Controller) request(ctx context.Context, token uint64, up analysis.Upload) Event {
	res, err := c.analyzer.Analyze(ctx, up)
	if err != nil {
		c.logger.Warn("analysis failed", "file", up.Filename, "token", token, "err", err)
		return RequestFailed{Token: token, Err: err}
	}
	c.logger.Info("analysis done", "file", up.Filename, "token", token,
		"moves", len(res.SafeMoves), "debug_images", len(res.DebugImages))
	return ResponseReceived{Token: token, Result: res}
}

// UploadLimitMessage is the validation problem for uploads above limit bytes.
func UploadLimitMessage(limit int64) string {
	return fmt.Sprintf("The image exceeds the %d MB upload limit", limit>>20)
}

func (c *Controller) checkSelection() string {
	if p := c.rejection; p != "" {
		c.rejection = ""
		return p
	}
	if c.selection.Empty() {
		return NoSelectionMessage
	}
	if limit := c.opts.MaxUploadBytes; limit > 0 && int64(len(c.selection.Data)) > limit {
		return UploadLimitMessage(limit)
	}
	return ""
}

func (c *Controller) showResults(res *analysis.Result) {
	v := &c.views
	v.Results = true
	v.Board = res.Board
	v.Moves = append(v.Moves[:0:0], res.SafeMoves...)
	v.MoveList = highlight.List(v.Moves)
	v.Stats = highlight.Summarize(&v.Board, v.Moves)
	v.Gallery = trace.NewGallery(trace.Group(res.DebugImages))
	c.drawBoard()
}

// drawBoard renders the board, then overlays the moves.
func (c *Controller) drawBoard() {
	surface := c.renderer.NewSurface()
	if err := c.renderer.Render(surface, &c.views.Board); err != nil {
		c.logger.Error("render failed", "err", err)
		return
	}
	c.highlighter.Highlight(surface, c.views.Moves)
	c.views.Surface = surface
}

func (c *Controller) touch() { c.views.Revision++ }
