package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/04pril/minesight/internal/analysis"
	"github.com/04pril/minesight/internal/board"
	"github.com/04pril/minesight/internal/highlight"
	"github.com/04pril/minesight/internal/preview"
	"github.com/04pril/minesight/internal/render"
)

type analyzerFunc func(ctx context.Context, up analysis.Upload) (*analysis.Result, error)

func (f analyzerFunc) Analyze(ctx context.Context, up analysis.Upload) (*analysis.Result, error) {
	return f(ctx, up)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.NewRenderer(400, render.Themes[0])
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newController(t *testing.T, an Analyzer) *Controller {
	t.Helper()
	return New(an, newRenderer(t), Options{
		MaxUploadBytes: 16 << 20,
		PreviewWidth:   64,
		PreviewHeight:  64,
		Logger:         quiet,
	})
}

func photo(t *testing.T, name string) *analysis.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 80))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(3, 3, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return &analysis.Upload{Filename: name, Data: buf.Bytes()}
}

func TestSubmit_AllClosedOneMove(t *testing.T) {
	var calls int
	c := newController(t, analyzerFunc(func(_ context.Context, up analysis.Upload) (*analysis.Result, error) {
		calls++
		return &analysis.Result{SafeMoves: []board.Move{{Row: 0, Col: 0}}, DebugImages: []analysis.DebugImage{}}, nil
	}))
	c.Select(photo(t, "board.png"))

	if got := c.Submit(context.Background()); got != Success {
		t.Fatalf("outcome: got %v, want success", got)
	}
	if c.State() != Idle {
		t.Fatalf("state after submit: got %v, want idle", c.State())
	}
	if calls != 1 {
		t.Fatalf("requests: got %d, want 1", calls)
	}

	v := c.Views()
	if !v.Results || v.ErrorVisible || v.Analyzing {
		t.Fatalf("views: results=%v error=%v analyzing=%v", v.Results, v.ErrorVisible, v.Analyzing)
	}
	if v.DebugVisible() {
		t.Fatal("debug gallery visible for an empty trace")
	}

	r := newRenderer(t)
	var zero board.Board
	plain := r.NewSurface()
	_ = r.Render(plain, &zero)
	tinted := 0
	for row := 0; row < board.Size; row++ {
		for col := 0; col < board.Size; col++ {
			rect := r.CellRect(row, col)
			x, y := rect.Max.X-6, rect.Max.Y-6
			if plain.RGBAAt(x, y) != v.Surface.RGBAAt(x, y) {
				if row != 0 || col != 0 {
					t.Fatalf("cell (%d,%d) highlighted", row, col)
				}
				tinted++
			}
		}
	}
	if tinted != 1 {
		t.Fatalf("highlighted cells: got %d, want 1", tinted)
	}
	if len(v.MoveList) != 1 || v.MoveList[0].Text != "row 1, col 1" {
		t.Fatalf("move list: got %+v", v.MoveList)
	}
	if v.Stats.Unopened != board.Cells || v.Stats.SafeMoves != 1 {
		t.Fatalf("stats: got %+v", v.Stats)
	}
}

func TestSubmit_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":"invalid image"}`)
	}))
	defer srv.Close()

	c := newController(t, analysis.NewClient(srv.URL, 5*time.Second, quiet))
	c.Select(photo(t, "board.png"))
	if got := c.Submit(context.Background()); got != Failure {
		t.Fatalf("outcome: got %v, want failure", got)
	}
	v := c.Views()
	if !v.ErrorVisible || !strings.Contains(v.ErrorMessage, "invalid image") {
		t.Fatalf("error: visible=%v message=%q", v.ErrorVisible, v.ErrorMessage)
	}
	if v.Results || v.Surface != nil || v.DebugVisible() || v.Analyzing {
		t.Fatal("result surfaces visible after failure")
	}
	if c.State() != Idle {
		t.Fatalf("state: got %v, want idle", c.State())
	}
}

func TestSubmit_NoSelection(t *testing.T) {
	var calls int
	c := newController(t, analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		calls++
		return &analysis.Result{}, nil
	}))

	for _, sel := range []*analysis.Upload{nil, {Filename: "", Data: []byte("x")}} {
		c.Select(sel)
		if got := c.Submit(context.Background()); got != Failure {
			t.Fatalf("outcome: got %v, want failure", got)
		}
		v := c.Views()
		if v.ErrorMessage != NoSelectionMessage || !v.ErrorVisible {
			t.Fatalf("error: got %q", v.ErrorMessage)
		}
	}
	if calls != 0 {
		t.Fatalf("requests: got %d, want 0", calls)
	}
}

func TestSubmit_NoMovesStillCounts(t *testing.T) {
	c := newController(t, analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		res := &analysis.Result{SafeMoves: []board.Move{}}
		res.Board[2][3] = 5
		return res, nil
	}))
	c.Select(photo(t, "board.png"))
	c.Submit(context.Background())

	v := c.Views()
	if len(v.MoveList) != 1 || !v.MoveList[0].Placeholder || v.MoveList[0].Text != highlight.NoMovesText {
		t.Fatalf("move list: got %+v", v.MoveList)
	}
	if v.Stats.Count(5) != 1 || v.Stats.Unopened != 63 || v.Stats.SafeMoves != 0 {
		t.Fatalf("stats: got %+v", v.Stats)
	}
}

func TestSubmit_IndicatorLifecycle(t *testing.T) {
	var c *Controller
	var during bool
	fail := true
	c = newController(t, analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		during = c.Views().Analyzing
		if fail {
			return nil, &analysis.ServerError{Status: 500}
		}
		return &analysis.Result{SafeMoves: []board.Move{}}, nil
	}))
	c.Select(photo(t, "board.png"))

	c.Submit(context.Background())
	if !during {
		t.Fatal("indicator not shown while submitting")
	}
	v := c.Views()
	if v.Analyzing {
		t.Fatal("indicator left on after failure")
	}
	if v.ErrorMessage != analysis.GenericMessage {
		t.Fatalf("error: got %q, want generic message", v.ErrorMessage)
	}

	fail = false
	during = false
	if got := c.Submit(context.Background()); got != Success {
		t.Fatalf("outcome: got %v, want success", got)
	}
	v = c.Views()
	if !during || v.Analyzing {
		t.Fatalf("indicator: during=%v after=%v", during, v.Analyzing)
	}
	if v.ErrorVisible || v.ErrorMessage != "" {
		t.Fatal("previous error not cleared on success")
	}
}

func TestSubmit_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"board":"nope"}`)
	}))
	defer srv.Close()

	c := newController(t, analysis.NewClient(srv.URL, 5*time.Second, quiet))
	c.Select(photo(t, "board.png"))
	if got := c.Submit(context.Background()); got != Failure {
		t.Fatalf("outcome: got %v, want failure", got)
	}
	if v := c.Views(); v.Results || !v.ErrorVisible {
		t.Fatal("malformed body rendered as a result")
	}
}

func TestSubmit_UploadLimit(t *testing.T) {
	var calls int
	c := New(analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		calls++
		return &analysis.Result{}, nil
	}), newRenderer(t), Options{MaxUploadBytes: 1 << 20, Logger: quiet})

	c.Select(&analysis.Upload{Filename: "huge.png", Data: make([]byte, 1<<20+1)})
	if got := c.Submit(context.Background()); got != Failure {
		t.Fatalf("outcome: got %v, want failure", got)
	}
	if calls != 0 {
		t.Fatalf("requests: got %d, want 0", calls)
	}
	if msg := c.Views().ErrorMessage; !strings.Contains(msg, "1 MB") {
		t.Fatalf("error: got %q", msg)
	}
}

func TestSubmit_DebugGallery(t *testing.T) {
	c := newController(t, analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		return &analysis.Result{
			SafeMoves: []board.Move{},
			DebugImages: []analysis.DebugImage{
				{CellID: "1_2", URL: "/d/1.png", Process: "crop"},
				{CellID: "0_0", URL: "/d/2.png", Process: "crop"},
				{CellID: "1_2", URL: "/d/3.png", Process: "ocr"},
			},
		}, nil
	}))
	c.Select(photo(t, "board.png"))
	c.Submit(context.Background())

	v := c.Views()
	if !v.DebugVisible() || len(v.Gallery.Sections) != 2 {
		t.Fatalf("gallery: visible=%v", v.DebugVisible())
	}
	if v.Gallery.Sections[0].CellID != "1_2" || len(v.Gallery.Sections[0].Images) != 2 {
		t.Fatalf("first section: got %+v", v.Gallery.Sections[0])
	}
	rev := v.Revision
	c.ToggleSection(0)
	if v := c.Views(); !v.Gallery.Sections[0].Expanded || v.Revision == rev {
		t.Fatal("toggle not applied")
	}
}

func TestSubmitAsync_StaleResponseDiscarded(t *testing.T) {
	gates := map[string]chan struct{}{
		"first.png":  make(chan struct{}),
		"second.png": make(chan struct{}),
	}
	var calls atomic.Int32
	c := newController(t, analyzerFunc(func(_ context.Context, up analysis.Upload) (*analysis.Result, error) {
		calls.Add(1)
		<-gates[up.Filename]
		res := &analysis.Result{SafeMoves: []board.Move{{Row: 0, Col: 0}}}
		if up.Filename == "second.png" {
			res.SafeMoves = []board.Move{{Row: 7, Col: 7}}
		}
		return res, nil
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.Select(photo(t, "first.png"))
	c.SubmitAsync(ctx)
	if c.State() != Submitting || !c.Views().Analyzing {
		t.Fatalf("state: got %v, want submitting", c.State())
	}
	c.Select(photo(t, "second.png"))
	c.SubmitAsync(ctx)

	close(gates["second.png"])
	if err := c.Await(ctx); err != nil {
		t.Fatal(err)
	}
	v := c.Views()
	if c.State() != Idle || !v.Results || v.Moves[0] != (board.Move{Row: 7, Col: 7}) {
		t.Fatalf("after second: state=%v moves=%v", c.State(), v.Moves)
	}

	close(gates["first.png"])
	if err := c.Await(ctx); err != nil {
		t.Fatal(err)
	}
	v = c.Views()
	if v.Moves[0] != (board.Move{Row: 7, Col: 7}) || v.Analyzing {
		t.Fatalf("stale response applied: moves=%v", v.Moves)
	}
	if calls.Load() != 2 {
		t.Fatalf("requests: got %d, want 2", calls.Load())
	}
	if c.Pump() != 0 {
		t.Fatal("unexpected pending outcomes")
	}
}

func TestSelect_Preview(t *testing.T) {
	c := newController(t, analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		return &analysis.Result{}, nil
	}))
	if c.Views().Preview != PreviewIdle {
		t.Fatal("preview not idle initially")
	}

	c.Select(photo(t, "a.png"))
	v := c.Views()
	if v.Preview != PreviewRendered || v.PreviewImage == nil || v.PreviewImage.Filename != "a.png" {
		t.Fatalf("preview: state=%v", v.Preview)
	}
	if b := v.PreviewImage.Pixels.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("preview size: got %v", b)
	}

	c.Select(&analysis.Upload{Filename: "notes.txt", Data: []byte("not an image")})
	v = c.Views()
	if v.Preview != FileSelected || v.PreviewImage != nil || v.PreviewErr == nil {
		t.Fatalf("undecodable preview: state=%v err=%v", v.Preview, v.PreviewErr)
	}

	c.Select(nil)
	if v := c.Views(); v.Preview != PreviewIdle {
		t.Fatalf("cleared preview: state=%v", v.Preview)
	}
}

func TestRestyle(t *testing.T) {
	c := newController(t, analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		return &analysis.Result{SafeMoves: []board.Move{{Row: 1, Col: 1}}}, nil
	}))
	c.Select(photo(t, "board.png"))
	c.Submit(context.Background())
	before := c.Views().Surface

	dark, _ := render.ThemeByName("dark")
	if err := c.Restyle(dark); err != nil {
		t.Fatal(err)
	}
	after := c.Views().Surface
	if bytes.Equal(before.Pix, after.Pix) {
		t.Fatal("restyle did not redraw the board")
	}
	if got := after.RGBAAt(398, 398); got != color.RGBAModel.Convert(dark.Closed).(color.RGBA) {
		t.Fatalf("closed cell color: got %v", got)
	}
}

func TestSelect_PreviewPixelLimit(t *testing.T) {
	var calls int
	c := New(analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		calls++
		return &analysis.Result{SafeMoves: []board.Move{}}, nil
	}), newRenderer(t), Options{PreviewPixels: 80*80 - 1, Logger: quiet})

	c.Select(photo(t, "board.png"))
	v := c.Views()
	if v.Preview != FileSelected || v.PreviewImage != nil {
		t.Fatalf("preview: state=%v image=%v", v.Preview, v.PreviewImage)
	}
	if !errors.Is(v.PreviewErr, preview.ErrTooLarge) {
		t.Fatalf("preview error: got %v, want ErrTooLarge", v.PreviewErr)
	}
	if got := c.Submit(context.Background()); got != Success || calls != 1 {
		t.Fatalf("outcome: got %v after %d requests, want success after 1", got, calls)
	}
}

func TestSubmit_FailureClearsPreviousResult(t *testing.T) {
	fail := false
	c := newController(t, analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		if fail {
			return nil, &analysis.ServerError{Status: http.StatusUnprocessableEntity, Message: "invalid image"}
		}
		res := &analysis.Result{
			SafeMoves:   []board.Move{{Row: 2, Col: 2}},
			DebugImages: []analysis.DebugImage{{CellID: "2_2", URL: "/d/1.png", Process: "crop"}},
		}
		res.Board[0][0] = 3
		return res, nil
	}))
	c.Select(photo(t, "board.png"))

	if got := c.Submit(context.Background()); got != Success {
		t.Fatalf("first outcome: got %v, want success", got)
	}
	v := c.Views()
	if v.Surface == nil || len(v.Moves) != 1 || !v.DebugVisible() {
		t.Fatalf("first result not shown: surface=%v moves=%v debug=%v", v.Surface != nil, v.Moves, v.DebugVisible())
	}

	fail = true
	if got := c.Submit(context.Background()); got != Failure {
		t.Fatalf("second outcome: got %v, want failure", got)
	}
	v = c.Views()
	if v.ErrorMessage != "invalid image" || !v.ErrorVisible {
		t.Fatalf("error: visible=%v message=%q", v.ErrorVisible, v.ErrorMessage)
	}
	if v.Results || v.Surface != nil || v.Moves != nil || v.MoveList != nil {
		t.Fatalf("previous board left visible: results=%v surface=%v moves=%v list=%v",
			v.Results, v.Surface != nil, v.Moves, v.MoveList)
	}
	if v.Gallery != nil || v.DebugVisible() {
		t.Fatal("previous debug gallery left visible")
	}
	if v.Stats.Unopened != 0 || v.Stats.Digits != nil || v.Stats.SafeMoves != 0 || v.Board != (board.Board{}) {
		t.Fatalf("previous stats left: %+v", v.Stats)
	}
}

func TestReject(t *testing.T) {
	var calls int
	c := newController(t, analyzerFunc(func(context.Context, analysis.Upload) (*analysis.Result, error) {
		calls++
		return &analysis.Result{SafeMoves: []board.Move{}}, nil
	}))
	c.Select(photo(t, "board.png"))

	msg := UploadLimitMessage(16 << 20)
	c.Reject(msg)
	if v := c.Views(); v.Preview != PreviewIdle || v.PreviewImage != nil {
		t.Fatalf("preview kept after reject: state=%v", v.Preview)
	}
	if got := c.Submit(context.Background()); got != Failure {
		t.Fatalf("outcome: got %v, want failure", got)
	}
	if got := c.Views().ErrorMessage; got != msg {
		t.Fatalf("error: got %q, want %q", got, msg)
	}
	if calls != 0 {
		t.Fatalf("requests: got %d, want 0", calls)
	}

	// the rejection is reported once
	c.Submit(context.Background())
	if got := c.Views().ErrorMessage; got != NoSelectionMessage {
		t.Fatalf("second submit: got %q, want %q", got, NoSelectionMessage)
	}
}
