package session

import (
	"image"

	"github.com/04pril/minesight/internal/board"
	"github.com/04pril/minesight/internal/highlight"
	"github.com/04pril/minesight/internal/preview"
	"github.com/04pril/minesight/internal/trace"
)

// PreviewState is the position of the preview sub-flow.
type PreviewState int

const (
	PreviewIdle PreviewState = iota
	FileSelected
	PreviewRendered
)

func (s PreviewState) String() string {
	switch s {
	case PreviewIdle:
		return "idle"
	case FileSelected:
		return "file-selected"
	case PreviewRendered:
		return "preview-rendered"
	default:
		return "unknown"
	}
}

// Views is the presentational state owned by a Controller. Front ends read it
// and redraw when Revision changes; they never write to it.
type Views struct {
	Revision uint64

	Results   bool // board, moves and stats visible
	Board     board.Board
	Moves     []board.Move
	Surface   *image.RGBA
	MoveList  []highlight.Entry
	Stats     highlight.Stats
	Gallery   *trace.Gallery
	Analyzing bool

	ErrorVisible bool
	ErrorMessage string

	Preview      PreviewState
	PreviewImage *preview.Image
	PreviewErr   error
}

// DebugVisible reports whether the debug container should be shown.
func (v Views) DebugVisible() bool {
	return v.Results && v.Gallery.Visible()
}

func (v *Views) hideResults() {
	v.Results = false
	v.Board = board.Board{}
	v.Moves = nil
	v.Surface = nil
	v.MoveList = nil
	v.Stats = highlight.Stats{}
	v.Gallery = nil
}
