// Package analysis is the client side of the board analyzer's HTTP contract.
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/04pril/minesight/internal/board"
)

// DebugImage is one intermediate-processing snapshot for a cell.
type DebugImage struct {
	CellID  string `json:"cell_id"`
	URL     string `json:"url"`
	Process string `json:"process"`
}

// Result is the analyzer's answer for one uploaded image.
type Result struct {
	Board       board.Board
	SafeMoves   []board.Move
	DebugImages []DebugImage
}

type wireResult struct {
	Board       [][]int      `json:"board"`
	SafeMoves   [][]int      `json:"safe_moves"`
	DebugImages []DebugImage `json:"debug_images,omitempty"`
}

type wireError struct {
	Error string `json:"error"`
}

// Decode parses and shape-checks a success body. Any mismatch is reported as
// a *MalformedError.
func Decode(r io.Reader) (*Result, error) {
	var w wireResult
	dec := json.NewDecoder(r)
	if err := dec.Decode(&w); err != nil {
		return nil, &MalformedError{Reason: "invalid JSON", Err: err}
	}

	if len(w.Board) != board.Size {
		return nil, &MalformedError{Reason: fmt.Sprintf("board has %d rows, want %d", len(w.Board), board.Size)}
	}
	res := &Result{DebugImages: w.DebugImages}
	for y, row := range w.Board {
		if len(row) != board.Size {
			return nil, &MalformedError{Reason: fmt.Sprintf("board row %d has %d cells, want %d", y, len(row), board.Size)}
		}
		for x, v := range row {
			if v < 0 {
				return nil, &MalformedError{Reason: fmt.Sprintf("board cell (%d,%d) is negative", y, x)}
			}
			res.Board[y][x] = v
		}
	}

	if w.SafeMoves == nil {
		return nil, &MalformedError{Reason: "safe_moves missing"}
	}
	res.SafeMoves = make([]board.Move, 0, len(w.SafeMoves))
	for i, pair := range w.SafeMoves {
		if len(pair) != 2 {
			return nil, &MalformedError{Reason: fmt.Sprintf("safe move %d has %d coordinates, want 2", i, len(pair))}
		}
		m := board.Move{Row: pair[0], Col: pair[1]}
		if !m.InRange() {
			return nil, &MalformedError{Reason: fmt.Sprintf("safe move %d (%d,%d) is off the board", i, m.Row, m.Col)}
		}
		res.SafeMoves = append(res.SafeMoves, m)
	}
	return res, nil
}

// errorMessage extracts the "error" field of a failure body, if any.
func errorMessage(body []byte) string {
	var w wireError
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&w); err != nil {
		return ""
	}
	return w.Error
}
