package highlight

import (
	"fmt"
	"slices"

	"github.com/04pril/minesight/internal/board"
)

// NoMovesText is the placeholder listed when the analyzer found no safe move.
const NoMovesText = "No safe moves found"

// Entry is one line of the move list.
type Entry struct {
	Index       int // 1-based position in the analyzer's order, 0 for the placeholder
	Move        board.Move
	Text        string
	Placeholder bool
}

func (e Entry) String() string {
	if e.Placeholder {
		return e.Text
	}
	return fmt.Sprintf("%d. %s", e.Index, e.Text)
}

// List describes moves in the order received. It never returns an empty list.
func List(moves []board.Move) []Entry {
	if len(moves) == 0 {
		return []Entry{{Text: NoMovesText, Placeholder: true}}
	}
	out := make([]Entry, len(moves))
	for i, m := range moves {
		out[i] = Entry{Index: i + 1, Move: m, Text: m.String()}
	}
	return out
}

// DigitCount is how many opened cells show Digit.
type DigitCount struct {
	Digit int
	Count int
}

// Stats summarizes a board and the moves found on it.
type Stats struct {
	Unopened  int
	Digits    []DigitCount
	SafeMoves int
}

// reportedDigits are listed even when absent from the board.
var reportedDigits = []int{1, 2}

// Summarize derives the statistics from board counts only.
func Summarize(b *board.Board, moves []board.Move) Stats {
	st := Stats{
		Unopened:  b.Count(board.Unopened),
		SafeMoves: len(moves),
	}
	present := b.Values()
	digits := make([]int, 0, len(present)+len(reportedDigits))
	digits = append(digits, reportedDigits...)
	for _, v := range present {
		if v > board.Unopened && !slices.Contains(reportedDigits, v) {
			digits = append(digits, v)
		}
	}
	slices.Sort(digits)
	for _, d := range digits {
		st.Digits = append(st.Digits, DigitCount{Digit: d, Count: b.Count(d)})
	}
	return st
}

// Lines renders the statistics for a text surface.
func (s Stats) Lines() []string {
	lines := []string{fmt.Sprintf("Unopened cells: %d", s.Unopened)}
	for _, dc := range s.Digits {
		lines = append(lines, fmt.Sprintf("Digit %d: %d", dc.Digit, dc.Count))
	}
	return append(lines, fmt.Sprintf("Safe moves: %d", s.SafeMoves))
}

// Count returns the tally for digit d, 0 when it was not reported.
func (s Stats) Count(d int) int {
	for _, dc := range s.Digits {
		if dc.Digit == d {
			return dc.Count
		}
	}
	return 0
}
