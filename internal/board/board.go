// Package board holds the analyzed 8x8 grid and the moves reported against it.
package board

import (
	"fmt"
	"sort"
)

// Size is the number of rows and columns of an analyzed board.
const Size = 8

// Cells is the total number of cells on a board.
const Cells = Size * Size

// Unopened is the cell value for a square that has not been opened yet.
const Unopened = 0

// Board is the grid returned by the analyzer. A value of 0 is an unopened
// cell, N >= 1 is an opened cell showing N adjacent mines.
type Board [Size][Size]int

// Value returns the cell at row, col. Coordinates outside the board panic.
func (b *Board) Value(row, col int) int {
	return b[row][col]
}

// Opened reports whether the cell shows a number.
func (b *Board) Opened(row, col int) bool {
	return b[row][col] > Unopened
}

// Count returns how many of the 64 cells hold v.
func (b *Board) Count(v int) int {
	n := 0
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if b[y][x] == v {
				n++
			}
		}
	}
	return n
}

// Values returns the distinct values present on the board, ascending.
func (b *Board) Values() []int {
	seen := map[int]bool{}
	var out []int
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			v := b[y][x]
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Ints(out)
	return out
}

// Move is a zero-based cell the analyzer reports as safe to open.
type Move struct {
	Row int
	Col int
}

// InRange reports whether the move addresses a cell on the board.
func (m Move) InRange() bool {
	return m.Row >= 0 && m.Col >= 0 && m.Row < Size && m.Col < Size
}

// String renders the move one-based, the way it is shown to the user.
func (m Move) String() string {
	return fmt.Sprintf("row %d, col %d", m.Row+1, m.Col+1)
}
