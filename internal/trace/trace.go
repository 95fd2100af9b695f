// Package trace groups the analyzer's per-cell debug images into a
// collapsible gallery.
package trace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/04pril/minesight/internal/analysis"
)

// cellIDSep separates row and column in a cell id ("3_4").
const cellIDSep = "_"

// ParseCellID decodes a "<row>_<col>" cell id into zero-based coordinates.
func ParseCellID(id string) (row, col int, err error) {
	rs, cs, ok := strings.Cut(id, cellIDSep)
	if !ok {
		return 0, 0, fmt.Errorf("cell id %q: missing %q", id, cellIDSep)
	}
	if row, err = strconv.Atoi(rs); err != nil {
		return 0, 0, fmt.Errorf("cell id %q: row: %w", id, err)
	}
	if col, err = strconv.Atoi(cs); err != nil {
		return 0, 0, fmt.Errorf("cell id %q: col: %w", id, err)
	}
	return row, col, nil
}

// Grouping partitions debug images by cell id. Keys keep first-seen order and
// images keep input order within a key.
type Grouping struct {
	keys   []string
	groups map[string][]analysis.DebugImage
}

// Group builds a Grouping; every input image lands in exactly one group.
func Group(images []analysis.DebugImage) *Grouping {
	g := &Grouping{groups: make(map[string][]analysis.DebugImage)}
	for _, img := range images {
		if _, ok := g.groups[img.CellID]; !ok {
			g.keys = append(g.keys, img.CellID)
		}
		g.groups[img.CellID] = append(g.groups[img.CellID], img)
	}
	return g
}

// Keys returns the cell ids in the order they were first seen.
func (g *Grouping) Keys() []string { return g.keys }

// Images returns the images recorded for a cell id.
func (g *Grouping) Images(cellID string) []analysis.DebugImage { return g.groups[cellID] }

// Len is the total number of images across all groups.
func (g *Grouping) Len() int {
	n := 0
	for _, imgs := range g.groups {
		n += len(imgs)
	}
	return n
}
