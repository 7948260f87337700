package workbook

import (
	"golang.org/x/exp/maps"

	"github.com/kalexmills/workbook/internal/loc"
)

// Sheet is one ordered, named collection of sparse cells plus the extent
// indexes used to answer GetSheetExtent without scanning every cell.
type Sheet struct {
	Name  string
	cells map[string]*Cell // uppercase location text -> Cell

	rows map[int]map[int]bool // row -> set of occupied columns
	cols map[int]map[int]bool // col -> set of occupied rows

	maxRow int
	maxCol int
}

func newSheet(name string) *Sheet {
	return &Sheet{
		Name:  name,
		cells: map[string]*Cell{},
		rows:  map[int]map[int]bool{},
		cols:  map[int]map[int]bool{},
	}
}

// GetCell returns the cell at l, or nil if the cell is absent (empty).
func (s *Sheet) GetCell(l loc.Loc) *Cell {
	return s.cells[l.String()]
}

// setCell stores c at l, updating the extent indexes.
func (s *Sheet) setCell(l loc.Loc, c *Cell) {
	s.cells[l.String()] = c
	if s.rows[l.Row] == nil {
		s.rows[l.Row] = map[int]bool{}
	}
	s.rows[l.Row][l.Col] = true
	if s.cols[l.Col] == nil {
		s.cols[l.Col] = map[int]bool{}
	}
	s.cols[l.Col][l.Row] = true
	if l.Col > s.maxCol {
		s.maxCol = l.Col
	}
	if l.Row > s.maxRow {
		s.maxRow = l.Row
	}
}

// deleteCell removes the cell at l, recomputing the extent if it held the
// current extent's outer edge.
func (s *Sheet) deleteCell(l loc.Loc) {
	delete(s.cells, l.String())

	if row, ok := s.rows[l.Row]; ok {
		delete(row, l.Col)
		if len(row) == 0 {
			delete(s.rows, l.Row)
		}
	}
	if col, ok := s.cols[l.Col]; ok {
		delete(col, l.Row)
		if len(col) == 0 {
			delete(s.cols, l.Col)
		}
	}

	if l.Row == s.maxRow {
		s.maxRow = maxKey(s.rows)
	}
	if l.Col == s.maxCol {
		s.maxCol = maxKey(s.cols)
	}
}

func maxKey(m map[int]map[int]bool) int {
	max := 0
	for k := range m {
		if k > max {
			max = k
		}
	}
	return max
}

// Extent returns (max_col, max_row) of currently occupied cells; an empty
// sheet has extent (0, 0).
func (s *Sheet) Extent() (maxCol, maxRow int) {
	return s.maxCol, s.maxRow
}

// CellLocs returns the location text of every occupied cell, in no
// particular order.
func (s *Sheet) CellLocs() []string {
	return maps.Keys(s.cells)
}
