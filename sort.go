package workbook

import (
	"sort"
	"strings"

	"github.com/kalexmills/workbook/internal/cellval"
	"github.com/kalexmills/workbook/internal/depgraph"
	"github.com/kalexmills/workbook/internal/loc"
)

// sortableRow is one row of a sort region: its distance from the region's
// top row (used to recompute formula row offsets afterward), the evaluated
// values across the region's columns, and the original cell contents across
// those columns (used to tell which cells were formulas).
type sortableRow struct {
	rowOffsetFromTop int
	values           []cellval.Value
	contents         []string
}

// SortRegion reorders the rows of the rectangular region [startLoc, endLoc]
// on sheet by the evaluated values in sortCols (1-based column offsets within
// the region; negative means descending on that column, checked in priority
// order until one column differs). Sort is stable: rows that compare equal
// on every sort column keep their relative order. Formula cells are
// re-targeted to their new row with their row-relative references shifted;
// literal cells carry their evaluated value as their new literal content.
func (wb *Workbook) SortRegion(sheet, startLoc, endLoc string, sortCols []int) error {
	s, ok := wb.getSheet(sheet)
	if !ok {
		return opErr("SortRegion", CategoryUnknownSheet, "no such sheet: "+sheet)
	}
	start, err := loc.Parse(strings.ToUpper(startLoc))
	if err != nil {
		return opErr("SortRegion", CategoryInvalidLocation, err.Error())
	}
	end, err := loc.Parse(strings.ToUpper(endLoc))
	if err != nil {
		return opErr("SortRegion", CategoryInvalidLocation, err.Error())
	}

	topLeftRow, bottomRightRow := minInt(start.Row, end.Row), maxInt(start.Row, end.Row)
	topLeftCol, bottomRightCol := minInt(start.Col, end.Col), maxInt(start.Col, end.Col)
	width := bottomRightCol - topLeftCol + 1

	if err := validateSortCols(sortCols, width); err != nil {
		return err
	}

	rows := make([]sortableRow, 0, bottomRightRow-topLeftRow+1)
	for row := topLeftRow; row <= bottomRightRow; row++ {
		values := make([]cellval.Value, width)
		contents := make([]string, width)
		for i := 0; i < width; i++ {
			l := loc.Loc{Col: topLeftCol + i, Row: row}
			values[i] = wb.CellValue(s.Name, l.String())
			if c := s.GetCell(l); c != nil {
				contents[i] = c.Content
			}
		}
		rows = append(rows, sortableRow{rowOffsetFromTop: row - topLeftRow, values: values, contents: contents})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return sortRowLess(rows[i], rows[j], sortCols)
	})

	seed := map[depgraph.Node]bool{}

	for newRowIdx, r := range rows {
		for colIdx, v := range r.values {
			newLoc := loc.Loc{Col: topLeftCol + colIdx, Row: topLeftRow + newRowIdx}
			node := wb.setCellRaw(s, newLoc, valueToLiteral(v))
			seed[node] = true
		}
	}

	for newRowIdx, r := range rows {
		for colIdx, content := range r.contents {
			if !strings.HasPrefix(content, "=") {
				continue
			}
			newLoc := loc.Loc{Col: topLeftCol + colIdx, Row: topLeftRow + newRowIdx}
			rowOffset := newRowIdx - r.rowOffsetFromTop
			rewritten := updateFormulaReferences(content, rowOffset, 0)
			node := wb.setCellRaw(s, newLoc, rewritten)
			seed[node] = true
		}
	}

	wb.runUpdate(seed)
	return nil
}

func validateSortCols(sortCols []int, width int) error {
	if len(sortCols) == 0 {
		return opErr("SortRegion", CategoryInvalidRange, "sort_cols must not be empty")
	}
	seen := map[int]bool{}
	for _, col := range sortCols {
		abs := col
		if abs < 0 {
			abs = -abs
		}
		if abs == 0 || abs > width {
			return opErr("SortRegion", CategoryInvalidRange, "sort column out of range")
		}
		if seen[abs] {
			return opErr("SortRegion", CategoryInvalidRange, "duplicate sort column")
		}
		seen[abs] = true
	}
	return nil
}

// sortRowLess implements the same ordering as a spreadsheet's column-priority
// sort: walk sortCols in order, and decide on the first column whose values
// differ.
func sortRowLess(a, b sortableRow, sortCols []int) bool {
	for _, col := range sortCols {
		idx := col - 1
		ascending := true
		if col < 0 {
			idx = -col - 1
			ascending = false
		}
		cmp := compareSortValues(a.values[idx], b.values[idx], ascending)
		if cmp != 0 {
			return cmp < 0
		}
	}
	return false
}

// compareSortValues orders blanks first, then errors by error-kind ordinal,
// then same-kind values by their natural order, falling back to a string
// comparison across mismatched kinds (Number vs String, etc).
func compareSortValues(a, b cellval.Value, ascending bool) int {
	if a.IsEmpty() && b.IsEmpty() {
		return 0
	}
	if a.IsEmpty() {
		return signed(-1, ascending)
	}
	if b.IsEmpty() {
		return signed(1, ascending)
	}

	if a.IsError() && b.IsError() {
		switch {
		case a.ErrVal.Kind < b.ErrVal.Kind:
			return signed(-1, ascending)
		case a.ErrVal.Kind > b.ErrVal.Kind:
			return signed(1, ascending)
		default:
			return 0
		}
	}
	if a.IsError() {
		return signed(-1, ascending)
	}
	if b.IsError() {
		return signed(1, ascending)
	}

	if a.Kind == b.Kind {
		switch a.Kind {
		case cellval.KindNumber:
			return signed(a.Num.Cmp(b.Num), ascending)
		case cellval.KindString:
			return signed(strings.Compare(a.Str, b.Str), ascending)
		case cellval.KindBool:
			switch {
			case a.Bool == b.Bool:
				return 0
			case !a.Bool:
				return signed(-1, ascending)
			default:
				return signed(1, ascending)
			}
		}
	}

	return signed(strings.Compare(valueToLiteral(a), valueToLiteral(b)), ascending)
}

func signed(cmp int, ascending bool) int {
	if ascending {
		return cmp
	}
	return -cmp
}

// valueToLiteral renders v the way a sorted cell's new literal content is
// written: numbers and strings round-trip as-is, booleans as "TRUE"/"FALSE",
// errors as their canonical literal, and Empty as "".
func valueToLiteral(v cellval.Value) string {
	switch v.Kind {
	case cellval.KindEmpty:
		return ""
	case cellval.KindNumber:
		return v.Num.String()
	case cellval.KindString:
		return v.Str
	case cellval.KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case cellval.KindError:
		return v.ErrVal.Kind.Literal()
	default:
		return ""
	}
}
