package workbook

import (
	"strings"

	"github.com/kalexmills/workbook/internal/depgraph"
	"github.com/kalexmills/workbook/internal/loc"
	"github.com/kalexmills/workbook/internal/refs"
)

// MoveCells moves the rectangular region [startLoc, endLoc] of sheet (corners
// may be given in either order) so its top-left lands at toLoc, optionally in
// a different sheet. Relative references inside moved formulas are shifted by
// the same offset; references that would land outside the addressable grid
// become "#REF!". The source region is cleared afterward, except where the
// destination overlaps it.
func (wb *Workbook) MoveCells(sheet, startLoc, endLoc, toLoc, toSheet string) error {
	return wb.moveCopyCells(sheet, startLoc, endLoc, toLoc, toSheet, true)
}

// CopyCells is MoveCells without clearing the source region.
func (wb *Workbook) CopyCells(sheet, startLoc, endLoc, toLoc, toSheet string) error {
	return wb.moveCopyCells(sheet, startLoc, endLoc, toLoc, toSheet, false)
}

func (wb *Workbook) moveCopyCells(sheetName, startLoc, endLoc, toLoc, toSheetName string, isMove bool) error {
	src, ok := wb.getSheet(sheetName)
	if !ok {
		return opErr("moveCopyCells", CategoryUnknownSheet, "no such sheet: "+sheetName)
	}
	start, err := loc.Parse(strings.ToUpper(startLoc))
	if err != nil {
		return opErr("moveCopyCells", CategoryInvalidLocation, err.Error())
	}
	end, err := loc.Parse(strings.ToUpper(endLoc))
	if err != nil {
		return opErr("moveCopyCells", CategoryInvalidLocation, err.Error())
	}
	to, err := loc.Parse(strings.ToUpper(toLoc))
	if err != nil {
		return opErr("moveCopyCells", CategoryInvalidLocation, err.Error())
	}

	dst := src
	if toSheetName != "" {
		dst, ok = wb.getSheet(toSheetName)
		if !ok {
			return opErr("moveCopyCells", CategoryUnknownSheet, "no such sheet: "+toSheetName)
		}
	}

	topLeftRow, bottomRightRow := minInt(start.Row, end.Row), maxInt(start.Row, end.Row)
	topLeftCol, bottomRightCol := minInt(start.Col, end.Col), maxInt(start.Col, end.Col)

	rowOffset := to.Row - topLeftRow
	colOffset := to.Col - topLeftCol

	destEndRow := to.Row + (bottomRightRow - topLeftRow)
	destEndCol := to.Col + (bottomRightCol - topLeftCol)
	if to.Row < loc.MinRow || to.Col < loc.MinCol || destEndRow > loc.MaxRow || destEndCol > loc.MaxCol {
		return opErr("moveCopyCells", CategoryInvalidRange, "destination region falls outside the addressable grid")
	}

	overlap := !(destEndRow < topLeftRow || to.Row > bottomRightRow ||
		destEndCol < topLeftCol || to.Col > bottomRightCol)

	tempStorage := map[string]string{}
	if overlap {
		for row := maxInt(topLeftRow, to.Row); row <= minInt(bottomRightRow, destEndRow); row++ {
			for col := maxInt(topLeftCol, to.Col); col <= minInt(bottomRightCol, destEndCol); col++ {
				origLoc := loc.Loc{Col: col, Row: row}
				if c := src.GetCell(origLoc); c != nil {
					tempStorage[origLoc.String()] = c.Content
				} else {
					tempStorage[origLoc.String()] = ""
				}
			}
		}
	}

	seed := map[depgraph.Node]bool{}
	movedLocs := make(map[string]bool)

	for row := topLeftRow; row <= bottomRightRow; row++ {
		for col := topLeftCol; col <= bottomRightCol; col++ {
			origLoc := loc.Loc{Col: col, Row: row}
			newRow := row + rowOffset
			newCol := col + colOffset
			newLoc := loc.Loc{Col: newCol, Row: newRow}

			var content string
			if stored, ok := tempStorage[origLoc.String()]; ok {
				content = stored
			} else if c := src.GetCell(origLoc); c != nil {
				content = c.Content
			}

			content = updateFormulaReferences(content, rowOffset, colOffset)

			node := wb.setCellRaw(dst, newLoc, content)
			seed[node] = true
			movedLocs[origLoc.String()] = true
		}
	}

	if isMove {
		for locStr := range movedLocs {
			if _, overlapped := tempStorage[locStr]; overlapped {
				continue
			}
			l, perr := loc.Parse(locStr)
			if perr != nil {
				continue
			}
			node := wb.setCellRaw(src, l, "")
			seed[node] = true
		}
	}

	wb.runUpdate(seed)
	return nil
}

// updateFormulaReferences rewrites every bare (same-sheet) reference in
// content by (rowOffset, colOffset). Sheet-qualified references are left
// untouched, since they do not move with the cells they're written in.
func updateFormulaReferences(content string, rowOffset, colOffset int) string {
	if !strings.HasPrefix(content, "=") {
		return content
	}
	locs, _ := refs.FindRefsAbsolute(content)
	out := content
	for _, l := range locs {
		newRef := refs.OffsetRef(l, rowOffset, colOffset, loc.MaxCol, loc.MaxRow)
		out = strings.ReplaceAll(out, l, newRef)
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
