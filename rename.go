package workbook

import (
	"strings"

	"github.com/kalexmills/workbook/internal/depgraph"
	"github.com/kalexmills/workbook/internal/loc"
	"github.com/kalexmills/workbook/internal/refs"
)

// RenameSheet renames oldName to newName, rewriting every other sheet's
// formula text that referenced oldName so the rewritten reference still
// resolves to the same cell, and leaving every affected cell's value
// unchanged (rename never changes what a formula computes, only what it
// says).
func (wb *Workbook) RenameSheet(oldName, newName string) error {
	s, ok := wb.getSheet(oldName)
	if !ok {
		return opErr("RenameSheet", CategoryUnknownSheet, "no such sheet: "+oldName)
	}
	if err := checkSheetName(newName); err != nil {
		return err
	}
	if existing, exists := wb.getSheet(newName); exists && existing != s {
		return opErr("RenameSheet", CategoryDuplicateSheet, "sheet already exists: "+newName)
	}

	oldLower := strings.ToLower(oldName)
	newLower := strings.ToLower(newName)

	delete(wb.byLowerName, oldLower)
	s.Name = newName
	wb.byLowerName[newLower] = s
	for _, c := range s.cells {
		c.Sheet = newName
	}

	_, touched := wb.graph.RenameSheet(oldName, newName)

	seed := map[depgraph.Node]bool{}
	for _, n := range touched {
		cell := wb.formulaCellAt(n)
		if cell == nil {
			continue
		}
		rewritten := "=" + refs.ReplaceNames(cell.Content[1:], oldName, newName)
		kind, value, expr := classifyContent(rewritten)
		cell.Content = rewritten
		cell.Kind = kind
		cell.Value = value
		cell.Expr = expr
		cell.staticDeps = staticDepSet(n.Sheet, rewritten)
		seed[n] = true
	}

	wb.runUpdate(seed)
	return nil
}

// CopySheet duplicates the named sheet under a generated unique name
// ("<name>_2", "<name>_3", ...) and returns the copy's name. Bare references
// inside copied formulas are re-registered against the copy (they mean
// "this sheet" either way); sheet-qualified references keep pointing at
// whatever sheet they named, including the original sheet itself.
func (wb *Workbook) CopySheet(name string) (string, error) {
	orig, ok := wb.getSheet(name)
	if !ok {
		return "", opErr("CopySheet", CategoryUnknownSheet, "no such sheet: "+name)
	}

	newName := wb.generateUniqueName(name)
	dst := newSheet(newName)
	wb.sheetOrder = append(wb.sheetOrder, dst)
	wb.byLowerName[strings.ToLower(newName)] = dst

	seed := map[depgraph.Node]bool{}
	for locStr, src := range orig.cells {
		l, err := loc.Parse(locStr)
		if err != nil {
			continue
		}
		node := wb.setCellRaw(dst, l, src.Content)
		seed[node] = true
	}

	wb.runUpdate(seed)
	return newName, nil
}
