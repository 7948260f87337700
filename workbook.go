// Package workbook implements the evaluation core of an in-memory
// spreadsheet workbook: ordered sheets of sparse cells, a formula language,
// a tree-walking evaluator, a dependency graph with cycle detection, a
// re-evaluation driver, and a reference rewriter for rename/move/copy/sort.
package workbook

import (
	"strings"

	"github.com/kalexmills/workbook/internal/cellval"
	"github.com/kalexmills/workbook/internal/depgraph"
	"github.com/kalexmills/workbook/internal/loc"
	"github.com/kalexmills/workbook/internal/refs"
)

// Version is the workbook format/engine version string, returned by the
// VERSION() formula function.
const Version = "1.3"

// Subscriber is notified with the set of cells whose evaluated value
// changed as a result of one mutating call. Subscribers are unordered;
// a panic or error from one is isolated and never poisons the others or the
// driver.
type Subscriber func(changes []CellChange)

// CellChange names one cell whose value changed.
type CellChange struct {
	Sheet string
	Loc   string
}

// Workbook owns an ordered list of sheets, the dependency graph over their
// formula cells, and the set of change subscribers.
type Workbook struct {
	sheetOrder  []*Sheet
	byLowerName map[string]*Sheet
	graph       *depgraph.Graph
	subscribers []Subscriber
}

// New returns an empty workbook with no sheets.
func New() *Workbook {
	return &Workbook{
		byLowerName: map[string]*Sheet{},
		graph:       depgraph.New(),
	}
}

// Subscribe registers sub to be called after every mutating operation that
// changes at least one cell's evaluated value. A non-formula cell whose
// content was written or cleared counts as changed.
func (wb *Workbook) Subscribe(sub Subscriber) {
	wb.subscribers = append(wb.subscribers, sub)
}

func (wb *Workbook) notify(changes []CellChange) {
	if len(changes) == 0 {
		return
	}
	for _, sub := range wb.subscribers {
		wb.safeNotify(sub, changes)
	}
}

// safeNotify isolates a single subscriber's panic so it cannot stop the
// remaining subscribers from being notified.
func (wb *Workbook) safeNotify(sub Subscriber, changes []CellChange) {
	defer func() {
		_ = recover()
	}()
	sub(changes)
}

// NumSheets returns the number of sheets in the workbook.
func (wb *Workbook) NumSheets() int { return len(wb.sheetOrder) }

// ListSheets returns sheet display names in workbook order.
func (wb *Workbook) ListSheets() []string {
	names := make([]string, len(wb.sheetOrder))
	for i, s := range wb.sheetOrder {
		names[i] = s.Name
	}
	return names
}

func (wb *Workbook) getSheet(name string) (*Sheet, bool) {
	s, ok := wb.byLowerName[strings.ToLower(name)]
	return s, ok
}

// checkSheetName validates a sheet name against the syntax rules in §4.2:
// non-empty, no leading/trailing whitespace, no quote characters, and every
// character drawn from the allowed sheet-name alphabet.
func checkSheetName(name string) error {
	if name == "" {
		return opErr("checkSheetName", CategoryInvalidSheetName, "sheet name must not be empty")
	}
	if strings.TrimSpace(name) != name {
		return opErr("checkSheetName", CategoryInvalidSheetName, "sheet name must not have leading/trailing whitespace")
	}
	if strings.ContainsAny(name, "'\"") {
		return opErr("checkSheetName", CategoryInvalidSheetName, "sheet name must not contain quote characters")
	}
	if !refs.IsValidSheetName(name) {
		return opErr("checkSheetName", CategoryInvalidSheetName, "sheet name contains a disallowed character")
	}
	return nil
}

// generateUniqueName returns base if it is not already taken
// (case-insensitively), or base_2, base_3, ... otherwise.
func (wb *Workbook) generateUniqueName(base string) string {
	if _, ok := wb.getSheet(base); !ok {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + "_" + itoa(i)
		if _, ok := wb.getSheet(candidate); !ok {
			return candidate
		}
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// NewSheet creates a new sheet. If name is "", a unique name of the form
// "Sheet1", "Sheet2", ... is generated. Returns the sheet's final name.
func (wb *Workbook) NewSheet(name string) (string, error) {
	if name == "" {
		for i := 1; ; i++ {
			candidate := "Sheet" + itoa(i)
			if _, ok := wb.getSheet(candidate); !ok {
				name = candidate
				break
			}
		}
	} else {
		if err := checkSheetName(name); err != nil {
			return "", err
		}
		if _, ok := wb.getSheet(name); ok {
			return "", opErr("NewSheet", CategoryDuplicateSheet, "sheet already exists: "+name)
		}
	}
	s := newSheet(name)
	wb.sheetOrder = append(wb.sheetOrder, s)
	wb.byLowerName[strings.ToLower(name)] = s
	wb.runUpdate(nil)
	return name, nil
}

// DelSheet removes the named sheet and every dependency-graph node for its
// formula cells, then re-evaluates every remaining formula cell so any
// formula that referenced into the deleted sheet picks up its new #REF!.
func (wb *Workbook) DelSheet(name string) error {
	s, ok := wb.getSheet(name)
	if !ok {
		return opErr("DelSheet", CategoryUnknownSheet, "no such sheet: "+name)
	}
	for _, locStr := range s.CellLocs() {
		wb.graph.RemoveCell(depgraph.NewNode(s.Name, locStr))
	}
	delete(wb.byLowerName, strings.ToLower(name))
	for i, sh := range wb.sheetOrder {
		if sh == s {
			wb.sheetOrder = append(wb.sheetOrder[:i], wb.sheetOrder[i+1:]...)
			break
		}
	}
	wb.runUpdate(nil)
	return nil
}

// MoveSheet relocates the named sheet to position index in the sheet order
// (0-based, interpreted after the sheet is removed from its old position).
func (wb *Workbook) MoveSheet(name string, index int) error {
	s, ok := wb.getSheet(name)
	if !ok {
		return opErr("MoveSheet", CategoryUnknownSheet, "no such sheet: "+name)
	}
	pos := -1
	for i, sh := range wb.sheetOrder {
		if sh == s {
			pos = i
			break
		}
	}
	wb.sheetOrder = append(wb.sheetOrder[:pos], wb.sheetOrder[pos+1:]...)
	if index < 0 {
		index = 0
	}
	if index > len(wb.sheetOrder) {
		index = len(wb.sheetOrder)
	}
	wb.sheetOrder = append(wb.sheetOrder[:index], append([]*Sheet{s}, wb.sheetOrder[index:]...)...)
	return nil
}

// GetSheetExtent returns the named sheet's (max_col, max_row).
func (wb *Workbook) GetSheetExtent(name string) (maxCol, maxRow int, err error) {
	s, ok := wb.getSheet(name)
	if !ok {
		return 0, 0, opErr("GetSheetExtent", CategoryUnknownSheet, "no such sheet: "+name)
	}
	maxCol, maxRow = s.Extent()
	return maxCol, maxRow, nil
}

// SheetExists implements eval.Resolver.
func (wb *Workbook) SheetExists(name string) bool {
	_, ok := wb.getSheet(name)
	return ok
}

// CellValue implements eval.Resolver: it assumes sheet exists, returning
// Empty for an absent cell and a BadReference error if loc is not a
// syntactically valid cell location.
func (wb *Workbook) CellValue(sheet, locText string) cellval.Value {
	s, ok := wb.getSheet(sheet)
	if !ok {
		return cellval.Empty
	}
	l, err := loc.Parse(strings.ToUpper(locText))
	if err != nil {
		return cellval.NewError(cellval.BadReference, "invalid cell location: "+locText)
	}
	c := s.GetCell(l)
	if c == nil {
		return cellval.Empty
	}
	return c.Value
}

// GetCellContents returns the raw content string of the cell at sheet!loc,
// or "" if the cell is absent.
func (wb *Workbook) GetCellContents(sheet, locText string) (string, error) {
	s, ok := wb.getSheet(sheet)
	if !ok {
		return "", opErr("GetCellContents", CategoryUnknownSheet, "no such sheet: "+sheet)
	}
	l, err := loc.Parse(strings.ToUpper(locText))
	if err != nil {
		return "", opErr("GetCellContents", CategoryInvalidLocation, err.Error())
	}
	c := s.GetCell(l)
	if c == nil {
		return "", nil
	}
	return c.Content, nil
}

// GetCellValue returns the current evaluated value of the cell at
// sheet!loc, or Empty if the cell is absent.
func (wb *Workbook) GetCellValue(sheet, locText string) (cellval.Value, error) {
	s, ok := wb.getSheet(sheet)
	if !ok {
		return cellval.Value{}, opErr("GetCellValue", CategoryUnknownSheet, "no such sheet: "+sheet)
	}
	l, err := loc.Parse(strings.ToUpper(locText))
	if err != nil {
		return cellval.Value{}, opErr("GetCellValue", CategoryInvalidLocation, err.Error())
	}
	c := s.GetCell(l)
	if c == nil {
		return cellval.Empty, nil
	}
	return c.Value, nil
}

// GetCellType returns the classification of the cell at sheet!loc. An
// absent cell reports KindString with an Empty value's classification is
// undefined; callers should check GetCellContents first if presence matters.
func (wb *Workbook) GetCellType(sheet, locText string) (Kind, error) {
	s, ok := wb.getSheet(sheet)
	if !ok {
		return 0, opErr("GetCellType", CategoryUnknownSheet, "no such sheet: "+sheet)
	}
	l, err := loc.Parse(strings.ToUpper(locText))
	if err != nil {
		return 0, opErr("GetCellType", CategoryInvalidLocation, err.Error())
	}
	c := s.GetCell(l)
	if c == nil {
		return KindString, nil
	}
	return c.Kind, nil
}

// SetCellContents sets the content of sheet!loc, reclassifies it, wires its
// static dependency edges into the graph, and re-evaluates every cell
// affected by the change.
func (wb *Workbook) SetCellContents(sheet, locText, content string) error {
	s, ok := wb.getSheet(sheet)
	if !ok {
		return opErr("SetCellContents", CategoryUnknownSheet, "no such sheet: "+sheet)
	}
	l, err := loc.Parse(strings.ToUpper(locText))
	if err != nil {
		return opErr("SetCellContents", CategoryInvalidLocation, err.Error())
	}

	node := wb.setCellRaw(s, l, content)
	wb.runUpdate(map[depgraph.Node]bool{node: true})
	return nil
}

// setCellRaw classifies content, wires or removes the cell's graph node, and
// stores the result, without running the update driver. Callers that touch
// many cells in one logical operation (CopySheet, MoveCells, SortRegion) use
// this to batch their changes into a single runUpdate call.
func (wb *Workbook) setCellRaw(s *Sheet, l loc.Loc, content string) depgraph.Node {
	content = strings.TrimSpace(content)
	node := depgraph.NewNode(s.Name, l.String())

	if prev := s.GetCell(l); prev != nil && prev.Kind == KindFormula {
		wb.graph.RemoveCell(node)
	}

	if content == "" {
		s.deleteCell(l)
		return node
	}

	kind, value, expr := classifyContent(content)
	cell := &Cell{Content: content, Kind: kind, Value: value, Expr: expr, Sheet: s.Name, Loc: l.String()}

	if kind == KindFormula {
		cell.staticDeps = wb.wireStaticDeps(node, s.Name, content)
	}

	s.setCell(l, cell)
	return node
}

// wireStaticDeps registers node in the graph and adds one edge per
// statically-discoverable reference in content, per §6.1's carried-over
// set_content_helper quirk: when content begins with a lazy-function name,
// only the first comma-separated argument's references are registered
// statically — the rest are left to evaluation-time discovery.
func (wb *Workbook) wireStaticDeps(node depgraph.Node, fromSheet, content string) map[string]bool {
	wb.graph.SetCell(node)

	targets := staticDepTargets(fromSheet, content)
	staticDeps := map[string]bool{}
	for _, target := range targets {
		wb.graph.AddDependency(node, target)
		staticDeps[target.Sheet+"!"+target.Loc] = true
	}
	return staticDeps
}

// staticDepTargets applies the same scan wireStaticDeps does, without
// touching the graph. Used to recompute a cell's static-dependency bookkeeping
// after its formula text is rewritten in place (sheet rename).
func staticDepTargets(fromSheet, content string) []depgraph.Node {
	scanText := content[1:] // drop leading "="
	if refs.HasEvalDep(scanText) {
		if idx := strings.IndexByte(scanText, ','); idx >= 0 {
			scanText = scanText[:idx]
		}
	}

	locs, sheetRefs := refs.FindRefs(scanText)
	targets := make([]depgraph.Node, 0, len(locs)+len(sheetRefs))
	for _, l := range locs {
		targets = append(targets, depgraph.NewNode(fromSheet, l))
	}
	for _, sr := range sheetRefs {
		targets = append(targets, depgraph.NewNode(sr.Sheet, sr.Loc))
	}
	return targets
}

func staticDepSet(fromSheet, content string) map[string]bool {
	out := map[string]bool{}
	for _, target := range staticDepTargets(fromSheet, content) {
		out[target.Sheet+"!"+target.Loc] = true
	}
	return out
}

// formulaCellAt returns the Cell at node if it exists and is a formula cell.
func (wb *Workbook) formulaCellAt(node depgraph.Node) *Cell {
	s, ok := wb.byLowerName[node.Sheet]
	if !ok {
		return nil
	}
	l, err := loc.Parse(node.Loc)
	if err != nil {
		return nil
	}
	c := s.GetCell(l)
	if c == nil || c.Kind != KindFormula {
		return nil
	}
	return c
}
