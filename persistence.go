package workbook

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/kalexmills/workbook/internal/depgraph"
	"github.com/kalexmills/workbook/internal/loc"
)

type jsonWorkbook struct {
	Sheets []jsonSheet `json:"sheets"`
}

type jsonSheet struct {
	Name         string            `json:"name"`
	CellContents map[string]string `json:"cell-contents"`
}

// LoadWorkbook reads a workbook from its JSON serialization (the shape
// written by SaveWorkbook): {"sheets": [{"name": ..., "cell-contents": {loc:
// content}}]}. Sheets are created in file order through NewSheet, which runs
// the update driver for each new sheet as it always does; cells are set
// without running the driver, and the driver runs once more at the end,
// after every sheet and cell exists, with every loaded cell as its seed.
func LoadWorkbook(r io.Reader) (*Workbook, error) {
	var raw jsonWorkbook
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, opErr("LoadWorkbook", CategoryInvalidArgument, err.Error())
	}

	wb := New()
	seed := map[depgraph.Node]bool{}

	for _, sh := range raw.Sheets {
		if _, err := wb.NewSheet(sh.Name); err != nil {
			return nil, err
		}
		s, _ := wb.getSheet(sh.Name)
		for locText, content := range sh.CellContents {
			l, err := loc.Parse(strings.ToUpper(locText))
			if err != nil {
				return nil, opErr("LoadWorkbook", CategoryInvalidLocation, err.Error())
			}
			node := wb.setCellRaw(s, l, content)
			seed[node] = true
		}
	}

	wb.runUpdate(seed)
	return wb, nil
}

// SaveWorkbook writes wb's sheets and raw cell contents as JSON, in the same
// shape LoadWorkbook reads.
func (wb *Workbook) SaveWorkbook(w io.Writer) error {
	raw := jsonWorkbook{Sheets: make([]jsonSheet, 0, len(wb.sheetOrder))}
	for _, s := range wb.sheetOrder {
		contents := make(map[string]string, len(s.cells))
		for locText, c := range s.cells {
			contents[locText] = c.Content
		}
		raw.Sheets = append(raw.Sheets, jsonSheet{Name: s.Name, CellContents: contents})
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(raw); err != nil {
		return opErr("SaveWorkbook", CategoryInvalidArgument, err.Error())
	}
	return nil
}
