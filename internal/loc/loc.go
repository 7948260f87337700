// Package loc implements the location algebra for cell addresses: parsing
// and formatting of the "A1"-style text form, the column label <-> column
// number bijection, and bounds-checked offsetting for move/copy/sort.
package loc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrParseLoc is returned when a string cannot be parsed as a cell location.
var ErrParseLoc = errors.New("loc: could not parse as a cell location")

// ErrOutOfRange is returned when an offset would leave the addressable grid.
var ErrOutOfRange = errors.New("loc: location out of range")

const (
	// MinCol and MaxCol bound the column axis; MaxCol is the column number of
	// the label "ZZZZ".
	MinCol = 1
	MaxCol = 475254

	// MinRow and MaxRow bound the row axis.
	MinRow = 1
	MaxRow = 9999
)

// validLoc matches the text form of a location: 1-4 uppercase letters
// followed by 1-4 digits with no leading zero.
var validLoc = regexp.MustCompile(`^([A-Z]{1,4})([1-9][0-9]{0,3})$`)

// Loc is a cell address: a (column, row) pair, both 1-indexed. Loc carries no
// notion of absolute/relative marking; that lives on formula text, not here.
type Loc struct {
	Col int
	Row int
}

// Parse parses s (expected upper-case, no "$" markers) into a Loc.
func Parse(s string) (Loc, error) {
	groups := validLoc.FindStringSubmatch(s)
	if groups == nil {
		return Loc{}, fmt.Errorf("%w: %q", ErrParseLoc, s)
	}
	col, err := ColNumber(groups[1])
	if err != nil {
		return Loc{}, fmt.Errorf("%w: %q", ErrParseLoc, s)
	}
	row, err := strconv.Atoi(groups[2])
	if err != nil || row > MaxRow {
		return Loc{}, fmt.Errorf("%w: %q", ErrParseLoc, s)
	}
	return Loc{Col: col, Row: row}, nil
}

// IsValid reports whether s is a syntactically valid location.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String renders the Loc back to its canonical upper-case text form.
func (l Loc) String() string {
	return ColLabel(l.Col) + strconv.Itoa(l.Row)
}

// Offset returns the Loc shifted by (dCol, dRow), failing with ErrOutOfRange
// if the result would leave [A1, ZZZZ9999].
func (l Loc) Offset(dCol, dRow int) (Loc, error) {
	col, row := l.Col+dCol, l.Row+dRow
	if col < MinCol || col > MaxCol || row < MinRow || row > MaxRow {
		return Loc{}, ErrOutOfRange
	}
	return Loc{Col: col, Row: row}, nil
}

// ColLabel converts a 1-based column number to its base-26 letter label
// (A=1, Z=26, AA=27, ...). ColNumber is its inverse.
func ColLabel(n int) string {
	var buf []byte
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// ColNumber converts a column label (e.g. "A", "ZZZZ") to its 1-based column
// number. It rejects labels outside [A, ZZZZ] or containing anything but
// uppercase letters.
func ColNumber(label string) (int, error) {
	if label == "" || len(label) > 4 {
		return 0, fmt.Errorf("%w: column label %q", ErrParseLoc, label)
	}
	n := 0
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c < 'A' || c > 'Z' {
			return 0, fmt.Errorf("%w: column label %q", ErrParseLoc, label)
		}
		n = n*26 + int(c-'A'+1)
	}
	return n, nil
}
