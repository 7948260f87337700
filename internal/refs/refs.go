// Package refs implements the regular-expression based reference scanner and
// rewriter used to find cell references inside formula text and to rewrite
// them on sheet rename, move, copy, and sort. It is a direct port of the
// reference-handling regular expressions in the original implementation.
package refs

import (
	"regexp"
	"strings"

	"github.com/kalexmills/workbook/internal/loc"
)

// Character classes for sheet names, assembled the same way as the original
// regular expressions: build the small pieces first, then compose them.
const (
	allSheetChar = `[a-zA-Z0-9\.\?!,:;!@#\$%\^&\*()\-_ ]`
	shtBegEnd    = `[a-zA-Z0-9\.\?!,:;!@#\$%\^&\*()\-_]`
	unqSheetChar = `[a-zA-Z0-9_]`
	unqSheetBeg  = `[a-zA-Z_]`
)

var (
	sqShtName  = `'` + shtBegEnd + allSheetChar + `*` + shtBegEnd + `'|'` + shtBegEnd + `'`
	unqShtName = unqSheetBeg + unqSheetChar + `*`
	mulShtName = `^` + shtBegEnd + allSheetChar + `*` + shtBegEnd + `$`

	// validSheetName matches a well-formed standalone sheet name (the full
	// name string, as opposed to a name embedded in formula text).
	validSheetName = regexp.MustCompile(`^(?:` + mulShtName + `)|^` + shtBegEnd + `$`)

	// allStr matches a double-quoted string literal.
	allStr = regexp.MustCompile(`"[^"]+"`)

	// rqQuote matches a character that forces a sheet name to need single
	// quoting: anything at the start that isn't a letter/underscore, or any
	// non-word character anywhere.
	rqQuote = regexp.MustCompile(`^[^a-zA-Z_]|\W`)

	validCell = `[A-Za-z]{1,4}[1-9][0-9]{0,3}`
	formCell  = `\$?[A-Za-z]{1,4}\$?[1-9][0-9]{0,3}`

	validLoc = regexp.MustCompile(validCell)

	multiSqRef = `'` + shtBegEnd + allSheetChar + `*` + shtBegEnd + `'!` + formCell
	singleSqRef = `'` + shtBegEnd + `'!` + formCell
	unqRef      = unqShtName + `!` + formCell

	// ref matches any reference in a formula (double-quote masked already):
	// group 1 is a sheet-qualified reference, group 2 is a bare cell ref.
	ref = regexp.MustCompile(`(` + multiSqRef + `|` + singleSqRef + `|` + unqRef + `)|(` + formCell + `)`)

	// shtRefName matches just the sheet-name portion of a sheet-qualified
	// reference, captured so the lookbehind exclusion below can be applied
	// manually (Go's RE2 engine has no lookbehind support).
	shtRefName = regexp.MustCompile(`(` + sqShtName + `|` + unqShtName + `)!`)

	// hasEvalDep matches any of the lazy/eval-time-dependent function names.
	hasEvalDep = regexp.MustCompile(`(?i)if|iferror|choose|indirect`)

	// cellRefParts decomposes a single cell reference into its "$"-marked
	// column and row parts, for offset rewriting on move/copy/sort.
	cellRefParts = regexp.MustCompile(`^(\$?)([A-Za-z]+)(\$?)(\d+)$`)
)

// OffsetRef shifts ref by (rowOffset, colOffset), leaving any "$"-marked
// absolute axis untouched. It returns "#REF!" if the shifted column or row
// would fall outside [1, maxCol] or [1, maxRow], and returns ref unchanged if
// it does not look like a cell reference at all.
func OffsetRef(ref string, rowOffset, colOffset, maxCol, maxRow int) string {
	groups := cellRefParts.FindStringSubmatch(ref)
	if groups == nil {
		return ref
	}
	colAbs, colLabel, rowAbs, rowText := groups[1], groups[2], groups[3], groups[4]

	colNum, err := loc.ColNumber(strings.ToUpper(colLabel))
	if err != nil {
		return ref
	}
	if colAbs == "" {
		colNum += colOffset
	}

	rowNum := 0
	for _, c := range rowText {
		rowNum = rowNum*10 + int(c-'0')
	}
	if rowAbs == "" {
		rowNum += rowOffset
	}

	if colNum < 1 || colNum > maxCol || rowNum < 1 || rowNum > maxRow {
		return "#REF!"
	}

	newColLabel := colLabel
	if colAbs == "" {
		newColLabel = loc.ColLabel(colNum)
	}
	return colAbs + newColLabel + rowAbs + itoaRef(rowNum)
}

func itoaRef(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// SheetRef is a sheet-qualified reference found in a formula: the sheet name
// and the location text (with or without "$" markers, per the caller).
type SheetRef struct {
	Sheet string
	Loc   string
}

// IsValidSheetName reports whether name is a syntactically valid sheet name.
func IsValidSheetName(name string) bool {
	return validSheetName.MatchString(name)
}

// IsValidLoc reports whether s contains (anywhere) a syntactically valid
// bare cell location.
func IsValidLoc(s string) bool {
	return validLoc.MatchString(s)
}

// RequireSQ returns sheetName single-quoted if it contains any character
// that would otherwise be ambiguous in formula text, and unchanged otherwise.
// A sheet name already wrapped in single quotes has them stripped first.
func RequireSQ(sheetName string) string {
	sheetName = strings.Trim(sheetName, "'")
	if rqQuote.MatchString(sheetName) {
		return "'" + sheetName + "'"
	}
	return sheetName
}

// MaskStringLiterals replaces every double-quoted string literal in s with a
// run of '.' of the same length, preserving every other byte offset. This
// keeps reference-matching regexes from matching text that only appears
// inside a string literal.
func MaskStringLiterals(s string) string {
	return allStr.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat(".", len(m))
	})
}

// FindRefs finds every reference in formula and returns the bare (unsheeted)
// locations and the sheet-qualified references, both with "$" absolute
// markers stripped.
func FindRefs(formula string) (locs []string, sheetRefs []SheetRef) {
	return findRefs(formula, true)
}

// FindRefsAbsolute is FindRefs but preserves "$" absolute markers.
func FindRefsAbsolute(formula string) (locs []string, sheetRefs []SheetRef) {
	return findRefs(formula, false)
}

func findRefs(formula string, stripDollar bool) (locs []string, sheetRefs []SheetRef) {
	masked := MaskStringLiterals(formula)
	matches := ref.FindAllStringSubmatch(masked, -1)
	for _, m := range matches {
		qualified, bare := m[1], m[2]
		if qualified != "" {
			sheetRefs = append(sheetRefs, splitSheetRef(qualified, stripDollar))
			continue
		}
		loc := bare
		if stripDollar {
			loc = strings.ReplaceAll(loc, "$", "")
		}
		locs = append(locs, loc)
	}
	return locs, sheetRefs
}

// splitSheetRef splits a sheet-qualified reference ("'My Sheet'!A1" or
// "Sheet1!A1") into its sheet name and location parts.
func splitSheetRef(qualified string, stripDollar bool) SheetRef {
	var sheet, loc string
	if qualified[0] == '\'' {
		first := strings.IndexByte(qualified, '\'')
		second := strings.IndexByte(qualified[first+1:], '\'') + first + 1
		sheet = qualified[first+1 : second]
		loc = qualified[second+2:]
	} else {
		bang := strings.IndexByte(qualified, '!')
		sheet = qualified[:bang]
		loc = qualified[bang+1:]
	}
	if stripDollar {
		loc = strings.ReplaceAll(loc, "$", "")
	}
	return SheetRef{Sheet: sheet, Loc: loc}
}

// ReplaceNames rewrites every sheet-name reference inside formula: instances
// of oldName are replaced with newName, and every other sheet reference is
// re-normalized to its properly single-quoted form. Matching is
// case-insensitive on the sheet name; text inside double-quoted string
// literals is left untouched.
func ReplaceNames(formula, oldName, newName string) string {
	masked := MaskStringLiterals(formula)
	oldLower := strings.ToLower(oldName)
	oldNames := map[string]bool{
		"'" + oldLower + "'": true,
		oldLower:             true,
	}

	var out strings.Builder
	prevEnd := 0
	for _, loc := range shtRefName.FindAllStringSubmatchIndex(masked, -1) {
		start, end := loc[2], loc[3] // group 1: the sheet-name text, excluding "!"
		if !precedingCharExcludesMatch(masked, start) {
			continue
		}
		out.WriteString(formula[prevEnd:start])
		name := formula[start:end]
		var replacement string
		if oldNames[strings.ToLower(name)] {
			replacement = newName
		} else {
			replacement = name
		}
		out.WriteString(RequireSQ(replacement))
		prevEnd = end
	}
	out.WriteString(formula[prevEnd:])
	return out.String()
}

// precedingCharExcludesMatch emulates the original's negative lookbehind:
// a sheet-name reference must not be immediately preceded by a digit, word
// character, or double quote.
func precedingCharExcludesMatch(s string, start int) bool {
	if start == 0 {
		return true
	}
	prev := rune(s[start-1])
	if prev >= '0' && prev <= '9' {
		return false
	}
	if prev >= 'a' && prev <= 'z' || prev >= 'A' && prev <= 'Z' || prev == '_' {
		return false
	}
	if prev == '"' {
		return false
	}
	return true
}

// IsRef reports whether s, in its entirety, is a valid cell reference of any
// form (bare, sheet-qualified, single- or multi-quoted).
func IsRef(s string) bool {
	loc := ref.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// HasEvalDep reports whether s contains the name of a function whose
// dependencies can only be fully discovered at evaluation time (IF, IFERROR,
// CHOOSE, INDIRECT), matched case-insensitively outside string literals. The
// name is matched as a plain substring, so it also matches inside a sheet
// name or another identifier, not only in a function call.
func HasEvalDep(s string) bool {
	return hasEvalDep.MatchString(MaskStringLiterals(s))
}
