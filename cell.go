package workbook

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kalexmills/workbook/internal/cellval"
	"github.com/kalexmills/workbook/internal/formula"
)

// Kind is the classification of a cell's contents, decided once at
// content-set time (except Formula cells, whose Value the evaluator keeps
// current).
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindFormula
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindNumber:
		return "Number"
	case KindBool:
		return "Bool"
	case KindFormula:
		return "Formula"
	case KindParseError:
		return "ParseError"
	default:
		return "Unknown"
	}
}

// Cell is one occupied cell: its raw content, its classification, its
// current value, and back-pointers to where it lives (used by INDIRECT's
// provisional-edge bookkeeping and by sheet-rename rewriting).
type Cell struct {
	Content string
	Kind    Kind
	Value   cellval.Value
	Expr    formula.Expr // non-nil only for Kind == KindFormula

	Sheet string
	Loc   string

	// staticDeps is the set of (lowercase sheet)!(uppercase loc) keys this
	// cell's formula text statically references, used to tell provisional
	// (evaluation-time-discovered) edges apart from ones already known.
	staticDeps map[string]bool
}

// classifyContent implements §4.3's cell-contents classification. content is
// assumed already stripped of outer whitespace. It never touches the
// dependency graph — callers wire static references into the graph
// separately.
func classifyContent(content string) (kind Kind, value cellval.Value, expr formula.Expr) {
	if strings.HasPrefix(content, "=") {
		e, err := formula.ParseCached(content[1:])
		if err != nil {
			return KindParseError, cellval.NewError(cellval.ParseError, err.Error()), nil
		}
		return KindFormula, cellval.Empty, e
	}

	if strings.EqualFold(content, "true") {
		return KindBool, cellval.NewBool(true), nil
	}
	if strings.EqualFold(content, "false") {
		return KindBool, cellval.NewBool(false), nil
	}

	if errKind, ok := cellval.ParseErrorLiteral(content); ok {
		return KindString, cellval.NewError(errKind, content), nil
	}

	if !containsLetter(content) {
		if d, err := decimal.NewFromString(content); err == nil {
			return KindNumber, cellval.NewNumber(canonicalizeIngress(d)), nil
		}
	}

	stripped := strings.TrimPrefix(content, "'")
	return KindString, cellval.NewString(stripped), nil
}

func containsLetter(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

// canonicalizeIngress trims trailing fractional zeros and any trailing
// decimal point from a freshly-parsed decimal literal.
func canonicalizeIngress(d decimal.Decimal) decimal.Decimal {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	out, err := decimal.NewFromString(s)
	if err != nil {
		return d
	}
	return out
}
