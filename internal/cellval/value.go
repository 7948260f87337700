// Package cellval defines the tagged cell-value union shared by the cell
// model, the evaluator, and the dependency driver: Empty, Number, String,
// Bool, and Error, plus the canonical error-literal surface forms.
package cellval

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumber
	KindString
	KindBool
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindBool:
		return "Bool"
	case KindError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ErrorKind enumerates the cell-error categories, with a fixed propagation
// priority: PARSE_ERROR dominates CIRCULAR_REFERENCE, which dominates every
// other kind. Among the remaining kinds, priority is positional: whichever is
// encountered first in left-to-right evaluation wins.
type ErrorKind uint8

const (
	ParseError ErrorKind = iota
	CircularReference
	BadReference
	BadName
	TypeError
	DivideByZero
)

// Literal returns the canonical surface form of an error kind, e.g. "#REF!".
func (k ErrorKind) Literal() string {
	switch k {
	case ParseError:
		return "#ERROR!"
	case CircularReference:
		return "#CIRCREF!"
	case BadReference:
		return "#REF!"
	case BadName:
		return "#NAME?"
	case TypeError:
		return "#VALUE!"
	case DivideByZero:
		return "#DIV/0!"
	default:
		return "#ERROR!"
	}
}

// errorLiterals maps every accepted surface spelling (case-insensitive, see
// ParseErrorLiteral) to its ErrorKind. #ERROR! has two kinds in spec.md's
// surface table (PARSE_ERROR per §7, and it's also the generic literal in
// §6); we treat the literal "#ERROR!" as ParseError, matching error_types.py.
var errorLiterals = map[string]ErrorKind{
	"#DIV/0!":   DivideByZero,
	"#ERROR!":   ParseError,
	"#CIRCREF!": CircularReference,
	"#REF!":     BadReference,
	"#NAME?":    BadName,
	"#VALUE!":   TypeError,
}

// ParseErrorLiteral returns the ErrorKind for a case-insensitive error
// literal surface form, and false if s is not one of the recognized forms.
func ParseErrorLiteral(s string) (ErrorKind, bool) {
	k, ok := errorLiterals[strings.ToUpper(s)]
	return k, ok
}

// Error is a first-class cell-error value: a category plus human-facing
// detail. Errors compare equal (for change detection) by Kind alone; Detail
// is informational.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind.Literal(), e.Detail)
}

// Value is the tagged union of everything a cell (or sub-expression) can
// evaluate to.
type Value struct {
	Kind   Kind
	Num    decimal.Decimal
	Str    string
	Bool   bool
	ErrVal Error
}

// Empty is the canonical empty value.
var Empty = Value{Kind: KindEmpty}

// NewNumber wraps a decimal as a Number value.
func NewNumber(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// NewString wraps a string as a String value.
func NewString(s string) Value { return Value{Kind: KindString, Str: s} }

// NewBool wraps a bool as a Bool value.
func NewBool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NewError wraps an error kind/detail as an Error value.
func NewError(kind ErrorKind, detail string) Value {
	return Value{Kind: KindError, ErrVal: Error{Kind: kind, Detail: detail}}
}

// IsError reports whether v holds an Error.
func (v Value) IsError() bool { return v.Kind == KindError }

// IsEmpty reports whether v holds Empty.
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// Equal reports value equality appropriate for change-detection: same Kind,
// and equal payload for that Kind (decimal equality for Number, exact string
// equality for String/error literal text is not considered — only Kind).
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindEmpty:
		return true
	case KindNumber:
		return v.Num.Equal(o.Num)
	case KindString:
		return v.Str == o.Str
	case KindBool:
		return v.Bool == o.Bool
	case KindError:
		return v.ErrVal.Kind == o.ErrVal.Kind
	}
	return false
}

// CanonicalDecimal returns the canonical decimal text form of d: no trailing
// fractional zeros, no trailing decimal point.
func CanonicalDecimal(d decimal.Decimal) string {
	return d.String()
}
