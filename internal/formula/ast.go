// Package formula implements the formula grammar: a tokenizer and a
// recursive-descent parser producing a small expression tree, plus a
// per-formula-string memoized parse cache.
package formula

import "github.com/shopspring/decimal"

// Expr is any node in a parsed formula's expression tree.
type Expr interface {
	IsExpr()
}

// NumberLit is a decimal number literal.
type NumberLit struct {
	Value decimal.Decimal
}

// StringLit is a double-quoted string literal (already unescaped/unquoted).
type StringLit struct {
	Value string
}

// BoolLit is a TRUE/FALSE literal.
type BoolLit struct {
	Value bool
}

// ErrorLit is an error literal such as #REF! appearing directly in formula
// text.
type ErrorLit struct {
	Literal string
}

// CellRef is a reference to a single cell, optionally sheet-qualified. ColAbs
// and RowAbs record whether the column/row carried a "$" marker in the
// original text, so rewriting can respect them. Sheet is "" for a same-sheet
// reference.
type CellRef struct {
	Sheet  string
	Loc    string // upper-cased location text, no "$" markers
	ColAbs bool
	RowAbs bool
}

// UnaryExpr is a prefix sign operator: "+" or "-".
type UnaryExpr struct {
	Op string
	X  Expr
}

// BinaryExpr covers arithmetic, comparison, and concatenation operators, all
// left-associative. Comparison synonyms ("=", "==") and ("<>", "!=") are
// normalized to "=" and "<>" respectively during parsing.
type BinaryExpr struct {
	Op string
	L  Expr
	R  Expr
}

// FuncCall is a named function call with a variadic argument list. A
// trailing empty argument slot (produced by a trailing comma) is preserved
// as a nil Expr in Args, matching the grammar's tolerance for it.
type FuncCall struct {
	Name string
	Args []Expr
}

func (NumberLit) IsExpr()  {}
func (StringLit) IsExpr()  {}
func (BoolLit) IsExpr()    {}
func (ErrorLit) IsExpr()   {}
func (CellRef) IsExpr()    {}
func (*UnaryExpr) IsExpr() {}
func (*BinaryExpr) IsExpr() {}
func (*FuncCall) IsExpr()  {}
