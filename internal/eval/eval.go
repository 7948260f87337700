// Package eval implements the tree-walking formula evaluator: coercion
// rules, comparison and arithmetic semantics, error propagation priority,
// and dispatch into the built-in function directory, including the lazy
// functions that discover dependency edges at evaluation time.
package eval

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kalexmills/workbook/internal/cellval"
	"github.com/kalexmills/workbook/internal/formula"
)

// Resolver answers the questions the evaluator needs about the rest of the
// workbook: whether a sheet exists, and what a cell currently holds.
type Resolver interface {
	SheetExists(name string) bool
	CellValue(sheet, loc string) cellval.Value
}

// EdgeRecorder is notified whenever the evaluator resolves a cell reference
// that the formula's static dependency set did not already contain — the
// provisional-edge discovery mechanism used by IF/IFERROR/CHOOSE/INDIRECT.
type EdgeRecorder interface {
	RecordProvisional(targetSheet, targetLoc string)
}

// Context carries everything Eval needs for one evaluation of one formula
// cell: where the formula lives, what it already statically depends on, and
// hooks back into the workbook.
type Context struct {
	Resolver   Resolver
	Recorder   EdgeRecorder // may be nil; no provisional-edge tracking then
	FromSheet  string       // sheet owning the formula being evaluated
	StaticDeps map[string]bool
	Version    string
}

// depKey builds the (lowercase sheet, uppercase loc) key used both by
// StaticDeps membership checks and by the dependency graph.
func depKey(sheet, loc string) string {
	return strings.ToLower(sheet) + "!" + strings.ToUpper(loc)
}

// Eval walks expr and returns its value under ctx.
func Eval(expr formula.Expr, ctx *Context) cellval.Value {
	switch e := expr.(type) {
	case formula.NumberLit:
		return cellval.NewNumber(e.Value)
	case formula.StringLit:
		return cellval.NewString(e.Value)
	case formula.BoolLit:
		return cellval.NewBool(e.Value)
	case formula.ErrorLit:
		kind, ok := cellval.ParseErrorLiteral(e.Literal)
		if !ok {
			return cellval.NewError(cellval.ParseError, "unrecognized error literal "+e.Literal)
		}
		return cellval.NewError(kind, e.Literal)
	case formula.CellRef:
		return evalCellRef(e, ctx)
	case *formula.UnaryExpr:
		return evalUnary(e, ctx)
	case *formula.BinaryExpr:
		return evalBinary(e, ctx)
	case *formula.FuncCall:
		return evalFuncCall(e, ctx)
	}
	return cellval.NewError(cellval.TypeError, "unrecognized expression node")
}

func evalCellRef(ref formula.CellRef, ctx *Context) cellval.Value {
	sheet := ref.Sheet
	if sheet == "" {
		sheet = ctx.FromSheet
	}
	if !ctx.Resolver.SheetExists(sheet) {
		return cellval.NewError(cellval.BadReference, "no such sheet: "+sheet)
	}
	if ctx.Recorder != nil {
		key := depKey(sheet, ref.Loc)
		if !ctx.StaticDeps[key] {
			ctx.Recorder.RecordProvisional(sheet, ref.Loc)
		}
	}
	return ctx.Resolver.CellValue(sheet, ref.Loc)
}

func evalUnary(e *formula.UnaryExpr, ctx *Context) cellval.Value {
	x := Eval(e.X, ctx)
	if x.IsError() {
		return x
	}
	n, ok := coerceNumber(x)
	if !ok {
		return cellval.NewError(cellval.TypeError, "cannot coerce to number")
	}
	if e.Op == "-" {
		n = n.Neg()
	}
	return cellval.NewNumber(canonical(n))
}

func evalBinary(e *formula.BinaryExpr, ctx *Context) cellval.Value {
	switch e.Op {
	case "=", "<>", "<", "<=", ">", ">=":
		return evalComparison(e, ctx)
	case "&":
		return evalConcat(e, ctx)
	default:
		return evalArithmetic(e, ctx)
	}
}

func evalArithmetic(e *formula.BinaryExpr, ctx *Context) cellval.Value {
	l := Eval(e.L, ctx)
	r := Eval(e.R, ctx)
	if errv, ok := pickError([]cellval.Value{l, r}); ok {
		return errv
	}
	ln, ok := coerceNumber(l)
	if !ok {
		return cellval.NewError(cellval.TypeError, "left operand is not numeric")
	}
	rn, ok := coerceNumber(r)
	if !ok {
		return cellval.NewError(cellval.TypeError, "right operand is not numeric")
	}
	switch e.Op {
	case "+":
		return cellval.NewNumber(canonical(ln.Add(rn)))
	case "-":
		return cellval.NewNumber(canonical(ln.Sub(rn)))
	case "*":
		return cellval.NewNumber(canonical(ln.Mul(rn)))
	case "/":
		if rn.IsZero() {
			return cellval.NewError(cellval.DivideByZero, "division by zero")
		}
		return cellval.NewNumber(canonical(ln.Div(rn)))
	}
	return cellval.NewError(cellval.TypeError, "unknown operator "+e.Op)
}

func evalConcat(e *formula.BinaryExpr, ctx *Context) cellval.Value {
	l := Eval(e.L, ctx)
	r := Eval(e.R, ctx)
	if errv, ok := pickError([]cellval.Value{l, r}); ok {
		return errv
	}
	return cellval.NewString(coerceString(l) + coerceString(r))
}

func evalComparison(e *formula.BinaryExpr, ctx *Context) cellval.Value {
	l := Eval(e.L, ctx)
	r := Eval(e.R, ctx)
	if errv, ok := pickError([]cellval.Value{l, r}); ok {
		return errv
	}
	cmp := compare(l, r)
	var result bool
	switch e.Op {
	case "=":
		result = cmp == 0
	case "<>":
		result = cmp != 0
	case "<":
		result = cmp < 0
	case "<=":
		result = cmp <= 0
	case ">":
		result = cmp > 0
	case ">=":
		result = cmp >= 0
	}
	return cellval.NewBool(result)
}

// typeRank orders types for cross-type comparison: Bool > String > Number.
func typeRank(v cellval.Value) int {
	switch v.Kind {
	case cellval.KindNumber:
		return 0
	case cellval.KindString:
		return 1
	case cellval.KindBool:
		return 2
	}
	return 0
}

// compare implements the comparison semantics of §4.5: Empty substitution by
// type default, case-insensitive string comparison, Bool > String > Number
// cross-type ordering, and never fails (coercion errors cannot arise here
// because no conversion is attempted — only same-type or Empty-substituted
// comparisons are made).
func compare(l, r cellval.Value) int {
	l, r = substituteEmpty(l, r)

	if l.Kind == r.Kind {
		switch l.Kind {
		case cellval.KindNumber:
			return l.Num.Cmp(r.Num)
		case cellval.KindString:
			ls, rs := strings.ToLower(l.Str), strings.ToLower(r.Str)
			return strings.Compare(ls, rs)
		case cellval.KindBool:
			if l.Bool == r.Bool {
				return 0
			}
			if !l.Bool && r.Bool {
				return -1
			}
			return 1
		}
		return 0
	}

	lr, rr := typeRank(l), typeRank(r)
	if lr < rr {
		return -1
	}
	return 1
}

// substituteEmpty replaces an Empty operand with the type-default of the
// other operand; when both are Empty, both become the Number zero.
func substituteEmpty(l, r cellval.Value) (cellval.Value, cellval.Value) {
	if l.IsEmpty() && r.IsEmpty() {
		return cellval.NewNumber(decimal.Zero), cellval.NewNumber(decimal.Zero)
	}
	if l.IsEmpty() {
		l = typeDefault(r)
	}
	if r.IsEmpty() {
		r = typeDefault(l)
	}
	return l, r
}

func typeDefault(v cellval.Value) cellval.Value {
	switch v.Kind {
	case cellval.KindNumber:
		return cellval.NewNumber(decimal.Zero)
	case cellval.KindString:
		return cellval.NewString("")
	case cellval.KindBool:
		return cellval.NewBool(false)
	}
	return cellval.NewNumber(decimal.Zero)
}

// coerceNumber implements the "to Number" coercion rule. It never succeeds
// for Error values; callers check for errors before coercing.
func coerceNumber(v cellval.Value) (decimal.Decimal, bool) {
	switch v.Kind {
	case cellval.KindEmpty:
		return decimal.Zero, true
	case cellval.KindNumber:
		return v.Num, true
	case cellval.KindBool:
		if v.Bool {
			return decimal.NewFromInt(1), true
		}
		return decimal.Zero, true
	case cellval.KindString:
		s := strings.TrimPrefix(v.Str, "'")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}
	return decimal.Decimal{}, false
}

// coerceString implements the "to String" coercion rule, which never fails.
func coerceString(v cellval.Value) string {
	switch v.Kind {
	case cellval.KindEmpty:
		return ""
	case cellval.KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case cellval.KindNumber:
		return cellval.CanonicalDecimal(v.Num)
	case cellval.KindString:
		return v.Str
	case cellval.KindError:
		return v.ErrVal.Kind.Literal()
	}
	return ""
}

// coerceBool implements the "to Bool" coercion rule.
func coerceBool(v cellval.Value) (bool, bool) {
	switch v.Kind {
	case cellval.KindEmpty:
		return false, true
	case cellval.KindBool:
		return v.Bool, true
	case cellval.KindString:
		switch strings.ToUpper(v.Str) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
		return false, false
	case cellval.KindNumber:
		return !v.Num.IsZero(), true
	}
	return false, false
}

// canonical trims trailing fractional zeros and any trailing decimal point,
// matching the original tooling's canonicalization of decimal results.
func canonical(d decimal.Decimal) decimal.Decimal {
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

// pickError scans vals left-to-right and returns the highest-priority error
// present: PARSE_ERROR beats CIRCULAR_REFERENCE beats everything else, and
// ties among "everything else" are broken by first occurrence.
func pickError(vals []cellval.Value) (cellval.Value, bool) {
	var circ, rest cellval.Value
	foundCirc, foundRest := false, false
	for _, v := range vals {
		if !v.IsError() {
			continue
		}
		if v.ErrVal.Kind == cellval.ParseError {
			return v, true
		}
		if v.ErrVal.Kind == cellval.CircularReference {
			if !foundCirc {
				circ, foundCirc = v, true
			}
			continue
		}
		if !foundRest {
			rest, foundRest = v, true
		}
	}
	if foundCirc {
		return circ, true
	}
	if foundRest {
		return rest, true
	}
	return cellval.Value{}, false
}

// parseIntArg coerces v to an integer, used by CHOOSE's index argument.
func parseIntArg(v cellval.Value) (int, bool) {
	n, ok := coerceNumber(v)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(n.Truncate(0).String())
	if err != nil {
		return 0, false
	}
	return i, true
}
