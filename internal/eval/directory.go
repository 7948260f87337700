package eval

import (
	"strings"

	"github.com/kalexmills/workbook/internal/cellval"
	"github.com/kalexmills/workbook/internal/formula"
)

// lazyFuncs names the functions that receive unevaluated argument subtrees
// and choose what to visit, per §4.6.
var lazyFuncs = map[string]bool{
	"IF":       true,
	"IFERROR":  true,
	"CHOOSE":   true,
	"INDIRECT": true,
}

// IsLazy reports whether name is one of the evaluation-time-dependent
// functions, used by callers deciding whether to rely on static reference
// scanning alone.
func IsLazy(name string) bool {
	return lazyFuncs[strings.ToUpper(name)]
}

func evalFuncCall(call *formula.FuncCall, ctx *Context) cellval.Value {
	name := strings.ToUpper(call.Name)
	switch name {
	case "IF":
		return evalIf(call.Args, ctx)
	case "IFERROR":
		return evalIferror(call.Args, ctx)
	case "CHOOSE":
		return evalChoose(call.Args, ctx)
	case "INDIRECT":
		return evalIndirect(call.Args, ctx)
	}

	args := evalArgs(call.Args, ctx)

	switch name {
	case "AND":
		return evalAndOr(args, true)
	case "OR":
		return evalAndOr(args, false)
	case "XOR":
		return evalXor(args)
	case "NOT":
		return evalNot(args)
	case "EXACT":
		return evalExact(args)
	case "ISBLANK":
		return evalIsblank(call.Args, args)
	case "ISERROR":
		return evalIserror(args)
	case "VERSION":
		return evalVersion(args, ctx)
	}
	return cellval.NewError(cellval.BadName, "unknown function "+call.Name)
}

// evalArgs evaluates every non-nil argument in order; a trailing nil slot
// (from a trailing comma, §6.3) is dropped rather than evaluated.
func evalArgs(args []formula.Expr, ctx *Context) []cellval.Value {
	vals := make([]cellval.Value, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		vals = append(vals, Eval(a, ctx))
	}
	return vals
}

func evalAndOr(args []cellval.Value, isAnd bool) cellval.Value {
	if len(args) < 1 {
		return cellval.NewError(cellval.TypeError, "requires at least 1 argument")
	}
	if errv, ok := pickError(args); ok {
		return errv
	}
	result := isAnd
	for _, v := range args {
		b, ok := coerceBool(v)
		if !ok {
			return cellval.NewError(cellval.TypeError, "argument is not boolean")
		}
		if isAnd {
			result = result && b
		} else {
			result = result || b
		}
	}
	return cellval.NewBool(result)
}

func evalXor(args []cellval.Value) cellval.Value {
	if len(args) < 1 {
		return cellval.NewError(cellval.TypeError, "requires at least 1 argument")
	}
	if errv, ok := pickError(args); ok {
		return errv
	}
	count := 0
	for _, v := range args {
		b, ok := coerceBool(v)
		if !ok {
			return cellval.NewError(cellval.TypeError, "argument is not boolean")
		}
		if b {
			count++
		}
	}
	return cellval.NewBool(count%2 == 1)
}

func evalNot(args []cellval.Value) cellval.Value {
	if len(args) != 1 {
		return cellval.NewError(cellval.TypeError, "NOT requires exactly 1 argument")
	}
	if errv, ok := pickError(args); ok {
		return errv
	}
	b, ok := coerceBool(args[0])
	if !ok {
		return cellval.NewError(cellval.TypeError, "argument is not boolean")
	}
	return cellval.NewBool(!b)
}

func evalExact(args []cellval.Value) cellval.Value {
	if len(args) != 2 {
		return cellval.NewError(cellval.TypeError, "EXACT requires exactly 2 arguments")
	}
	if errv, ok := pickError(args); ok {
		return errv
	}
	if args[0].Kind != cellval.KindString || args[1].Kind != cellval.KindString {
		return cellval.NewError(cellval.TypeError, "EXACT requires string arguments")
	}
	return cellval.NewBool(args[0].Str == args[1].Str)
}

// evalIsblank reports Empty-ness of the *unevaluated* first argument's
// result, not string-emptiness: "" (String) is not blank.
func evalIsblank(rawArgs []formula.Expr, args []cellval.Value) cellval.Value {
	if len(rawArgs) != 1 || len(args) != 1 {
		return cellval.NewError(cellval.TypeError, "ISBLANK requires exactly 1 argument")
	}
	if errv, ok := pickError(args); ok {
		return errv
	}
	return cellval.NewBool(args[0].IsEmpty())
}

// evalIserror reports Error-ness without propagating the error itself.
func evalIserror(args []cellval.Value) cellval.Value {
	if len(args) != 1 {
		return cellval.NewError(cellval.TypeError, "ISERROR requires exactly 1 argument")
	}
	return cellval.NewBool(args[0].IsError())
}

func evalVersion(args []cellval.Value, ctx *Context) cellval.Value {
	if len(args) != 0 {
		return cellval.NewError(cellval.TypeError, "VERSION takes no arguments")
	}
	return cellval.NewString(ctx.Version)
}

// evalIf implements IF's lazy-branch semantics: only the selected branch is
// visited, so errors in the other branch never propagate.
func evalIf(args []formula.Expr, ctx *Context) cellval.Value {
	args = trimTrailingNil(args)
	if len(args) < 2 || len(args) > 3 {
		return cellval.NewError(cellval.TypeError, "IF requires 2 or 3 arguments")
	}
	cond := Eval(args[0], ctx)
	if cond.IsError() {
		return cond
	}
	b, ok := coerceBool(cond)
	if !ok {
		return cellval.NewError(cellval.TypeError, "IF condition is not boolean")
	}
	if b {
		return Eval(args[1], ctx)
	}
	if len(args) == 3 {
		return Eval(args[2], ctx)
	}
	return cellval.Empty
}

// evalIferror evaluates its first argument and, if it errored, returns the
// fallback (or empty string if none given) instead of propagating.
func evalIferror(args []formula.Expr, ctx *Context) cellval.Value {
	args = trimTrailingNil(args)
	if len(args) < 1 || len(args) > 2 {
		return cellval.NewError(cellval.TypeError, "IFERROR requires 1 or 2 arguments")
	}
	v := Eval(args[0], ctx)
	if !v.IsError() {
		return v
	}
	if len(args) == 2 {
		return Eval(args[1], ctx)
	}
	return cellval.NewString("")
}

// evalChoose evaluates only the branch selected by its 1-based index
// argument; other branches are never visited, so their errors never
// propagate.
func evalChoose(args []formula.Expr, ctx *Context) cellval.Value {
	args = trimTrailingNil(args)
	if len(args) < 2 {
		return cellval.NewError(cellval.TypeError, "CHOOSE requires at least 2 arguments")
	}
	idxVal := Eval(args[0], ctx)
	if idxVal.IsError() {
		return idxVal
	}
	idx, ok := parseIntArg(idxVal)
	if !ok {
		return cellval.NewError(cellval.TypeError, "CHOOSE index is not numeric")
	}
	choices := args[1:]
	if idx < 1 || idx > len(choices) {
		return cellval.NewError(cellval.BadReference, "CHOOSE index out of range")
	}
	return Eval(choices[idx-1], ctx)
}

// evalIndirect returns an Error argument unchanged; any other argument is
// coerced to a string, parsed as a cell reference (bare or sheet-qualified),
// and that reference is evaluated, recording a provisional
// dependency edge the same way any other dynamically-discovered reference
// would be recorded.
func evalIndirect(args []formula.Expr, ctx *Context) cellval.Value {
	args = trimTrailingNil(args)
	if len(args) != 1 {
		return cellval.NewError(cellval.TypeError, "INDIRECT requires exactly 1 argument")
	}
	v := Eval(args[0], ctx)
	if v.IsError() {
		return v
	}
	s := coerceString(v)
	ref, err := formula.Parse(s)
	if err != nil {
		return cellval.NewError(cellval.BadReference, "not a valid reference: "+s)
	}
	cellRef, isRef := ref.(formula.CellRef)
	if !isRef {
		return cellval.NewError(cellval.BadReference, "not a valid reference: "+s)
	}
	return Eval(cellRef, ctx)
}

// trimTrailingNil drops a single trailing nil slot (empty argument from a
// trailing comma), per the documented grammar tolerance.
func trimTrailingNil(args []formula.Expr) []formula.Expr {
	if len(args) > 0 && args[len(args)-1] == nil {
		return args[:len(args)-1]
	}
	return args
}
