package eval

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalexmills/workbook/internal/cellval"
	"github.com/kalexmills/workbook/internal/formula"
)

// fakeResolver is a minimal in-memory Resolver for evaluator tests.
type fakeResolver struct {
	sheets map[string]bool
	cells  map[string]cellval.Value // key: lower(sheet)+"!"+upper(loc)
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{sheets: map[string]bool{}, cells: map[string]cellval.Value{}}
}

func (f *fakeResolver) addSheet(name string) { f.sheets[name] = true }

func (f *fakeResolver) set(sheet, loc string, v cellval.Value) {
	f.cells[depKey(sheet, loc)] = v
}

func (f *fakeResolver) SheetExists(name string) bool {
	for s := range f.sheets {
		if equalFold(s, name) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 32
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 32
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func (f *fakeResolver) CellValue(sheet, loc string) cellval.Value {
	v, ok := f.cells[depKey(sheet, loc)]
	if !ok {
		return cellval.Empty
	}
	return v
}

// recordingRecorder captures provisional edges for assertions.
type recordingRecorder struct {
	edges [][2]string
}

func (r *recordingRecorder) RecordProvisional(sheet, loc string) {
	r.edges = append(r.edges, [2]string{sheet, loc})
}

func evalSrc(t *testing.T, src string, ctx *Context) cellval.Value {
	t.Helper()
	expr, err := formula.Parse(src)
	require.NoError(t, err)
	return Eval(expr, ctx)
}

func TestAdditionAcrossSheets(t *testing.T) {
	r := newFakeResolver()
	r.addSheet("Sheet1")
	r.set("Sheet1", "A1", cellval.NewNumber(decimal.NewFromInt(12)))
	r.set("Sheet1", "B1", cellval.NewNumber(decimal.NewFromInt(34)))
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}

	got := evalSrc(t, "Sheet1!A1+Sheet1!B1", ctx)
	require.Equal(t, cellval.KindNumber, got.Kind)
	assert.True(t, decimal.NewFromInt(46).Equal(got.Num))
}

func TestBadReferenceMissingSheet(t *testing.T) {
	r := newFakeResolver()
	r.addSheet("Sheet1")
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}

	got := evalSrc(t, "Nonexistent!B4", ctx)
	require.True(t, got.IsError())
	assert.Equal(t, cellval.BadReference, got.ErrVal.Kind)
}

func TestDivideByZeroPropagates(t *testing.T) {
	r := newFakeResolver()
	r.addSheet("Sheet1")
	r.set("Sheet1", "E1", cellval.NewError(cellval.DivideByZero, "x"))
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}

	got := evalSrc(t, "E1+5", ctx)
	require.True(t, got.IsError())
	assert.Equal(t, cellval.DivideByZero, got.ErrVal.Kind)

	got2 := evalSrc(t, "1/0", ctx)
	require.True(t, got2.IsError())
	assert.Equal(t, cellval.DivideByZero, got2.ErrVal.Kind)
}

func TestErrorPriorityParseBeatsCircular(t *testing.T) {
	circ := cellval.NewError(cellval.CircularReference, "")
	parse := cellval.NewError(cellval.ParseError, "")
	refErr := cellval.NewError(cellval.BadReference, "")

	got, ok := pickError([]cellval.Value{circ, parse})
	require.True(t, ok)
	assert.Equal(t, cellval.ParseError, got.ErrVal.Kind)

	got, ok = pickError([]cellval.Value{refErr, circ})
	require.True(t, ok)
	assert.Equal(t, cellval.CircularReference, got.ErrVal.Kind)

	got, ok = pickError([]cellval.Value{refErr, cellval.NewError(cellval.TypeError, "")})
	require.True(t, ok)
	assert.Equal(t, cellval.BadReference, got.ErrVal.Kind, "first-encountered wins among non-priority kinds")
}

func TestLazyIfErrorShortCircuit(t *testing.T) {
	r := newFakeResolver()
	r.addSheet("Sheet1")
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}

	got := evalSrc(t, "IFERROR(#REF!,5)", ctx)
	require.Equal(t, cellval.KindNumber, got.Kind)
	assert.True(t, decimal.NewFromInt(5).Equal(got.Num))
}

func TestLazyChooseShortCircuit(t *testing.T) {
	r := newFakeResolver()
	r.addSheet("Sheet1")
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}

	got := evalSrc(t, "CHOOSE(1,7,#DIV/0!)", ctx)
	require.Equal(t, cellval.KindNumber, got.Kind)
	assert.True(t, decimal.NewFromInt(7).Equal(got.Num))
}

func TestIndirectDiscovery(t *testing.T) {
	r := newFakeResolver()
	r.addSheet("Sheet1")
	r.set("Sheet1", "A1", cellval.NewString("Z1"))
	r.set("Sheet1", "Z1", cellval.NewNumber(decimal.NewFromInt(99)))
	rec := &recordingRecorder{}
	ctx := &Context{Resolver: r, Recorder: rec, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}

	got := evalSrc(t, "INDIRECT(A1)", ctx)
	require.Equal(t, cellval.KindNumber, got.Kind)
	assert.True(t, decimal.NewFromInt(99).Equal(got.Num))
	assert.Contains(t, rec.edges, [2]string{"Sheet1", "Z1"})
}

func TestComparisonCrossType(t *testing.T) {
	r := newFakeResolver()
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}

	got := evalSrc(t, `TRUE>"abc"`, ctx)
	assert.Equal(t, cellval.NewBool(true), got)

	got = evalSrc(t, `"abc">1`, ctx)
	assert.Equal(t, cellval.NewBool(true), got)
}

func TestComparisonCaseInsensitiveStrings(t *testing.T) {
	r := newFakeResolver()
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}
	got := evalSrc(t, `"ABC"="abc"`, ctx)
	assert.Equal(t, cellval.NewBool(true), got)
}

func TestEmptySubstitution(t *testing.T) {
	r := newFakeResolver()
	r.addSheet("Sheet1")
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}
	got := evalSrc(t, "A1=0", ctx)
	assert.Equal(t, cellval.NewBool(true), got)
}

func TestFunctionAndOrNot(t *testing.T) {
	r := newFakeResolver()
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}
	assert.Equal(t, cellval.NewBool(true), evalSrc(t, "AND(TRUE,TRUE)", ctx))
	assert.Equal(t, cellval.NewBool(false), evalSrc(t, "AND(TRUE,FALSE)", ctx))
	assert.Equal(t, cellval.NewBool(true), evalSrc(t, "OR(FALSE,TRUE)", ctx))
	assert.Equal(t, cellval.NewBool(false), evalSrc(t, "NOT(TRUE)", ctx))
	assert.Equal(t, cellval.NewBool(true), evalSrc(t, "XOR(TRUE,FALSE)", ctx))
	assert.Equal(t, cellval.NewBool(false), evalSrc(t, "XOR(TRUE,TRUE)", ctx))
}

func TestFunctionExactAndIsError(t *testing.T) {
	r := newFakeResolver()
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}
	assert.Equal(t, cellval.NewBool(false), evalSrc(t, `EXACT("Abc","abc")`, ctx))
	assert.Equal(t, cellval.NewBool(true), evalSrc(t, `EXACT("abc","abc")`, ctx))
	assert.Equal(t, cellval.NewBool(true), evalSrc(t, "ISERROR(#REF!)", ctx))
	assert.Equal(t, cellval.NewBool(false), evalSrc(t, "ISERROR(5)", ctx))
}

func TestFunctionIsblankVsEmptyString(t *testing.T) {
	r := newFakeResolver()
	r.addSheet("Sheet1")
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}
	assert.Equal(t, cellval.NewBool(true), evalSrc(t, "ISBLANK(A1)", ctx))
	assert.Equal(t, cellval.NewBool(false), evalSrc(t, `ISBLANK("")`, ctx))

	got := evalSrc(t, "ISBLANK(#REF!)", ctx)
	require.True(t, got.IsError())
	assert.Equal(t, cellval.BadReference, got.ErrVal.Kind)
}

func TestFunctionUnknownName(t *testing.T) {
	r := newFakeResolver()
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}
	got := evalSrc(t, "NOSUCHFUNC(1)", ctx)
	require.True(t, got.IsError())
	assert.Equal(t, cellval.BadName, got.ErrVal.Kind)
}

func TestFunctionWrongArgCount(t *testing.T) {
	r := newFakeResolver()
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}
	got := evalSrc(t, "NOT(TRUE,FALSE)", ctx)
	require.True(t, got.IsError())
	assert.Equal(t, cellval.TypeError, got.ErrVal.Kind)
}

func TestVersionFunction(t *testing.T) {
	r := newFakeResolver()
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}, Version: "1.3"}
	got := evalSrc(t, "VERSION()", ctx)
	assert.Equal(t, cellval.NewString("1.3"), got)
}

func TestCanonicalizationTrimsTrailingZeros(t *testing.T) {
	r := newFakeResolver()
	ctx := &Context{Resolver: r, FromSheet: "Sheet1", StaticDeps: map[string]bool{}}
	got := evalSrc(t, "10/4", ctx)
	require.Equal(t, cellval.KindNumber, got.Kind)
	assert.Equal(t, "2.5", cellval.CanonicalDecimal(got.Num))
}
