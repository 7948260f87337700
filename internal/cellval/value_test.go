package cellval

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseErrorLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want ErrorKind
		ok   bool
	}{
		{"#DIV/0!", DivideByZero, true},
		{"#error!", ParseError, true},
		{"#CIRCREF!", CircularReference, true},
		{"#Ref!", BadReference, true},
		{"#NAME?", BadName, true},
		{"#VALUE!", TypeError, true},
		{"#NOPE!", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseErrorLiteral(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestErrorKindLiteralRoundTrip(t *testing.T) {
	kinds := []ErrorKind{ParseError, CircularReference, BadReference, BadName, TypeError, DivideByZero}
	for _, k := range kinds {
		lit := k.Literal()
		back, ok := ParseErrorLiteral(lit)
		assert.True(t, ok)
		if k == ParseError {
			assert.Equal(t, ParseError, back)
		} else {
			assert.Equal(t, k, back)
		}
	}
}

func TestValueEqual(t *testing.T) {
	five := NewNumber(decimal.NewFromInt(5))
	fiveAgain := NewNumber(decimal.NewFromInt(5))
	six := NewNumber(decimal.NewFromInt(6))

	assert.True(t, five.Equal(fiveAgain))
	assert.False(t, five.Equal(six))
	assert.True(t, Empty.Equal(Value{Kind: KindEmpty}))
	assert.False(t, Empty.Equal(five))

	assert.True(t, NewString("a").Equal(NewString("a")))
	assert.False(t, NewString("a").Equal(NewString("b")))

	assert.True(t, NewBool(true).Equal(NewBool(true)))
	assert.False(t, NewBool(true).Equal(NewBool(false)))

	e1 := NewError(BadReference, "x")
	e2 := NewError(BadReference, "y")
	e3 := NewError(TypeError, "x")
	assert.True(t, e1.Equal(e2), "errors equal by Kind alone, Detail ignored")
	assert.False(t, e1.Equal(e3))
}

func TestValueKindString(t *testing.T) {
	assert.Equal(t, "Number", NewNumber(decimal.Zero).Kind.String())
	assert.Equal(t, "Empty", Empty.Kind.String())
	assert.Equal(t, "Bool", NewBool(true).Kind.String())
	assert.Equal(t, "String", NewString("x").Kind.String())
	assert.Equal(t, "Error", NewError(TypeError, "").Kind.String())
}

func TestIsErrorIsEmpty(t *testing.T) {
	assert.True(t, NewError(BadName, "").IsError())
	assert.False(t, NewNumber(decimal.Zero).IsError())
	assert.True(t, Empty.IsEmpty())
	assert.False(t, NewNumber(decimal.Zero).IsEmpty())
}

func TestCanonicalDecimal(t *testing.T) {
	d, err := decimal.NewFromString("3.1400")
	assert.NoError(t, err)
	assert.Equal(t, "3.14", CanonicalDecimal(d))

	whole, err := decimal.NewFromString("7.000")
	assert.NoError(t, err)
	assert.Equal(t, "7", CanonicalDecimal(whole))
}
