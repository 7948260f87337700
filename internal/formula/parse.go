package formula

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrTokenize is returned for lexical errors: unterminated literals or
// characters outside the grammar.
var ErrTokenize = errors.New("formula: tokenize error")

// ErrParse is returned when a formula's tokens do not form a valid
// expression.
var ErrParse = errors.New("formula: parse error")

// Parse parses a formula body (the text after the leading "="). It does not
// itself strip the "=" prefix; callers classifying cell contents do that.
func Parse(src string) (Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != TokEOF {
		return nil, fmt.Errorf("%w: unexpected token %q at %d", ErrParse, p.cur().Text, p.cur().Pos)
	}
	return expr, nil
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) cur() Token  { return p.toks[p.pos] }
func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// parseComparison handles the lowest-precedence tier: =/==, <>/!=, <, <=, >,
// >=. Synonym operators are normalized to a single canonical spelling.
func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Kind {
		case TokEq, TokEqEq:
			op = "="
		case TokNotEq:
			op = "<>"
		case TokLt:
			op = "<"
		case TokLtEq:
			op = "<="
		case TokGt:
			op = ">"
		case TokGtEq:
			op = ">="
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, L: left, R: right}
	}
}

func (p *parser) parseConcat() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokAmp {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "&", L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokPlus || p.cur().Kind == TokMinus {
		op := "+"
		if p.cur().Kind == TokMinus {
			op = "-"
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokStar || p.cur().Kind == TokSlash {
		op := "*"
		if p.cur().Kind == TokSlash {
			op = "/"
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.cur().Kind == TokPlus || p.cur().Kind == TokMinus {
		op := "+"
		if p.cur().Kind == TokMinus {
			op = "-"
		}
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case TokNumber:
		p.advance()
		d, err := decimal.NewFromString(tok.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q at %d", ErrParse, tok.Text, tok.Pos)
		}
		return NumberLit{Value: d}, nil
	case TokString:
		p.advance()
		return StringLit{Value: tok.Text}, nil
	case TokErrorLit:
		p.advance()
		return ErrorLit{Literal: tok.Text}, nil
	case TokLParen:
		p.advance()
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != TokRParen {
			return nil, fmt.Errorf("%w: expected ')' at %d", ErrParse, p.cur().Pos)
		}
		p.advance()
		return inner, nil
	case TokLoc:
		p.advance()
		return parseCellRef("", tok.Text), nil
	case TokQuotedSheet:
		sheet := tok.Text
		p.advance()
		if p.cur().Kind != TokBang {
			return nil, fmt.Errorf("%w: expected '!' after sheet name at %d", ErrParse, p.cur().Pos)
		}
		p.advance()
		loc := p.cur()
		if loc.Kind != TokLoc {
			return nil, fmt.Errorf("%w: expected cell location after '!' at %d", ErrParse, loc.Pos)
		}
		p.advance()
		return parseCellRef(sheet, loc.Text), nil
	case TokIdent:
		name := tok.Text
		p.advance()
		if strings.EqualFold(name, "true") {
			return BoolLit{Value: true}, nil
		}
		if strings.EqualFold(name, "false") {
			return BoolLit{Value: false}, nil
		}
		if p.cur().Kind == TokBang {
			p.advance()
			loc := p.cur()
			if loc.Kind != TokLoc {
				return nil, fmt.Errorf("%w: expected cell location after '!' at %d", ErrParse, loc.Pos)
			}
			p.advance()
			return parseCellRef(name, loc.Text), nil
		}
		if p.cur().Kind == TokLParen {
			return p.parseFuncCall(name)
		}
		return nil, fmt.Errorf("%w: unknown identifier %q at %d", ErrParse, name, tok.Pos)
	}
	return nil, fmt.Errorf("%w: unexpected token %q at %d", ErrParse, tok.Text, tok.Pos)
}

func (p *parser) parseFuncCall(name string) (Expr, error) {
	p.advance() // '('
	var args []Expr
	if p.cur().Kind == TokRParen {
		p.advance()
		return &FuncCall{Name: name, Args: args}, nil
	}
	for {
		if p.cur().Kind == TokComma || p.cur().Kind == TokRParen {
			// empty argument slot, e.g. trailing comma: SUM(1,2,)
			args = append(args, nil)
		} else {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		if p.cur().Kind == TokRParen {
			p.advance()
			break
		}
		return nil, fmt.Errorf("%w: expected ',' or ')' in call to %s at %d", ErrParse, name, p.cur().Pos)
	}
	return &FuncCall{Name: name, Args: args}, nil
}

// parseCellRef splits a scanned location token (which may carry "$" markers)
// into a CellRef with the markers recorded separately and the location text
// upper-cased and stripped of them.
func parseCellRef(sheet, raw string) CellRef {
	colAbs := false
	rowAbs := false
	var sb strings.Builder
	seenDigit := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '$' {
			if !seenDigit {
				colAbs = true
			} else {
				rowAbs = true
			}
			continue
		}
		if c >= '0' && c <= '9' {
			seenDigit = true
		}
		sb.WriteByte(c)
	}
	return CellRef{
		Sheet:  sheet,
		Loc:    strings.ToUpper(sb.String()),
		ColAbs: colAbs,
		RowAbs: rowAbs,
	}
}

var (
	cacheMu sync.Mutex
	cache   = map[string]cacheEntry{}
)

type cacheEntry struct {
	expr Expr
	err  error
}

// ParseCached parses src, memoizing the result keyed by the exact formula
// text. The cache is unbounded: it grows with the set of distinct formula
// strings ever seen by the process, matching the original tooling's
// parse-tree cache.
func ParseCached(src string) (Expr, error) {
	cacheMu.Lock()
	if e, ok := cache[src]; ok {
		cacheMu.Unlock()
		return e.expr, e.err
	}
	cacheMu.Unlock()

	expr, err := Parse(src)

	cacheMu.Lock()
	cache[src] = cacheEntry{expr: expr, err: err}
	cacheMu.Unlock()

	return expr, err
}
