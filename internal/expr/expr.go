// Package expr implements the tiny arithmetic expression language
// embedded in calc(...) style values (spec §4.2): literals with unit
// suffixes, url(#fragment.dotted.path) references into a per-compile
// ExpressionContext, the four binary operators, unary minus, and
// parentheses. All numeric results are milliseconds.
package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stylesheet-video/compiler/internal/compileerr"
)

// TimeData is the resolved timing of a single fragment, as exposed to
// expressions via url(#id.time.start|end|duration).
type TimeData struct {
	StartMS    float64
	EndMS      float64
	DurationMS float64
}

// Context maps fragment id to its resolved timing. The Timeline
// Compiler builds this incrementally across the two-pass resolution in
// spec §4.2.
type Context struct {
	Fragments map[string]TimeData
}

func NewContext() *Context {
	return &Context{Fragments: make(map[string]TimeData)}
}

func (c *Context) Set(fragmentID string, t TimeData) {
	c.Fragments[fragmentID] = t
}

// Ref is one url(#fragmentID.path) reference found in an expression.
type Ref struct {
	FragmentID string
	Path       string // e.g. "time.start"
	VarName    string // flattened identifier substituted into the arithmetic text
}

// CompiledExpression is the result of Parse: a flattened arithmetic
// AST plus the list of references it needs bound before it can be
// evaluated.
type CompiledExpression struct {
	Original string
	Refs     []Ref
	ast      node
}

var refPattern = regexp.MustCompile(`url\(#([A-Za-z0-9_-]+)((?:\.[A-Za-z0-9_]+)+)\)`)
var literalUnitPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)(ms|s)\b`)

func flattenVarName(fragmentID, path string) string {
	id := strings.ReplaceAll(fragmentID, "-", "_")
	rest := strings.ReplaceAll(path, ".", "_")
	return id + "_" + rest
}

// Parse replaces calc( with (, rewrites each url(#id.a.b.c) to a flat
// variable name, converts unit suffixes to canonical milliseconds, and
// parses the remainder as an arithmetic expression.
func Parse(raw string) (*CompiledExpression, error) {
	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "calc(", "(")

	var refs []Ref
	seen := map[string]bool{}
	rewritten := refPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := refPattern.FindStringSubmatch(m)
		fragmentID := sub[1]
		path := strings.TrimPrefix(sub[2], ".")
		varName := flattenVarName(fragmentID, path)
		if !seen[varName] {
			seen[varName] = true
			refs = append(refs, Ref{FragmentID: fragmentID, Path: path, VarName: varName})
		}
		return varName
	})

	rewritten = literalUnitPattern.ReplaceAllStringFunc(rewritten, func(m string) string {
		sub := literalUnitPattern.FindStringSubmatch(m)
		num := sub[1]
		unit := sub[2]
		if unit == "ms" {
			return num
		}
		return "(" + num + "*1000)"
	})

	ast, err := parseArithmetic(rewritten)
	if err != nil {
		return nil, compileerr.ExpressionParseError(raw, err)
	}

	return &CompiledExpression{Original: raw, Refs: refs, ast: ast}, nil
}

// Evaluate resolves every reference against ctx and evaluates the
// compiled arithmetic expression.
func (c *CompiledExpression) Evaluate(ctx *Context) (float64, error) {
	vars := make(map[string]float64, len(c.Refs))
	for _, ref := range c.Refs {
		data, ok := ctx.Fragments[ref.FragmentID]
		if !ok {
			return 0, compileerr.ExpressionEvalError(c.Original,
				fmt.Errorf("unknown fragment id %q", ref.FragmentID))
		}
		val, err := resolvePath(data, ref.Path)
		if err != nil {
			return 0, compileerr.ExpressionEvalError(c.Original, err)
		}
		vars[ref.VarName] = val
	}

	result, err := c.ast.eval(vars)
	if err != nil {
		return 0, compileerr.ExpressionEvalError(c.Original, err)
	}
	return result, nil
}

func resolvePath(data TimeData, path string) (float64, error) {
	switch path {
	case "time.start":
		return data.StartMS, nil
	case "time.end":
		return data.EndMS, nil
	case "time.duration":
		return data.DurationMS, nil
	default:
		return 0, fmt.Errorf("unknown property path %q", path)
	}
}

// IsCalc reports whether a style value is a calc(...) expression
// rather than a literal.
func IsCalc(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "calc(")
}

// IsPercent reports whether a style value is the literal "100%" form
// duration accepts (spec §4.7 step 1: "100% meaning the source asset's
// duration minus trim-start").
func IsPercent(value string) bool {
	return strings.TrimSpace(value) == "100%"
}

var bareLiteralPattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)(ms|s)?$`)

// ParseLiteralMS parses a bare "500ms" / "0.5s" / "500" (ms assumed)
// literal timing value into milliseconds. It does not handle calc(...)
// or percent values; callers check IsCalc/IsPercent first.
func ParseLiteralMS(value string) (int64, error) {
	text := strings.TrimSpace(value)
	m := bareLiteralPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, compileerr.ExpressionParseError(value, fmt.Errorf("not a literal timing value"))
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, compileerr.ExpressionParseError(value, err)
	}
	if m[2] == "s" {
		return int64(n * 1000), nil
	}
	return int64(n), nil
}

// ---- arithmetic AST ----

type node interface {
	eval(vars map[string]float64) (float64, error)
}

type numberNode float64

func (n numberNode) eval(map[string]float64) (float64, error) { return float64(n), nil }

type identNode string

func (n identNode) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("unbound variable %q", string(n))
	}
	return v, nil
}

type unaryNode struct {
	op      byte
	operand node
}

func (n unaryNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return 0, err
	}
	if n.op == '-' {
		return -v, nil
	}
	return v, nil
}

type binaryNode struct {
	op          byte
	left, right node
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

// ---- recursive-descent parser over +,-,*,/, unary -, parens, idents, numbers ----

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	n := len(s)
	for i < n {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			toks = append(toks, token{tokPlus, "+"})
			i++
		case c == '-':
			toks = append(toks, token{tokMinus, "-"})
			i++
		case c == '*':
			toks = append(toks, token{tokStar, "*"})
			i++
		case c == '/':
			toks = append(toks, token{tokSlash, "/"})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case isDigit(c) || c == '.':
			j := i
			for j < n && (isDigit(s[j]) || s[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

type parser struct {
	toks []token
	pos  int
}

func parseArithmetic(s string) (node, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing token %q", p.peek().text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// expr := term (('+'|'-') term)*
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokPlus, tokMinus:
			op := p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			opByte := byte('+')
			if op.kind == tokMinus {
				opByte = '-'
			}
			left = binaryNode{op: opByte, left: left, right: right}
		default:
			return left, nil
		}
	}
}

// term := unary (('*'|'/') unary)*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokStar, tokSlash:
			op := p.next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			opByte := byte('*')
			if op.kind == tokSlash {
				opByte = '/'
			}
			left = binaryNode{op: opByte, left: left, right: right}
		default:
			return left, nil
		}
	}
}

// unary := '-' unary | primary
func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: '-', operand: operand}, nil
	}
	if p.peek().kind == tokPlus {
		p.next()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

// primary := NUMBER | IDENT | '(' expr ')'
func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return numberNode(v), nil
	case tokIdent:
		p.next()
		return identNode(t.text), nil
	case tokLParen:
		p.next()
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("expected closing parenthesis")
		}
		p.next()
		return n, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", t.text)
	}
}
