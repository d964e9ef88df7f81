package shader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrPreprocess is wrapped by every error returned from Preprocess.
var ErrPreprocess = errors.New("shader: preprocess failed")

// maxExpansionDepth bounds recursive macro substitution.
const maxExpansionDepth = 16

// Preprocess resolves C-style conditional directives in src.
//
// Supported directives are #define, #undef, #ifdef, #ifndef, #if, #elif,
// #else, #endif and #error. #if and #elif accept defined(NAME), defined NAME,
// integer literals, macro names, the operators ! && || == != < > <= >= and
// parentheses. Object-like macros are substituted in active code lines.
//
// Directive lines and inactive lines are replaced by empty lines so that
// compiler diagnostics keep pointing at the original line numbers.
// defines seeds the macro table and is not modified.
func Preprocess(src string, defines map[string]string) (string, error) {
	p := preprocessor{macros: make(map[string]string, len(defines))}
	for k, v := range defines {
		p.macros[k] = v
	}
	lines := strings.Split(src, "\n")
	var out strings.Builder
	out.Grow(len(src))
	for i, line := range lines {
		if i > 0 {
			out.WriteByte('\n')
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			p.lineNo = i + 1
			if err := p.directive(trimmed[1:]); err != nil {
				return "", fmt.Errorf("%w: line %d: %w", ErrPreprocess, i+1, err)
			}
			continue
		}
		if !p.active() {
			continue
		}
		out.WriteString(p.expand(line, 0))
	}
	if len(p.stack) > 0 {
		return "", fmt.Errorf("%w: unterminated #if block opened on line %d", ErrPreprocess, p.stack[len(p.stack)-1].line)
	}
	return out.String(), nil
}

type condFrame struct {
	parent bool // enclosing block is active
	taken  bool // some branch of this block was taken
	on     bool // current branch is active
	sawEls bool
	line   int
}

type preprocessor struct {
	macros map[string]string
	stack  []condFrame
	lineNo int
}

func (p *preprocessor) active() bool {
	if len(p.stack) == 0 {
		return true
	}
	return p.stack[len(p.stack)-1].on
}

func (p *preprocessor) directive(body string) error {
	name, rest := splitWord(strings.TrimSpace(body))
	switch name {
	case "ifdef", "ifndef":
		ident, _ := splitWord(rest)
		if ident == "" {
			return fmt.Errorf("#%s without a name", name)
		}
		_, ok := p.macros[ident]
		p.push(ok == (name == "ifdef"))
	case "if":
		if !p.active() {
			p.push(false)
			return nil
		}
		v, err := p.eval(rest)
		if err != nil {
			return err
		}
		p.push(v != 0)
	case "elif":
		f, err := p.top("#elif")
		if err != nil {
			return err
		}
		if f.sawEls {
			return errors.New("#elif after #else")
		}
		if f.taken || !f.parent {
			f.on = false
			return nil
		}
		v, err := p.eval(rest)
		if err != nil {
			return err
		}
		f.on = v != 0
		f.taken = f.on
	case "else":
		f, err := p.top("#else")
		if err != nil {
			return err
		}
		if f.sawEls {
			return errors.New("duplicate #else")
		}
		f.sawEls = true
		f.on = f.parent && !f.taken
		f.taken = true
	case "endif":
		if _, err := p.top("#endif"); err != nil {
			return err
		}
		p.stack = p.stack[:len(p.stack)-1]
	case "define":
		if !p.active() {
			return nil
		}
		ident, value := splitWord(rest)
		if !isIdent(ident) {
			return fmt.Errorf("invalid macro name %q", ident)
		}
		p.macros[ident] = strings.TrimSpace(value)
	case "undef":
		if !p.active() {
			return nil
		}
		ident, _ := splitWord(rest)
		delete(p.macros, ident)
	case "error":
		if p.active() {
			return fmt.Errorf("#error %s", strings.TrimSpace(rest))
		}
	case "":
		// A lone '#' is a null directive.
	default:
		if p.active() {
			return fmt.Errorf("unknown directive #%s", name)
		}
	}
	return nil
}

func (p *preprocessor) push(cond bool) {
	parent := p.active()
	p.stack = append(p.stack, condFrame{
		parent: parent,
		on:     parent && cond,
		taken:  parent && cond,
		line:   p.lineNo,
	})
}

func (p *preprocessor) top(what string) (*condFrame, error) {
	if len(p.stack) == 0 {
		return nil, fmt.Errorf("%s without #if", what)
	}
	return &p.stack[len(p.stack)-1], nil
}

// expand substitutes macros in a code line, leaving // comments untouched.
func (p *preprocessor) expand(line string, depth int) string {
	if len(p.macros) == 0 || depth >= maxExpansionDepth {
		return line
	}
	code, comment := line, ""
	if i := strings.Index(line, "//"); i >= 0 {
		code, comment = line[:i], line[i:]
	}
	var b strings.Builder
	changed := false
	for i := 0; i < len(code); {
		r := rune(code[i])
		if !isIdentStart(r) {
			b.WriteByte(code[i])
			i++
			continue
		}
		j := i + 1
		for j < len(code) && isIdentPart(rune(code[j])) {
			j++
		}
		word := code[i:j]
		if v, ok := p.macros[word]; ok {
			b.WriteString(v)
			changed = true
		} else {
			b.WriteString(word)
		}
		i = j
	}
	if !changed {
		return line
	}
	return p.expand(b.String(), depth+1) + comment
}

func splitWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool {
		return !isIdentPart(r)
	})
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) && r < unicode.MaxASCII }
func isIdentPart(r rune) bool  { return isIdentStart(r) || r >= '0' && r <= '9' }

func isIdent(s string) bool {
	if s == "" || !isIdentStart(rune(s[0])) {
		return false
	}
	for _, r := range s {
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

// eval evaluates a #if expression.
func (p *preprocessor) eval(expr string) (int64, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(toks) == 0 {
		return 0, errors.New("#if with no expression")
	}
	e := exprParser{p: p, toks: toks}
	v, err := e.or()
	if err != nil {
		return 0, err
	}
	if e.pos != len(e.toks) {
		return 0, fmt.Errorf("unexpected %q in expression", e.toks[e.pos])
	}
	return v, nil
}

func tokenize(s string) ([]string, error) {
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	var toks []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case isIdentPart(rune(c)):
			j := i + 1
			for j < len(s) && isIdentPart(rune(s[j])) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		case strings.HasPrefix(s[i:], "&&"), strings.HasPrefix(s[i:], "||"),
			strings.HasPrefix(s[i:], "=="), strings.HasPrefix(s[i:], "!="),
			strings.HasPrefix(s[i:], "<="), strings.HasPrefix(s[i:], ">="):
			toks = append(toks, s[i:i+2])
			i += 2
		case strings.IndexByte("!()<>", c) >= 0:
			toks = append(toks, s[i:i+1])
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q in expression", c)
		}
	}
	return toks, nil
}

type exprParser struct {
	p    *preprocessor
	toks []string
	pos  int
}

func (e *exprParser) peek() string {
	if e.pos < len(e.toks) {
		return e.toks[e.pos]
	}
	return ""
}

func (e *exprParser) next() string {
	t := e.peek()
	e.pos++
	return t
}

func (e *exprParser) or() (int64, error) {
	l, err := e.and()
	if err != nil {
		return 0, err
	}
	for e.peek() == "||" {
		e.next()
		r, err := e.and()
		if err != nil {
			return 0, err
		}
		l = boolInt(l != 0 || r != 0)
	}
	return l, nil
}

func (e *exprParser) and() (int64, error) {
	l, err := e.compare()
	if err != nil {
		return 0, err
	}
	for e.peek() == "&&" {
		e.next()
		r, err := e.compare()
		if err != nil {
			return 0, err
		}
		l = boolInt(l != 0 && r != 0)
	}
	return l, nil
}

func (e *exprParser) compare() (int64, error) {
	l, err := e.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := e.peek()
		switch op {
		case "==", "!=", "<", ">", "<=", ">=":
		default:
			return l, nil
		}
		e.next()
		r, err := e.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "==":
			l = boolInt(l == r)
		case "!=":
			l = boolInt(l != r)
		case "<":
			l = boolInt(l < r)
		case ">":
			l = boolInt(l > r)
		case "<=":
			l = boolInt(l <= r)
		case ">=":
			l = boolInt(l >= r)
		}
	}
}

func (e *exprParser) unary() (int64, error) {
	switch t := e.next(); {
	case t == "":
		return 0, errors.New("unexpected end of expression")
	case t == "!":
		v, err := e.unary()
		return boolInt(v == 0), err
	case t == "(":
		v, err := e.or()
		if err != nil {
			return 0, err
		}
		if e.next() != ")" {
			return 0, errors.New("missing ')' in expression")
		}
		return v, nil
	case t == "defined":
		paren := e.peek() == "("
		if paren {
			e.next()
		}
		name := e.next()
		if !isIdent(name) {
			return 0, fmt.Errorf("defined: invalid macro name %q", name)
		}
		if paren && e.next() != ")" {
			return 0, errors.New("defined: missing ')'")
		}
		_, ok := e.p.macros[name]
		return boolInt(ok), nil
	case t[0] >= '0' && t[0] <= '9':
		v, err := strconv.ParseInt(strings.TrimRight(t, "uUlL"), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", t)
		}
		return v, nil
	case isIdent(t):
		// Undefined names and non-numeric macros evaluate to zero.
		v, ok := e.p.macros[t]
		if !ok {
			return 0, nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 0, 64)
		if err != nil {
			return 0, nil
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected %q in expression", t)
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
