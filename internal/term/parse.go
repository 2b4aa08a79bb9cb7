package term

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrSyntax = errors.New("term syntax error")

// Parse reads a term from its text form.
//
//	atom  'quoted atom'  "also quoted"  X  _Y  name(a, B)  [a, [b]]
//
// Identifiers starting with an uppercase letter or underscore are variables;
// other identifiers are atoms. Trailing input is rejected.
func Parse(input string) (Term, error) {
	p := &parser{src: []rune(input)}
	t, err := p.term()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", string(p.peek()))
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for literals in
// bootstrap rules and tests.
func MustParse(input string) Term {
	t, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune { return p.src[p.pos] }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) term() (Term, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}

	switch r := p.peek(); {
	case r == '[':
		p.pos++
		elems, err := p.sequence(']')
		if err != nil {
			return nil, err
		}
		return List{Elements: elems}, nil
	case r == '\'' || r == '"':
		name, err := p.quoted(r)
		if err != nil {
			return nil, err
		}
		return p.maybeStruct(name)
	case isIdentStart(r):
		name := p.ident()
		first := []rune(name)[0]
		if unicode.IsUpper(first) || first == '_' {
			return Variable{Name: name}, nil
		}
		return p.maybeStruct(name)
	default:
		return nil, p.errorf("unexpected %q", string(r))
	}
}

func (p *parser) maybeStruct(name string) (Term, error) {
	if p.eof() || p.peek() != '(' {
		return Atom{Name: name}, nil
	}
	p.pos++
	args, err := p.sequence(')')
	if err != nil {
		return nil, err
	}
	return Struct{Name: name, Args: args}, nil
}

// sequence reads comma separated terms up to and including the closing rune.
func (p *parser) sequence(closing rune) ([]Term, error) {
	terms := []Term{}
	p.skipSpace()
	if !p.eof() && p.peek() == closing {
		p.pos++
		return terms, nil
	}
	for {
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("missing %q", string(closing))
		}
		switch p.peek() {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return terms, nil
		default:
			return nil, p.errorf("expected ',' or %q, got %q", string(closing), string(p.peek()))
		}
	}
}

func (p *parser) quoted(delim rune) (string, error) {
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		r := p.peek()
		p.pos++
		switch r {
		case '\\':
			if p.eof() {
				return "", p.errorf("unterminated escape")
			}
			next := p.peek()
			p.pos++
			switch next {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(next)
			}
		case delim:
			return sb.String(), nil
		default:
			sb.WriteRune(r)
		}
	}
	return "", p.errorf("unterminated quoted atom")
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentPart(p.peek()) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '.' || r == '-'
}
