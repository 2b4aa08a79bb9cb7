// Package term implements the symbolic values carried by thoughts and rules:
// atoms, variables, compound structs and lists, together with unification
// and substitution over them.
package term

import (
	"strings"
	"unicode"
)

// Kind identifies the variant of a Term.
type Kind string

const (
	KindAtom     Kind = "atom"
	KindVariable Kind = "var"
	KindStruct   Kind = "struct"
	KindList     Kind = "list"
)

// Term is an immutable symbolic value. The set of implementations is closed:
// Atom, Variable, Struct and List.
type Term interface {
	Kind() Kind
	String() string
	isTerm()
}

// Atom is an opaque symbolic constant.
type Atom struct {
	Name string
}

// Variable is a placeholder resolved through Bindings.
type Variable struct {
	Name string
}

// Struct is a named compound term with ordered arguments.
type Struct struct {
	Name string
	Args []Term
}

// List is an ordered sequence of terms.
type List struct {
	Elements []Term
}

func (Atom) Kind() Kind     { return KindAtom }
func (Variable) Kind() Kind { return KindVariable }
func (Struct) Kind() Kind   { return KindStruct }
func (List) Kind() Kind     { return KindList }

func (Atom) isTerm()     {}
func (Variable) isTerm() {}
func (Struct) isTerm()   {}
func (List) isTerm()     {}

// NewAtom returns an Atom term.
func NewAtom(name string) Term { return Atom{Name: name} }

// NewVar returns a Variable term.
func NewVar(name string) Term { return Variable{Name: name} }

// NewStruct returns a Struct term.
func NewStruct(name string, args ...Term) Term {
	return Struct{Name: name, Args: args}
}

// NewList returns a List term.
func NewList(elements ...Term) Term {
	return List{Elements: elements}
}

func (a Atom) String() string {
	if isPlainAtom(a.Name) {
		return a.Name
	}
	return quote(a.Name)
}

func (v Variable) String() string { return v.Name }

func (s Struct) String() string {
	var sb strings.Builder
	if isPlainAtom(s.Name) {
		sb.WriteString(s.Name)
	} else {
		sb.WriteString(quote(s.Name))
	}
	sb.WriteByte('(')
	writeJoined(&sb, s.Args)
	sb.WriteByte(')')
	return sb.String()
}

func (l List) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	writeJoined(&sb, l.Elements)
	sb.WriteByte(']')
	return sb.String()
}

func writeJoined(sb *strings.Builder, terms []Term) {
	for i, t := range terms {
		if i > 0 {
			sb.WriteString(", ")
		}
		if t == nil {
			sb.WriteString("<nil>")
			continue
		}
		sb.WriteString(t.String())
	}
}

// isPlainAtom reports whether name can be printed without quotes and still
// parse back as an atom.
func isPlainAtom(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && !(unicode.IsLower(r) || unicode.IsDigit(r)) {
			return false
		}
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-') {
			return false
		}
	}
	return true
}

func quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

// Text renders a term as human-readable text: atoms lose their quoting,
// everything else uses the canonical String form. Used when a term is fed to
// a language model or stored in long-term memory.
func Text(t Term) string {
	if t == nil {
		return ""
	}
	if a, ok := t.(Atom); ok {
		return a.Name
	}
	return t.String()
}

// Equal reports structural equality of two terms.
func Equal(a, b Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Atom:
		y, ok := b.(Atom)
		return ok && x.Name == y.Name
	case Variable:
		y, ok := b.(Variable)
		return ok && x.Name == y.Name
	case Struct:
		y, ok := b.(Struct)
		return ok && x.Name == y.Name && equalSlices(x.Args, y.Args)
	case List:
		y, ok := b.(List)
		return ok && equalSlices(x.Elements, y.Elements)
	}
	return false
}

func equalSlices(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Vars returns the distinct variable names occurring in t, in order of first
// occurrence.
func Vars(t Term) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Term)
	walk = func(t Term) {
		switch x := t.(type) {
		case Variable:
			if !seen[x.Name] {
				seen[x.Name] = true
				names = append(names, x.Name)
			}
		case Struct:
			for _, a := range x.Args {
				walk(a)
			}
		case List:
			for _, e := range x.Elements {
				walk(e)
			}
		}
	}
	walk(t)
	return names
}

// IsGround reports whether t contains no variables.
func IsGround(t Term) bool {
	return len(Vars(t)) == 0
}
