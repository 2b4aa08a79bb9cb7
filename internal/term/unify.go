package term

// Bindings maps variable names to the terms they are bound to. A Bindings
// value produced by Unify never contains a cycle.
type Bindings map[string]Term

// Copy returns a shallow copy of b. Terms are immutable so sharing them is safe.
func (b Bindings) Copy() Bindings {
	out := make(Bindings, len(b)+4)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Resolve dereferences t through the binding chain until it reaches a
// non-variable or an unbound variable. A self-referential chain stops at the
// variable where the cycle is detected.
func Resolve(t Term, b Bindings) Term {
	var seen map[string]bool
	for {
		v, ok := t.(Variable)
		if !ok {
			return t
		}
		next, bound := b[v.Name]
		if !bound {
			return t
		}
		if seen == nil {
			seen = make(map[string]bool)
		}
		if seen[v.Name] {
			return t
		}
		seen[v.Name] = true
		if nv, isVar := next.(Variable); isVar && nv.Name == v.Name {
			return t
		}
		t = next
	}
}

// occursIn reports whether variable name occurs inside t once nested
// variables are resolved through b.
func occursIn(name string, t Term, b Bindings) bool {
	stack := []Term{t}
	expanded := make(map[string]bool)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch x := cur.(type) {
		case Variable:
			if x.Name == name {
				return true
			}
			// Follow the binding once per variable so a malformed cyclic
			// binding set cannot loop forever.
			if next, bound := b[x.Name]; bound && !expanded[x.Name] {
				expanded[x.Name] = true
				stack = append(stack, next)
			}
		case Struct:
			stack = append(stack, x.Args...)
		case List:
			stack = append(stack, x.Elements...)
		}
	}
	return false
}

type pair struct {
	left, right Term
}

// Unify computes the bindings that make t1 and t2 structurally equal,
// extending b. The input bindings are never modified. The second return value
// is false when no such bindings exist.
func Unify(t1, t2 Term, b Bindings) (Bindings, bool) {
	if t1 == nil || t2 == nil {
		return nil, false
	}
	out := b.Copy()
	work := []pair{{t1, t2}}

	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]

		left := Resolve(p.left, out)
		right := Resolve(p.right, out)

		lv, lIsVar := left.(Variable)
		rv, rIsVar := right.(Variable)

		switch {
		case lIsVar && rIsVar && lv.Name == rv.Name:
			continue
		case lIsVar:
			if occursIn(lv.Name, right, out) {
				return nil, false
			}
			out[lv.Name] = right
			continue
		case rIsVar:
			if occursIn(rv.Name, left, out) {
				return nil, false
			}
			out[rv.Name] = left
			continue
		}

		if left.Kind() != right.Kind() {
			return nil, false
		}

		switch l := left.(type) {
		case Atom:
			if l.Name != right.(Atom).Name {
				return nil, false
			}
		case Struct:
			r := right.(Struct)
			if l.Name != r.Name || len(l.Args) != len(r.Args) {
				return nil, false
			}
			// Pushed in reverse so arguments are processed left to right.
			for i := len(l.Args) - 1; i >= 0; i-- {
				work = append(work, pair{l.Args[i], r.Args[i]})
			}
		case List:
			r := right.(List)
			if len(l.Elements) != len(r.Elements) {
				return nil, false
			}
			for i := len(l.Elements) - 1; i >= 0; i-- {
				work = append(work, pair{l.Elements[i], r.Elements[i]})
			}
		default:
			return nil, false
		}
	}
	return out, true
}

// Substitute applies b to t, replacing bound variables (recursively) with
// their values and leaving unbound variables in place.
func Substitute(t Term, b Bindings) Term {
	return substitute(t, b, nil)
}

func substitute(t Term, b Bindings, active map[string]bool) Term {
	switch x := t.(type) {
	case Variable:
		if active[x.Name] {
			return x
		}
		resolved := Resolve(x, b)
		if rv, ok := resolved.(Variable); ok {
			return rv
		}
		next := make(map[string]bool, len(active)+1)
		for k := range active {
			next[k] = true
		}
		next[x.Name] = true
		return substitute(resolved, b, next)
	case Struct:
		args := make([]Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = substitute(a, b, active)
		}
		return Struct{Name: x.Name, Args: args}
	case List:
		elems := make([]Term, len(x.Elements))
		for i, e := range x.Elements {
			elems[i] = substitute(e, b, active)
		}
		return List{Elements: elems}
	default:
		return t
	}
}
