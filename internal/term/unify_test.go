package term

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnify(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		wantOK  bool
		binding map[string]string
	}{
		{"identical atoms", "a", "a", true, map[string]string{}},
		{"different atoms", "a", "b", false, nil},
		{"struct binds variable", "f(a)", "f(X)", true, map[string]string{"X": "a"}},
		{"struct name mismatch", "f(a)", "g(a)", false, nil},
		{"struct arity mismatch", "f(a)", "f(a, b)", false, nil},
		{"occurs check", "X", "f(X)", false, nil},
		{"occurs check nested", "f(X, Y)", "f(Y, g(X))", false, nil},
		{"kind mismatch", "[a]", "f(a)", false, nil},
		{"list pairwise", "[X, b]", "[a, Y]", true, map[string]string{"X": "a", "Y": "b"}},
		{"list length mismatch", "[a]", "[a, b]", false, nil},
		{"shared variable consistent", "f(X, X)", "f(a, a)", true, map[string]string{"X": "a"}},
		{"shared variable conflict", "f(X, X)", "f(a, b)", false, nil},
		{"variable chain", "f(X, Y)", "f(Y, a)", true, map[string]string{"X": "Y", "Y": "a"}},
		{"same variable", "X", "X", true, map[string]string{}},
		{"nested struct", "goal(task(X), [Y])", "goal(task(write), [report])", true, map[string]string{"X": "write", "Y": "report"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Unify(MustParse(tt.a), MustParse(tt.b), nil)
			if ok != tt.wantOK {
				t.Fatalf("Unify(%s, %s) ok = %v, want %v", tt.a, tt.b, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			want := Bindings{}
			for k, v := range tt.binding {
				want[k] = MustParse(v)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("bindings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnify_Reflexive(t *testing.T) {
	terms := []string{"a", "X", "f(X, g(Y), [a, Z])", "[]", "f()", "'hello world'"}
	for _, s := range terms {
		tm := MustParse(s)
		b, ok := Unify(tm, tm, nil)
		if !ok {
			t.Errorf("Unify(%s, %s) failed", s, s)
			continue
		}
		if len(b) != 0 {
			t.Errorf("Unify(%s, %s) produced bindings %v", s, s, b)
		}
	}
}

func TestUnify_DoesNotMutateInput(t *testing.T) {
	in := Bindings{"Y": NewAtom("b")}
	out, ok := Unify(MustParse("f(X, Y)"), MustParse("f(a, b)"), in)
	if !ok {
		t.Fatal("expected unification to succeed")
	}
	if len(in) != 1 {
		t.Fatalf("input bindings mutated: %v", in)
	}
	if !Equal(out["X"], NewAtom("a")) {
		t.Fatalf("expected X bound to a, got %v", out["X"])
	}
}

func TestUnify_OrderIndependent(t *testing.T) {
	a := MustParse("p(X, f(Y), Z)")
	b := MustParse("p(g(Z), f(c), d)")

	ab, ok1 := Unify(a, b, nil)
	ba, ok2 := Unify(b, a, nil)
	if !ok1 || !ok2 {
		t.Fatalf("expected both directions to unify: %v %v", ok1, ok2)
	}
	if !Equal(Substitute(a, ab), Substitute(a, ba)) {
		t.Fatalf("results differ: %s vs %s", Substitute(a, ab), Substitute(a, ba))
	}
	if got := Substitute(a, ab).String(); got != "p(g(d), f(c), d)" {
		t.Fatalf("unexpected instantiation %s", got)
	}
}

func TestResolve_SelfReference(t *testing.T) {
	b := Bindings{"X": NewVar("X")}
	got := Resolve(NewVar("X"), b)
	if !Equal(got, NewVar("X")) {
		t.Fatalf("expected X, got %s", got)
	}

	cyclic := Bindings{"A": NewVar("B"), "B": NewVar("A")}
	got = Resolve(NewVar("A"), cyclic)
	if _, ok := got.(Variable); !ok {
		t.Fatalf("expected a variable from a cyclic chain, got %s", got)
	}
}

func TestSubstitute(t *testing.T) {
	b := Bindings{
		"X": MustParse("f(Y)"),
		"Y": NewAtom("a"),
	}
	got := Substitute(MustParse("g(X, Y, Z, [X])"), b)
	want := MustParse("g(f(a), a, Z, [f(a)])")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("substitution mismatch (-want +got):\n%s", diff)
	}
}

func TestSubstitute_Idempotent(t *testing.T) {
	pattern := MustParse("goal(X, meta(Y))")
	content := MustParse("goal(write(report), meta(urgent))")
	action := MustParse("add_thought(strategy, plan(X, Y, Unbound))")

	b, ok := Unify(pattern, content, nil)
	if !ok {
		t.Fatal("expected match")
	}
	once := Substitute(action, b)
	twice := Substitute(once, b)
	if !Equal(once, twice) {
		t.Fatalf("not idempotent: %s vs %s", once, twice)
	}
	for _, v := range Vars(pattern) {
		for _, left := range Vars(Substitute(pattern, b)) {
			if left == v {
				t.Fatalf("variable %s from matched pattern left unresolved", v)
			}
		}
	}
	if got := once.String(); got != "add_thought(strategy, plan(write(report), urgent, Unbound))" {
		t.Fatalf("unexpected action %s", got)
	}
}

func TestSubstitute_SelfBoundAndCycle(t *testing.T) {
	got := Substitute(NewVar("X"), Bindings{"X": NewVar("X")})
	if !Equal(got, NewVar("X")) {
		t.Fatalf("expected X, got %s", got)
	}

	// A malformed binding set must not loop forever.
	got = Substitute(NewVar("X"), Bindings{"X": MustParse("f(X)")})
	if got.String() != "f(X)" {
		t.Fatalf("expected f(X), got %s", got)
	}
}
