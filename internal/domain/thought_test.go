package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/Harshitk-cp/reflex/internal/term"
)

func TestBelief_Score(t *testing.T) {
	tests := []struct {
		name   string
		belief Belief
		want   float64
	}{
		{"fresh", Belief{}, 0.5},
		{"one success", Belief{Pos: 1}, 2.0 / 3.0},
		{"one failure", Belief{Neg: 1}, 1.0 / 3.0},
		{"mixed", Belief{Pos: 3, Neg: 1}, 4.0 / 6.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.belief.Score(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBelief_Update(t *testing.T) {
	b := Belief{}
	b = b.Update(true).Update(true).Update(false)
	if b.Pos != 2 || b.Neg != 1 {
		t.Fatalf("expected pos=2 neg=1, got %+v", b)
	}
	if s := b.Score(); s <= 0 || s >= 1 {
		t.Fatalf("score out of range: %v", s)
	}
}

func TestNewChildThought_InheritsRoot(t *testing.T) {
	root := NewThought(ThoughtGoal, term.NewAtom("ship"))
	if !root.IsRoot() {
		t.Fatal("new thought should be its own root")
	}

	child := NewChildThought(root, ThoughtStrategy, term.NewAtom("plan"))
	grandchild := NewChildThought(child, ThoughtOutcome, term.NewAtom("done"))

	if child.Metadata.ParentID != root.ID {
		t.Errorf("child parent = %s, want %s", child.Metadata.ParentID, root.ID)
	}
	if grandchild.Root() != root.ID {
		t.Errorf("grandchild root = %s, want %s", grandchild.Root(), root.ID)
	}
	if grandchild.IsRoot() {
		t.Error("grandchild should not be a root")
	}
}

func TestThought_CloneIsolatesTags(t *testing.T) {
	th := NewThought(ThoughtInput, term.NewAtom("x"))
	th.SetTag("k", "v")
	until := time.Now()
	th.Metadata.WaitingFor = &WaitCondition{Until: &until}

	c := th.Clone()
	c.SetTag("k", "changed")
	*c.Metadata.WaitingFor.Until = until.Add(time.Hour)

	if th.Metadata.Tags["k"] != "v" {
		t.Error("clone shares tag map with original")
	}
	if !th.Metadata.WaitingFor.Until.Equal(until) {
		t.Error("clone shares wait condition with original")
	}
}

func TestThought_JSONRoundTrip(t *testing.T) {
	th := NewThought(ThoughtGoal, term.MustParse("goal(write(report), X)"))
	th.Belief = Belief{Pos: 2}
	th.SetTag("origin", "test")

	data, err := json.Marshal(th)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Thought
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !term.Equal(th.Content, back.Content) {
		t.Errorf("content = %s, want %s", back.Content, th.Content)
	}
	if back.Belief != th.Belief || back.Metadata.Tags["origin"] != "test" {
		t.Errorf("metadata not preserved: %+v", back)
	}
}

func TestWaitCondition_Elapsed(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	var nilCond *WaitCondition
	if nilCond.Elapsed(now) {
		t.Error("nil condition should not be elapsed")
	}
	if (&WaitCondition{PromptID: "p"}).Elapsed(now) {
		t.Error("prompt condition should not be elapsed")
	}
	if !(&WaitCondition{Until: &past}).Elapsed(now) {
		t.Error("past deadline should be elapsed")
	}
	if (&WaitCondition{Until: &future}).Elapsed(now) {
		t.Error("future deadline should not be elapsed")
	}
}
