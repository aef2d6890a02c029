package orchestrator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	if _, ok := s.GetRun("missing"); ok {
		t.Fatal("empty store returned a run")
	}

	s.SetRun(&RunState{ID: "b"})
	s.SetRun(&RunState{ID: "a", Finished: true})
	s.SetRun(&RunState{ID: "c"})

	got, ok := s.GetRun("a")
	if !ok || !got.Finished {
		t.Errorf("GetRun(a) = %+v, %v", got, ok)
	}
	if diff := cmp.Diff([]RunID{"b", "a", "c"}, s.ListRunIDs()); diff != "" {
		t.Errorf("ListRunIDs (-want +got):\n%s", diff)
	}

	// Replacing a run keeps its place.
	s.SetRun(&RunState{ID: "b", Input: "again.mp4"})
	if diff := cmp.Diff([]RunID{"b", "a", "c"}, s.ListRunIDs()); diff != "" {
		t.Errorf("ListRunIDs after replace (-want +got):\n%s", diff)
	}
}

func TestInMemoryStore_DeleteRun(t *testing.T) {
	s := NewInMemoryStore()
	for _, id := range []RunID{"a", "b", "c"} {
		s.SetRun(&RunState{ID: id})
	}

	s.DeleteRun("b")
	s.DeleteRun("missing")

	if _, ok := s.GetRun("b"); ok {
		t.Error("deleted run still returned")
	}
	if diff := cmp.Diff([]RunID{"a", "c"}, s.ListRunIDs()); diff != "" {
		t.Errorf("ListRunIDs (-want +got):\n%s", diff)
	}

	ids := s.ListRunIDs()
	ids[0] = "mutated"
	if s.ListRunIDs()[0] != "a" {
		t.Error("ListRunIDs should return a copy")
	}
}
