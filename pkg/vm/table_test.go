package vm

import (
	"slices"
	"testing"
)

func TestClassTable(t *testing.T) {
	table := newClassTable()
	a := &Class{Name: "a/A"}
	other := &Class{Name: "a/A"}

	if !table.Insert("a/A", a) {
		t.Fatal("first insert refused")
	}
	if table.Insert("a/A", other) {
		t.Error("second insert accepted")
	}
	if got := table.Lookup("a/A"); got != a {
		t.Errorf("Lookup: got %p, want %p", got, a)
	}
	table.Insert("a/B", &Class{Name: "a/B"})
	if got, want := table.Names(), []string{"a/A", "a/B"}; !slices.Equal(got, want) {
		t.Errorf("Names: got %v, want %v", got, want)
	}

	table.Remove("a/A")
	if table.Lookup("a/A") != nil || table.Len() != 1 {
		t.Errorf("after Remove: len %d", table.Len())
	}
}

func TestRecordInitiatedIsIdempotent(t *testing.T) {
	vm := New(Options{})
	cl := vm.Bootstrap()
	first := &Class{Name: "x/Y"}
	second := &Class{Name: "x/Y"}

	cl.RecordInitiated("x/Y", first)
	cl.RecordInitiated("x/Y", first)
	cl.RecordInitiated("x/Y", second)

	if got := cl.LookupInitiated("x/Y"); got != first {
		t.Errorf("LookupInitiated: got %p, want first recording %p", got, first)
	}
	if got := cl.LookupLoaded("x/Y"); got != nil {
		t.Errorf("LookupLoaded: got %v, want nil", got)
	}
}
