package queue

import (
	"fmt"
	"testing"
)

func TestBoundedList_EvictsOldest(t *testing.T) {
	l := newBoundedList(3)
	evicted := 0
	for i := 0; i < 5; i++ {
		evicted += l.push(&Item{ID: fmt.Sprintf("item-%d", i)})
	}

	if evicted != 2 {
		t.Errorf("expected 2 evictions, got %d", evicted)
	}
	if l.len() != 3 {
		t.Fatalf("expected 3 items, got %d", l.len())
	}
	for _, id := range []string{"item-0", "item-1"} {
		if _, ok := l.get(id); ok {
			t.Errorf("%s should have been evicted", id)
		}
	}
	if _, ok := l.get("item-4"); !ok {
		t.Error("newest item missing")
	}
}

func TestBoundedList_RecentIsNewestFirst(t *testing.T) {
	l := newBoundedList(10)
	for i := 0; i < 4; i++ {
		l.push(&Item{ID: fmt.Sprintf("item-%d", i)})
	}

	got := l.recent(2)
	if len(got) != 2 || got[0].ID != "item-3" || got[1].ID != "item-2" {
		t.Errorf("unexpected recent order: %v", ids(got))
	}
	if all := l.recent(0); len(all) != 4 {
		t.Errorf("expected all 4 items, got %d", len(all))
	}
}

func TestBoundedList_Clear(t *testing.T) {
	l := newBoundedList(10)
	l.push(&Item{ID: "a"})
	l.push(&Item{ID: "b"})

	if n := l.clear(); n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
	if _, ok := l.get("a"); ok {
		t.Error("index should be empty after clear")
	}
}

func TestDurationWindow_AveragesLastN(t *testing.T) {
	w := newDurationWindow(100)
	if w.average() != 0 {
		t.Errorf("empty window should average 0")
	}

	// 50 slow entries fall out of the window, 100 fast ones remain.
	for i := 0; i < 50; i++ {
		w.add(1000)
	}
	for i := 0; i < 100; i++ {
		w.add(10)
	}

	if got := w.average(); got != 10 {
		t.Errorf("expected average 10, got %v", got)
	}
	if len(w.values) != 100 {
		t.Errorf("expected window of 100, got %d", len(w.values))
	}
}

func ids(items []*Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
