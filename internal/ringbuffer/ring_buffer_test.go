package ringbuffer

import "testing"

func TestBufferEvictsOldest(t *testing.T) {
	t.Parallel()
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}
	got := b.ReadAll()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBufferReadLast(t *testing.T) {
	t.Parallel()
	b := New[string](4)
	b.Add("a")
	b.Add("b")
	b.Add("c")
	last := b.ReadLast(2)
	if len(last) != 2 || last[0] != "b" || last[1] != "c" {
		t.Fatalf("unexpected ReadLast result: %v", last)
	}
}

func TestBufferReadFromCursorAdvances(t *testing.T) {
	t.Parallel()
	b := New[int](10)
	b.Add(1)
	b.Add(2)
	entries, cursor := b.ReadFrom(Cursor{})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	b.Add(3)
	more, _ := b.ReadFrom(cursor)
	if len(more) != 1 || more[0] != 3 {
		t.Fatalf("expected only the new entry, got %v", more)
	}
}

func TestBufferReadFromEvictedCursorFallsBackToOldest(t *testing.T) {
	t.Parallel()
	b := New[int](2)
	b.Add(1)
	b.Add(2)
	_, cursor := b.ReadFrom(Cursor{})
	b.Add(3)
	b.Add(4)
	entries, _ := b.ReadFrom(cursor)
	if len(entries) != 2 || entries[0] != 3 || entries[1] != 4 {
		t.Fatalf("expected fallback to oldest retained entries, got %v", entries)
	}
}

func TestBufferClearKeepsCursorMonotonic(t *testing.T) {
	t.Parallel()
	b := New[int](4)
	b.Add(1)
	b.Add(2)
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer after clear")
	}
	b.Add(3)
	entries, _ := b.ReadFrom(Cursor{Position: 2})
	if len(entries) != 1 || entries[0] != 3 {
		t.Fatalf("expected only post-clear entry visible from old cursor, got %v", entries)
	}
}
