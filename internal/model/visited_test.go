package model

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

// TestVisitedSet tests visitation tracking.
func TestVisitedSet(t *testing.T) {
	t.Parallel()

	t.Run("marks each title once", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedSet()
		if !v.MarkIfNew("Home") {
			t.Error("expected first mark to succeed")
		}
		if v.MarkIfNew("Home") {
			t.Error("expected second mark to fail")
		}
		if !v.Has("Home") {
			t.Error("expected Home to be visited")
		}
		if v.Len() != 1 {
			t.Errorf("expected 1 title, got %d", v.Len())
		}
	})

	t.Run("compares by exact string", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedSet()
		for _, title := range []string{"Home", "home", "Home ", " Home"} {
			if !v.MarkIfNew(title) {
				t.Errorf("expected %q to be new", title)
			}
		}
		if v.Len() != 4 {
			t.Errorf("expected 4 distinct titles, got %d", v.Len())
		}
	})

	t.Run("keeps marking order", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedSet()
		v.MarkIfNew("C")
		v.MarkIfNew("A")
		v.MarkIfNew("C")
		v.MarkIfNew("B")
		if got := v.Titles(); !reflect.DeepEqual(got, []string{"C", "A", "B"}) {
			t.Errorf("unexpected order %v", got)
		}
	})

	t.Run("concurrent marks win exactly once", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedSet()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 64 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if v.MarkIfNew("Shared") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Errorf("expected exactly one winner, got %d", wins.Load())
		}
	})
}
