package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewStore(t *testing.T) {
	s := NewStore()
	if s == nil {
		t.Fatal("NewStore() returned nil")
	}
	if got := len(s.GetAll()); got != 0 {
		t.Errorf("new store has %d sessions, want 0", got)
	}
	if got := s.ActiveCount(); got != 0 {
		t.Errorf("new store ActiveCount() = %d, want 0", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := NewStore()
	st, ok := s.Get("nonexistent")
	if ok {
		t.Error("Get for missing key returned ok=true")
	}
	if st != nil {
		t.Error("Get for missing key returned non-nil state")
	}
}

func TestUpdateAndGet(t *testing.T) {
	s := NewStore()
	s.Update(&SessionState{ID: "a", Title: "alpha", Status: Working})

	st, ok := s.Get("a")
	if !ok {
		t.Fatal("Get returned ok=false after Update")
	}
	if st.ID != "a" || st.Title != "alpha" || st.Status != Working {
		t.Errorf("Get returned unexpected state: %+v", st)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Update(&SessionState{ID: "a", Title: "original"})

	got, _ := s.Get("a")
	got.Title = "mutated"

	got2, _ := s.Get("a")
	if got2.Title != "original" {
		t.Error("Get did not return a copy; mutation leaked into store")
	}
}

func TestUpdateStoresCopy(t *testing.T) {
	s := NewStore()
	state := &SessionState{ID: "a", Title: "original"}
	s.Update(state)

	state.Title = "mutated"

	got, _ := s.Get("a")
	if got.Title != "original" {
		t.Error("Update did not copy input; external mutation leaked into store")
	}
}

func TestGetAllSortedByID(t *testing.T) {
	s := NewStore()
	s.Update(&SessionState{ID: "c"})
	s.Update(&SessionState{ID: "a"})
	s.Update(&SessionState{ID: "b"})

	all := s.GetAll()
	if len(all) != 3 {
		t.Fatalf("GetAll returned %d sessions, want 3", len(all))
	}
	for i, want := range []string{"a", "b", "c"} {
		if all[i].ID != want {
			t.Errorf("GetAll[%d].ID = %q, want %q", i, all[i].ID, want)
		}
	}
}

func TestRemove(t *testing.T) {
	s := NewStore()
	s.Update(&SessionState{ID: "a"})
	s.Remove("a")

	if _, ok := s.Get("a"); ok {
		t.Error("Get returned ok=true after Remove")
	}
}

func TestActiveAndAttentionCounts(t *testing.T) {
	s := NewStore()
	s.Update(&SessionState{ID: "w1", Status: Working})
	s.Update(&SessionState{ID: "w2", Status: Working})
	s.Update(&SessionState{ID: "b1", Status: Waiting})
	s.Update(&SessionState{ID: "i1", Status: Idle})

	if got := s.ActiveCount(); got != 3 {
		t.Errorf("ActiveCount() = %d, want 3", got)
	}
	if got := s.AttentionCount(); got != 1 {
		t.Errorf("AttentionCount() = %d, want 1", got)
	}
	if got := s.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}

func TestUpdateAndNotifyRunsUnderLock(t *testing.T) {
	s := NewStore()
	ran := false
	s.UpdateAndNotify(&SessionState{ID: "a", Status: Idle}, func() {
		ran = true
	})
	if !ran {
		t.Error("notify callback did not run")
	}
	if st, ok := s.Get("a"); !ok || st.Status != Idle {
		t.Errorf("state not committed before notify: %+v", st)
	}
}

func TestBatchRemoveAndNotify(t *testing.T) {
	s := NewStore()
	s.Update(&SessionState{ID: "a"})
	s.Update(&SessionState{ID: "b"})
	s.Update(&SessionState{ID: "c"})

	s.BatchRemoveAndNotify([]string{"a", "c"}, nil)

	if _, ok := s.Get("a"); ok {
		t.Error("session a still present after batch removal")
	}
	if _, ok := s.Get("b"); !ok {
		t.Error("session b removed but was not in the batch")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.Update(&SessionState{ID: fmt.Sprintf("s%d", n), Status: Working})
		}(i)
		go func() {
			defer wg.Done()
			s.GetAll()
			s.ActiveCount()
		}()
	}
	wg.Wait()

	if got := s.Len(); got != 10 {
		t.Errorf("Len() = %d after concurrent updates, want 10", got)
	}
}
