package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

func TestBeginRefreshSingleFlight(t *testing.T) {
	var s Slot
	var wg sync.WaitGroup
	results := make(chan error, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- s.BeginRefresh()
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var ok, busy int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyRefreshing):
			busy++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || busy != 1 {
		t.Fatalf("ok=%d busy=%d", ok, busy)
	}
}

func TestCommitAssignsDenseIDs(t *testing.T) {
	var s Slot
	if err := s.BeginRefresh(); err != nil {
		t.Fatal(err)
	}
	in := []model.ContentItem{{ID: 7, Title: "a"}, {ID: 0, Title: "b"}, {ID: 3, Title: "c"}}
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	s.CommitRefresh(in, now)

	snap, ok := s.Snapshot()
	if !ok {
		t.Fatal("expected snapshot")
	}
	for i, it := range snap.Items {
		if it.ID != i+1 {
			t.Errorf("items[%d].ID = %d", i, it.ID)
		}
	}
	if in[0].ID != 7 {
		t.Errorf("input slice was mutated")
	}
	if s.Refreshing() {
		t.Errorf("refreshing should be cleared")
	}
	if _, ok := snap.Item(4); ok {
		t.Errorf("id 4 should be out of range")
	}
	if it, ok := snap.Item(2); !ok || it.Title != "b" {
		t.Errorf("Item(2) = %+v %v", it, ok)
	}
}

func TestAbortKeepsPreviousSnapshot(t *testing.T) {
	var s Slot
	s.BeginRefresh()
	first := time.Date(2025, 3, 4, 1, 0, 0, 0, time.UTC)
	s.CommitRefresh([]model.ContentItem{{Title: "kept"}}, first)

	if err := s.BeginRefresh(); err != nil {
		t.Fatal(err)
	}
	if st := s.Status(); !st.IsFetching || !st.Cached {
		t.Errorf("status during refresh = %+v", st)
	}
	s.AbortRefresh()

	snap, _ := s.Snapshot()
	if !snap.CapturedAt.Equal(first) || len(snap.Items) != 1 || snap.Items[0].Title != "kept" {
		t.Fatalf("snapshot changed: %+v", snap)
	}
	if s.Refreshing() {
		t.Fatal("refreshing should be false after abort")
	}
	if err := s.BeginRefresh(); err != nil {
		t.Fatalf("slot should be usable after abort: %v", err)
	}
}

func TestSnapshotIsolatedFromCommitInput(t *testing.T) {
	var s Slot
	s.BeginRefresh()
	in := []model.ContentItem{{Title: "x", Meta: map[string]string{"score": "1"}}}
	s.CommitRefresh(in, time.Now())
	in[0].Title = "changed"
	in[0].Meta["score"] = "99"

	snap, _ := s.Snapshot()
	if snap.Items[0].Title != "x" || snap.Items[0].Meta["score"] != "1" {
		t.Fatalf("snapshot aliased input: %+v", snap.Items[0])
	}
}

func TestStatusEmpty(t *testing.T) {
	c := New()
	st := c.News.Status()
	if st.Cached || st.Count != 0 || st.LastUpdated != nil || st.IsFetching {
		t.Fatalf("status = %+v", st)
	}
}

func TestVisitors(t *testing.T) {
	v := NewVisitors()
	for _, c := range []string{"AU", "AU", "NZ", "", "US", "NZ", "AU"} {
		v.Record(c)
	}
	st := v.Snapshot()
	if st.Total != 7 {
		t.Errorf("total = %d", st.Total)
	}
	if st.Countries["Unknown"] != 1 {
		t.Errorf("unknown = %d", st.Countries["Unknown"])
	}
	want := []CountryCount{{"AU", 3}, {"NZ", 2}, {"US", 1}, {"Unknown", 1}}
	for i, w := range want {
		if st.Ranking[i] != w {
			t.Errorf("ranking[%d] = %+v, want %+v", i, st.Ranking[i], w)
		}
	}
}
