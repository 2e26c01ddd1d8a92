package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// ErrAlreadyRefreshing is returned by BeginRefresh while another refresh of
// the same slot is in flight.
var ErrAlreadyRefreshing = errors.New("refresh already in progress")

// Snapshot is the committed result of one successful refresh. Items must
// not be modified by callers.
type Snapshot struct {
	Items      []model.ContentItem
	CapturedAt time.Time
}

// Item returns the item with the given 1-based id.
func (s Snapshot) Item(id int) (model.ContentItem, bool) {
	if id < 1 || id > len(s.Items) {
		return model.ContentItem{}, false
	}
	return s.Items[id-1], true
}

// Status summarizes a slot for the status endpoint.
type Status struct {
	Cached      bool      `json:"cached"`
	Count       int       `json:"count"`
	IsFetching  bool      `json:"is_fetching"`
	LastUpdated *string   `json:"last_updated"`
	capturedAt  time.Time
}

// CapturedAt returns the snapshot time, zero when nothing is cached.
func (s Status) CapturedAt() time.Time { return s.capturedAt }

// Slot holds the latest snapshot for one content kind and the single-flight
// refresh flag.
type Slot struct {
	mu         sync.Mutex
	snap       *Snapshot
	refreshing bool
}

// BeginRefresh marks the slot as refreshing. It fails with
// ErrAlreadyRefreshing when a refresh is already running.
func (s *Slot) BeginRefresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshing {
		return ErrAlreadyRefreshing
	}
	s.refreshing = true
	return nil
}

// CommitRefresh replaces the snapshot with a copy of items, renumbering ids
// from 1, and clears the refreshing flag. It returns the committed snapshot.
func (s *Slot) CommitRefresh(items []model.ContentItem, capturedAt time.Time) Snapshot {
	cp := make([]model.ContentItem, len(items))
	for i, it := range items {
		it.ID = i + 1
		if it.Meta != nil {
			m := make(map[string]string, len(it.Meta))
			for k, v := range it.Meta {
				m[k] = v
			}
			it.Meta = m
		}
		cp[i] = it
	}
	snap := &Snapshot{Items: cp, CapturedAt: capturedAt}

	s.mu.Lock()
	s.snap = snap
	s.refreshing = false
	s.mu.Unlock()
	return *snap
}

// AbortRefresh clears the refreshing flag and keeps the previous snapshot.
func (s *Slot) AbortRefresh() {
	s.mu.Lock()
	s.refreshing = false
	s.mu.Unlock()
}

// Snapshot returns the current snapshot, or false if nothing was committed.
func (s *Slot) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return Snapshot{}, false
	}
	return *s.snap, true
}

// Refreshing reports whether a refresh is in flight.
func (s *Slot) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

func (s *Slot) Status() Status {
	s.mu.Lock()
	snap, refreshing := s.snap, s.refreshing
	s.mu.Unlock()

	st := Status{IsFetching: refreshing}
	if snap != nil {
		st.Cached = true
		st.Count = len(snap.Items)
		st.capturedAt = snap.CapturedAt
		ts := snap.CapturedAt.Format(time.RFC3339)
		st.LastUpdated = &ts
	}
	return st
}

// Cache holds the slot per content kind.
type Cache struct {
	News   *Slot
	Reddit *Slot
}

func New() *Cache {
	return &Cache{News: &Slot{}, Reddit: &Slot{}}
}
