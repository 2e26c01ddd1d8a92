package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/cache"
	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

type ingestFunc func(ctx context.Context) ([]model.ContentItem, error)

func (f ingestFunc) Ingest(ctx context.Context) ([]model.ContentItem, error) { return f(ctx) }

func TestRefreshCommits(t *testing.T) {
	slot := &cache.Slot{}
	store := newFakeStore()
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	r := &Refresher{
		Kind:   "news",
		Slot:   slot,
		Store:  store,
		Folder: "/tts_australian",
		Ingestor: ingestFunc(func(ctx context.Context) ([]model.ContentItem, error) {
			return []model.ContentItem{{ID: 9, Title: "a", AudioHandle: "h"}, {Title: "b"}}, nil
		}),
		Now: func() time.Time { return now },
	}
	res, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 2 || res.AudioCount != 1 || !res.CapturedAt.Equal(now) {
		t.Errorf("res = %+v", res)
	}
	if len(store.purged) != 1 || store.purged[0] != "/tts_australian" {
		t.Errorf("purged = %v", store.purged)
	}
	snap, _ := slot.Snapshot()
	if snap.Items[0].ID != 1 || snap.Items[1].ID != 2 {
		t.Errorf("ids = %d,%d", snap.Items[0].ID, snap.Items[1].ID)
	}
	if slot.Refreshing() {
		t.Error("slot left refreshing")
	}
}

func TestRefreshAbortPaths(t *testing.T) {
	slot := &cache.Slot{}
	slot.BeginRefresh()
	prev := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	slot.CommitRefresh([]model.ContentItem{{Title: "old"}}, prev)

	boom := errors.New("index down")
	store := newFakeStore()
	store.purgeErr = errors.New("pcloud down")
	cases := []struct {
		name string
		fn   ingestFunc
		want error
	}{
		{"empty", func(context.Context) ([]model.ContentItem, error) { return nil, nil }, ErrNothingFetched},
		{"error", func(context.Context) ([]model.ContentItem, error) { return nil, boom }, boom},
		{"panic", func(context.Context) ([]model.ContentItem, error) { panic("nil map") }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Refresher{Kind: "news", Slot: slot, Store: store, Folder: "/f", Ingestor: tc.fn}
			_, err := r.Refresh(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if slot.Refreshing() {
				t.Error("slot left refreshing")
			}
			snap, _ := slot.Snapshot()
			if !snap.CapturedAt.Equal(prev) || snap.Items[0].Title != "old" {
				t.Errorf("previous snapshot changed: %+v", snap)
			}
		})
	}
}

func TestRefreshBusy(t *testing.T) {
	slot := &cache.Slot{}
	slot.BeginRefresh()
	r := &Refresher{Kind: "reddit", Slot: slot, Ingestor: ingestFunc(func(context.Context) ([]model.ContentItem, error) {
		t.Fatal("ingest must not run while busy")
		return nil, nil
	})}
	if _, err := r.Refresh(context.Background()); !errors.Is(err, cache.ErrAlreadyRefreshing) {
		t.Fatalf("err = %v", err)
	}
	if !slot.Refreshing() {
		t.Error("busy refresh must not clear the other run's flag")
	}
}

func TestRefreshDetachedFromCaller(t *testing.T) {
	slot := &cache.Slot{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Refresher{Kind: "news", Slot: slot, Ingestor: ingestFunc(func(ctx context.Context) ([]model.ContentItem, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return []model.ContentItem{{Title: "x"}}, nil
	})}
	if _, err := r.Refresh(ctx); err != nil {
		t.Fatalf("cancelled caller should not abort the run: %v", err)
	}
}

func TestBootstrapRunsEachOnce(t *testing.T) {
	var calls []string
	mk := func(kind string) *Refresher {
		return &Refresher{Kind: kind, Slot: &cache.Slot{}, Ingestor: ingestFunc(func(context.Context) ([]model.ContentItem, error) {
			calls = append(calls, kind)
			return nil, nil
		})}
	}
	b := &Bootstrap{Refreshers: []*Refresher{mk("news"), mk("reddit")}}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 || calls[0] != "news" || calls[1] != "reddit" {
		t.Errorf("calls = %v", calls)
	}
}
