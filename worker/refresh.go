package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/pkarcreative/pwa-australian-news/internal/cache"
	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// ErrNothingFetched is returned when an ingestion run produced no items.
var ErrNothingFetched = errors.New("no items fetched")

// Ingestor produces a fresh ordered collection for one content kind.
type Ingestor interface {
	Ingest(ctx context.Context) ([]model.ContentItem, error)
}

// FolderPurger removes previously published audio.
type FolderPurger interface {
	DeleteAll(ctx context.Context, folder string) (int, error)
}

// RefreshResult describes a committed refresh.
type RefreshResult struct {
	Count      int
	AudioCount int
	CapturedAt time.Time
}

// Refresher runs single-flight ingestion for one cache slot.
type Refresher struct {
	Kind     string
	Slot     *cache.Slot
	Store    FolderPurger
	Folder   string
	Ingestor Ingestor
	Now      func() time.Time
}

// Refresh purges the audio folder, ingests and commits the result. It
// returns cache.ErrAlreadyRefreshing when another run holds the slot. The
// run is detached from ctx cancellation so a caller hanging up does not
// abort it halfway.
func (r *Refresher) Refresh(ctx context.Context) (res RefreshResult, err error) {
	if err := r.Slot.BeginRefresh(); err != nil {
		return RefreshResult{}, err
	}
	log := slog.With("kind", r.Kind, "run", uuid.NewString())
	committed := false
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("refresh: panic", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("%s refresh panicked: %v", r.Kind, rec)
		}
		if !committed {
			r.Slot.AbortRefresh()
		}
	}()

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	log.Info("refresh: start")

	if r.Store != nil && r.Folder != "" {
		if _, err := r.Store.DeleteAll(ctx, r.Folder); err != nil {
			log.Warn("refresh: purge folder failed", "folder", r.Folder, "err", err)
		}
	}

	items, err := r.Ingestor.Ingest(ctx)
	if err != nil {
		log.Error("refresh: ingest failed", "err", err)
		return RefreshResult{}, err
	}
	if len(items) == 0 {
		log.Warn("refresh: nothing fetched")
		return RefreshResult{}, ErrNothingFetched
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	snap := r.Slot.CommitRefresh(items, now())
	committed = true

	res = RefreshResult{Count: len(snap.Items), CapturedAt: snap.CapturedAt}
	for _, it := range snap.Items {
		if it.HasAudio() {
			res.AudioCount++
		}
	}
	log.Info("refresh: committed", "count", res.Count, "audio", res.AudioCount, "took", time.Since(start).Round(time.Second))
	return res, nil
}

// Bootstrap refreshes every kind once at startup, in order, and then exits.
type Bootstrap struct {
	Refreshers []*Refresher
}

func (b *Bootstrap) Start(ctx context.Context) error {
	for _, r := range b.Refreshers {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := r.Refresh(ctx); err != nil {
			slog.Warn("bootstrap: refresh failed", "kind", r.Kind, "err", err)
		}
	}
	return nil
}
