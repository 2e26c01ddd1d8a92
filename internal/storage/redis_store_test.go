package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

func TestSummaryKey(t *testing.T) {
	a := summaryKey("article", "Sydney trains resume")
	if a != summaryKey("article", "Sydney trains resume") {
		t.Fatal("key should be deterministic")
	}
	if a == summaryKey("discussion", "Sydney trains resume") {
		t.Error("kind must be part of the key")
	}
	if !strings.HasPrefix(a, "news:summary:article:") || len(a) != len("news:summary:article:")+64 {
		t.Errorf("key = %q", a)
	}
}

func TestPutSummarySkipsUnavailable(t *testing.T) {
	// nil client: any redis call would panic.
	s := NewRedisStore(nil, 0)
	if err := s.PutSummary(context.Background(), "article", "x", model.Summary{Outcome: model.OutcomeUnavailable}); err != nil {
		t.Fatal(err)
	}
}
