package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// Stage is the position of one item in the publishing state machine.
type Stage string

const (
	StagePending      Stage = "pending"
	StageSynthesizing Stage = "synthesizing"
	StageSynthesized  Stage = "synthesized"
	StageUploading    Stage = "uploading"
	StageUploaded     Stage = "uploaded"
	StageLinkPending  Stage = "link_pending"
	StagePublished    Stage = "published"
	StageFailed       Stage = "failed"
)

// Synthesizer turns text into an mp3 stream.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// BlobStore is the subset of the blob store the publisher needs.
type BlobStore interface {
	EnsureFolder(ctx context.Context, folder string) error
	Upload(ctx context.Context, localPath, objectName, folder string) error
	IssuePublicLink(ctx context.Context, objectPath string) (model.AudioHandle, error)
}

// PublishResult lists 1-based item ids by outcome.
type PublishResult struct {
	Published []int
	Failed    []int
	Skipped   []int // no summary to narrate
}

// TTSPublisher narrates item summaries, uploads the audio and attaches the
// public link handle to each item.
type TTSPublisher struct {
	Speech        Synthesizer
	Store         BlobStore
	ScratchDir    string
	Attempts      int           // synthesize+upload attempts per item
	RetryDelay    time.Duration // between attempts
	SettleDelay   time.Duration // after upload, before issuing the link
	Cooldown      time.Duration // after each item while work remains
	Workers       int           // 1 keeps items strictly sequential
	MaxInputChars int

	// Sleep waits between steps; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Publish processes items and sets AudioHandle in place on every item that
// reached StagePublished. Item ids are positions (index+1) in items.
func (p *TTSPublisher) Publish(ctx context.Context, items []model.ContentItem, folder, prefix string) PublishResult {
	var res PublishResult
	if len(items) == 0 {
		return res
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 2
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	all := func() []int {
		ids := make([]int, len(items))
		for i := range items {
			ids[i] = i + 1
		}
		return ids
	}
	if err := os.MkdirAll(p.ScratchDir, 0o755); err != nil {
		slog.Error("tts: scratch dir", "dir", p.ScratchDir, "err", err)
		res.Failed = all()
		return res
	}
	dir, err := os.MkdirTemp(p.ScratchDir, "batch-")
	if err != nil {
		slog.Error("tts: scratch dir", "dir", p.ScratchDir, "err", err)
		res.Failed = all()
		return res
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("tts: cleanup scratch", "dir", dir, "err", err)
		}
	}()

	if err := p.Store.EnsureFolder(ctx, folder); err != nil {
		slog.Warn("tts: ensure folder", "folder", folder, "err", err)
	}

	jobs := make(chan int, len(items))
	for i := range items {
		jobs <- i
	}
	close(jobs)
	remaining := int64(len(items))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				id := i + 1
				stage := StagePending
				if strings.TrimSpace(items[i].Summary) == "" {
					mu.Lock()
					res.Skipped = append(res.Skipped, id)
					mu.Unlock()
				} else {
					var handle model.AudioHandle
					handle, stage = p.publishOne(ctx, dir, items[i].Summary, id, folder, prefix, attempts, sleep)
					mu.Lock()
					if stage == StagePublished {
						items[i].AudioHandle = handle
						res.Published = append(res.Published, id)
					} else {
						res.Failed = append(res.Failed, id)
					}
					mu.Unlock()
				}
				slog.Info("tts: item done", "id", id, "stage", stage)
				if atomic.AddInt64(&remaining, -1) > 0 {
					sleep(ctx, p.Cooldown)
				}
			}
		}()
	}
	wg.Wait()

	sort.Ints(res.Published)
	sort.Ints(res.Failed)
	sort.Ints(res.Skipped)
	slog.Info("tts: batch complete", "folder", folder, "published", len(res.Published), "failed", res.Failed, "skipped", len(res.Skipped))
	return res
}

func (p *TTSPublisher) publishOne(ctx context.Context, dir, text string, id int, folder, prefix string, attempts int, sleep func(context.Context, time.Duration) error) (model.AudioHandle, Stage) {
	name := fmt.Sprintf("%s_%d.mp3", prefix, id)
	local := filepath.Join(dir, name)
	if p.MaxInputChars > 0 {
		if r := []rune(text); len(r) > p.MaxInputChars {
			text = string(r[:p.MaxInputChars])
		}
	}

	uploaded := false
	for attempt := 1; attempt <= attempts; attempt++ {
		stage, err := p.synthesizeAndUpload(ctx, text, local, name, folder)
		// The scratch copy never outlives an attempt.
		if rmErr := os.Remove(local); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("tts: remove scratch", "file", local, "err", rmErr)
		}
		if err == nil {
			uploaded = true
			break
		}
		slog.Warn("tts: attempt failed", "id", id, "attempt", attempt, "stage", stage, "err", err)
		if attempt < attempts {
			if sleep(ctx, p.RetryDelay) != nil {
				break
			}
		}
	}
	if !uploaded {
		return "", StageFailed
	}

	sleep(ctx, p.SettleDelay)
	slog.Debug("tts: stage", "id", id, "stage", StageLinkPending)
	handle, err := p.Store.IssuePublicLink(ctx, path.Join(folder, name))
	if err != nil {
		slog.Warn("tts: issue link failed", "id", id, "err", err)
		return "", StageFailed
	}
	return handle, StagePublished
}

// synthesizeAndUpload runs one attempt and reports the stage it reached.
func (p *TTSPublisher) synthesizeAndUpload(ctx context.Context, text, local, name, folder string) (Stage, error) {
	slog.Debug("tts: stage", "object", name, "stage", StageSynthesizing)
	audio, err := p.Speech.Synthesize(ctx, text)
	if err != nil {
		return StageSynthesizing, err
	}
	err = writeFile(local, audio)
	audio.Close()
	if err != nil {
		return StageSynthesizing, err
	}
	slog.Debug("tts: stage", "object", name, "stage", StageSynthesized)

	slog.Debug("tts: stage", "object", name, "stage", StageUploading)
	if err := p.Store.Upload(ctx, local, name, folder); err != nil {
		return StageUploading, err
	}
	slog.Debug("tts: stage", "object", name, "stage", StageUploaded)
	return StageUploaded, nil
}

func writeFile(name string, r io.Reader) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write audio: %w", err)
	}
	return f.Close()
}
