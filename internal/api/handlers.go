package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pkarcreative/pwa-australian-news/internal/cache"
	"github.com/pkarcreative/pwa-australian-news/worker"
)

const audioChunk = 8 << 10

func (s *Server) list(k *kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := k.slot.Snapshot()
		if !ok {
			c.JSON(http.StatusNotFound, k.noData)
			return
		}
		c.JSON(http.StatusOK, k.views(snap))
	}
}

// FetchResponse is the body of a successful fetch.
type FetchResponse struct {
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	Count     int     `json:"count"`
	TTSCount  int     `json:"tts_count"`
	Timestamp string  `json:"timestamp"`
	Note      *string `json:"note"`
}

func (s *Server) fetch(k *kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if k.refresher == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": k.name + " ingestion is not configured", "count": 0})
			return
		}
		res, err := k.refresher.Refresh(c.Request.Context())
		switch {
		case errors.Is(err, cache.ErrAlreadyRefreshing):
			c.JSON(http.StatusConflict, gin.H{"status": "fetching", "message": k.busyMsg})
			return
		case errors.Is(err, worker.ErrNothingFetched):
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": k.emptyMsg, "count": 0})
			return
		case err != nil:
			slog.Error("api: fetch failed", "kind", k.name, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error(), "count": 0})
			return
		}
		resp := FetchResponse{
			Status:    "success",
			Message:   k.successMsg,
			Count:     res.Count,
			TTSCount:  res.AudioCount,
			Timestamp: res.CapturedAt.UTC().Format(time.RFC3339),
		}
		if res.AudioCount < res.Count {
			note := fmt.Sprintf("Audio unavailable for %d of %d items", res.Count-res.AudioCount, res.Count)
			resp.Note = &note
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) audio(k *kind) gin.HandlerFunc {
	noun := strings.ToLower(k.name)
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id < 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "message": "unknown audio id"})
			return
		}
		snap, ok := k.slot.Snapshot()
		if !ok || len(snap.Items) == 0 {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   fmt.Sprintf("No %s data available", noun),
				"message": fmt.Sprintf("Please fetch %s first via /api/fetch-%s", noun, noun),
			})
			return
		}
		item, ok := snap.Item(id)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   fmt.Sprintf("Invalid %s ID", noun),
				"message": fmt.Sprintf("%s ID must be between 1 and %d", k.name, len(snap.Items)),
			})
			return
		}
		if !item.HasAudio() {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "No TTS available",
				"message": fmt.Sprintf("TTS for %s %d not available", noun, id),
			})
			return
		}
		u, err := s.opts.Links.ResolveDownloadURL(c.Request.Context(), item.AudioHandle)
		if err != nil {
			slog.Error("api: resolve audio", "kind", k.name, "id", id, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "pCloud error", "message": "Audio is temporarily unavailable"})
			return
		}
		s.streamAudio(c, u)
	}
}

// streamAudio proxies the upstream body in fixed-size chunks. The upstream
// request shares the client's context, so a client hang-up closes it.
func (s *Server) streamAudio(c *gin.Context, u string) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, u, nil)
	if err != nil {
		slog.Error("api: audio request", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": "Audio is temporarily unavailable"})
		return
	}
	resp, err := s.opts.Upstream.Do(req)
	if err != nil {
		slog.Error("api: audio download", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": "Audio is temporarily unavailable"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("api: audio download", "status", resp.StatusCode)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pCloud error", "message": "Audio is temporarily unavailable"})
		return
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "audio/mpeg")
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	if resp.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	c.Status(http.StatusOK)

	buf := make([]byte, audioChunk)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				slog.Debug("api: client gone", "err", werr)
				return
			}
			c.Writer.Flush()
		}
		if rerr != nil {
			if rerr != io.EOF {
				slog.Warn("api: audio stream interrupted", "err", rerr)
			}
			return
		}
	}
}

type statusResponse struct {
	News   cache.Status `json:"news"`
	Reddit cache.Status `json:"reddit"`
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{News: s.news.slot.Status(), Reddit: s.reddit.slot.Status()})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Visitors.Snapshot())
}
