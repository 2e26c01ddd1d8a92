package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSynthesizeRequestAndClose(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		Input          string `json:"input"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-mp3-bytes"))
	}))
	defer srv.Close()

	s := NewOpenAISpeech(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, "", "")
	rc, err := s.Synthesize(context.Background(), "Rates held steady in Sydney.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	coc, ok := rc.(*cancelOnClose)
	if !ok {
		t.Fatalf("stream type = %T", rc)
	}
	released := false
	cancel := coc.cancel
	coc.cancel = func() { released = true; cancel() }

	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "ID3-mp3-bytes" {
		t.Errorf("body = %q", b)
	}
	if err := rc.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !released {
		t.Error("Close should release the request timeout")
	}

	if got.Model != "tts-1" || got.Voice != "alloy" || got.ResponseFormat != "mp3" {
		t.Errorf("request = %+v", got)
	}
	if got.Input != "Rates held steady in Sydney." {
		t.Errorf("input = %q", got.Input)
	}
}

func TestSynthesizeClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	s := NewOpenAISpeech(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, "tts-1", "nova")
	_, err := s.Synthesize(context.Background(), "x")
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want transient", err)
	}
}
