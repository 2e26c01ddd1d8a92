package ai

import (
	"context"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISpeech synthesizes mp3 audio with the OpenAI speech endpoint.
type OpenAISpeech struct {
	client *openai.Client
	model  string
	voice  string
}

func NewOpenAISpeech(cfg Config, ttsModel, voice string) *OpenAISpeech {
	if ttsModel == "" {
		ttsModel = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	return &OpenAISpeech{client: newOpenAIClient(cfg), model: ttsModel, voice: voice}
}

// Synthesize returns the mp3 stream for text. The caller closes it. The 60s
// budget covers the whole download, not just the response headers.
func (s *OpenAISpeech) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	body, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("openai speech: %w", classifyOpenAI(err))
	}
	return &cancelOnClose{ReadCloser: body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
