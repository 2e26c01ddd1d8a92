package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

const (
	verdictSummary     = "SUMMARY"
	verdictNotRelevant = "NOT_RELEVANT"
	verdictPaywall     = "PAYWALL_FOUND"
)

// Policy bounds input size and the retry schedule.
type Policy struct {
	MaxInputChars    int
	MaxWords         int
	MaxTokens        int
	Attempts         int           // total calls while failures are transient
	TransientBackoff time.Duration // multiplied by the attempt number
	ErrorAttempts    int           // total calls while failures are unclassified
	ErrorDelay       time.Duration
}

// Summarizer turns article and discussion text into short summaries.
type Summarizer struct {
	provider Provider
	policy   Policy
	// Sleep waits between attempts; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewSummarizer(p Provider, policy Policy) *Summarizer {
	if policy.MaxInputChars <= 0 {
		policy.MaxInputChars = 8000
	}
	if policy.MaxWords <= 0 {
		policy.MaxWords = 60
	}
	if policy.MaxTokens <= 0 {
		policy.MaxTokens = 500
	}
	if policy.Attempts <= 0 {
		policy.Attempts = 3
	}
	if policy.ErrorAttempts <= 0 {
		policy.ErrorAttempts = 2
	}
	return &Summarizer{provider: p, policy: policy, Sleep: sleepCtx}
}

func articleSystemPrompt(maxWords int) string {
	return fmt.Sprintf(`You analyze web content for an Australian news app. Follow these steps internally:

1. Check if the text is relevant to Australia (politics, economy, business, cities, people, culture, sports, or international news with an Australian angle).
   If it is not, the verdict is NOT_RELEVANT.
2. If relevant, write a 2-3 sentence summary (%d words max) focusing on key facts, names, events and details.
3. Check your summary: does it contain actual news facts (names, events, places, numbers)?
   If not, or if the text only says a subscription is required or the content is unavailable, the verdict is PAYWALL_FOUND.
   Otherwise the verdict is SUMMARY.

Reply with a JSON object only:
{"verdict": "SUMMARY" | "NOT_RELEVANT" | "PAYWALL_FOUND", "summary": "the summary text, empty unless verdict is SUMMARY"}`, maxWords)
}

// SummarizeArticle checks relevance, summarizes and self-checks for paywall
// content in one model call.
func (s *Summarizer) SummarizeArticle(ctx context.Context, text string) model.Summary {
	p := Prompt{
		System:      articleSystemPrompt(s.policy.MaxWords),
		User:        "Text:\n" + truncateRunes(text, s.policy.MaxInputChars),
		MaxTokens:   s.policy.MaxTokens,
		Temperature: 0.3,
		JSON:        true,
	}
	return s.run(ctx, "article", p, s.parseVerdict)
}

// SummarizeDiscussion summarizes a post together with its top comments.
func (s *Summarizer) SummarizeDiscussion(ctx context.Context, text string) model.Summary {
	maxTokens := s.policy.MaxTokens
	if maxTokens > 200 {
		maxTokens = 200
	}
	p := Prompt{
		User: fmt.Sprintf("Summarize this Reddit discussion including the main post and key points from top comments. Keep it concise (%d words max):\n\n%s",
			s.policy.MaxWords, truncateRunes(text, s.policy.MaxInputChars)),
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	}
	return s.run(ctx, "discussion", p, func(out string) (model.Summary, error) {
		out = strings.TrimSpace(out)
		if out == "" {
			return model.Summary{}, errors.New("empty completion")
		}
		return model.Summary{Outcome: model.OutcomeSummary, Text: clampWords(out, s.policy.MaxWords)}, nil
	})
}

// run calls the provider until parse accepts a reply. Transient and
// unclassified failures keep their own bounds, and the total number of calls
// never exceeds the larger of the two.
func (s *Summarizer) run(ctx context.Context, kind string, p Prompt, parse func(string) (model.Summary, error)) model.Summary {
	unavailable := model.Summary{Outcome: model.OutcomeUnavailable}
	limit := max(s.policy.Attempts, s.policy.ErrorAttempts)
	calls, transient, other := 0, 0, 0
	for {
		calls++
		out, err := s.provider.Complete(ctx, p)
		if err == nil {
			sum, perr := parse(out)
			if perr == nil {
				return sum
			}
			err = perr
		}
		if ctx.Err() != nil {
			return unavailable
		}
		var wait time.Duration
		switch {
		case errors.Is(err, ErrPermanent):
			slog.Error("ai: summarize failed", "kind", kind, "err", err)
			return unavailable
		case errors.Is(err, ErrTransient):
			transient++
			if transient >= s.policy.Attempts {
				slog.Error("ai: summarize gave up", "kind", kind, "attempts", transient, "err", err)
				return unavailable
			}
			wait = s.policy.TransientBackoff * time.Duration(transient)
			slog.Warn("ai: rate limited", "kind", kind, "attempt", transient, "wait", wait)
		default:
			other++
			if other >= s.policy.ErrorAttempts {
				slog.Error("ai: summarize gave up", "kind", kind, "attempts", other, "err", err)
				return unavailable
			}
			wait = s.policy.ErrorDelay
			slog.Warn("ai: summarize error", "kind", kind, "attempt", other, "err", err)
		}
		if calls >= limit {
			slog.Error("ai: summarize gave up", "kind", kind, "calls", calls, "err", err)
			return unavailable
		}
		if err := s.Sleep(ctx, wait); err != nil {
			return unavailable
		}
	}
}

// parseVerdict maps the model reply to an outcome. Only an exact verdict
// token counts; summary text mentioning a sentinel is still a summary.
func (s *Summarizer) parseVerdict(out string) (model.Summary, error) {
	switch strings.Trim(strings.TrimSpace(out), `"`) {
	case verdictNotRelevant:
		return model.Summary{Outcome: model.OutcomeNotRelevant}, nil
	case verdictPaywall:
		return model.Summary{Outcome: model.OutcomePaywall}, nil
	}
	var reply struct {
		Verdict string `json:"verdict"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleanJSONResponse(out)), &reply); err != nil {
		return model.Summary{}, fmt.Errorf("decode verdict: %w", err)
	}
	switch strings.ToUpper(strings.TrimSpace(reply.Verdict)) {
	case verdictNotRelevant:
		return model.Summary{Outcome: model.OutcomeNotRelevant}, nil
	case verdictPaywall:
		return model.Summary{Outcome: model.OutcomePaywall}, nil
	case verdictSummary:
		text := strings.TrimSpace(reply.Summary)
		if text == "" {
			return model.Summary{Outcome: model.OutcomePaywall}, nil
		}
		return model.Summary{Outcome: model.OutcomeSummary, Text: clampWords(text, s.policy.MaxWords)}, nil
	}
	return model.Summary{}, fmt.Errorf("unknown verdict %q", reply.Verdict)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clampWords(s string, n int) string {
	words := strings.Fields(s)
	if n <= 0 || len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
