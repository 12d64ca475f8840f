// Package distill condenses conversation transcripts into durable memory
// entries.
package distill

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/observability"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

const (
	defaultModel    = "claude-3-5-haiku-latest"
	defaultMaxFacts = 10

	systemPrompt = "Extract durable facts worth remembering from the conversation. " +
		"Reply with one fact per line, no numbering and no commentary. " +
		"Only include stable preferences, decisions and biographical details."
)

// Config holds distiller configuration
type Config struct {
	APIKey   string
	Model    string
	MaxFacts int
	Logger   zerolog.Logger
}

// Distiller extracts stable facts from a transcript and stores them as
// conversation entries. Without an API key, or when the model call fails, it
// falls back to a line-based heuristic so distillation always produces
// something.
type Distiller struct {
	engine   *memory.Engine
	client   anthropic.Client
	hasKey   bool
	model    string
	maxFacts int
	logger   zerolog.Logger
}

// New creates a distiller writing into engine.
func New(engine *memory.Engine, cfg Config) *Distiller {
	d := &Distiller{
		engine:   engine,
		hasKey:   cfg.APIKey != "",
		model:    cfg.Model,
		maxFacts: cfg.MaxFacts,
		logger:   cfg.Logger,
	}
	if d.model == "" {
		d.model = defaultModel
	}
	if d.maxFacts <= 0 {
		d.maxFacts = defaultMaxFacts
	}
	if d.hasKey {
		d.client = anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	}
	return d
}

// Distill extracts facts from transcript and upserts each under a
// content-derived key, so re-distilling the same conversation overwrites
// instead of duplicating. Returns the stored keys.
func (d *Distiller) Distill(ctx context.Context, transcript, sessionID string) ([]string, error) {
	if strings.TrimSpace(transcript) == "" {
		return []string{}, nil
	}

	facts := d.extract(ctx, transcript)
	if len(facts) == 0 {
		observability.RecordDistill(true)
		return []string{}, nil
	}

	keys := make([]string, 0, len(facts))
	for _, fact := range facts {
		key := "distilled:" + memory.ContentHash(fact)[:12]
		if err := d.engine.Store(ctx, key, fact, memory.CategoryConversation, sessionID); err != nil {
			observability.RecordDistill(false)
			return keys, fmt.Errorf("failed to store distilled fact: %w", err)
		}
		keys = append(keys, key)
	}

	observability.RecordDistill(true)
	d.logger.Info().Int("facts", len(keys)).Str("session", sessionID).Msg("Distillation completed")
	return keys, nil
}

func (d *Distiller) extract(ctx context.Context, transcript string) []string {
	if !d.hasKey {
		return heuristicFacts(transcript, d.maxFacts)
	}

	response, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(transcript)),
		},
	})
	if err != nil {
		d.logger.Warn().Err(err).Msg("Distillation model call failed, using heuristic")
		return heuristicFacts(transcript, d.maxFacts)
	}

	text := ""
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += b.Text
		}
	}
	return parseFacts(text, d.maxFacts)
}

func parseFacts(text string, max int) []string {
	var facts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if line == "" {
			continue
		}
		facts = append(facts, line)
		if len(facts) >= max {
			break
		}
	}
	return facts
}

// heuristicFacts keeps declarative lines of reasonable length, with speaker
// prefixes stripped.
func heuristicFacts(transcript string, max int) []string {
	var facts []string
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, ": "); idx > 0 && idx < 12 {
			line = line[idx+2:]
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "- "))
		if len(line) < 20 || len(line) > 300 {
			continue
		}
		if strings.HasSuffix(line, "?") {
			continue
		}
		facts = append(facts, line)
		if len(facts) >= max {
			break
		}
	}
	return facts
}
