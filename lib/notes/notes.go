package notes

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/boxboxhq/boxbox/models"
)

// Generator writes short race recaps from result data. It is optional:
// a nil Generator (no API key configured) produces no notes.
type Generator struct {
	client *openai.Client
	logger *slog.Logger
}

// New returns a Generator, or nil when apiKey is empty.
func New(apiKey string, logger *slog.Logger) *Generator {
	if apiKey == "" {
		return nil
	}
	return &Generator{
		client: openai.NewClient(apiKey),
		logger: logger,
	}
}

// Recap produces a two-sentence recap for a race with known results.
func (g *Generator) Recap(ctx context.Context, race *models.Race) (string, error) {
	if g == nil {
		return "", nil
	}
	if race.Winner == "" {
		return "", fmt.Errorf("race has no results yet")
	}

	content := fmt.Sprintf(
		"Race: %s (%d, round %d) at %s. Podium: 1. %s, 2. %s, 3. %s.",
		race.Name, race.Season, race.Round, race.Circuit,
		race.PodiumP1, race.PodiumP2, race.PodiumP3,
	)

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You are a Formula 1 editor. Write a neutral two-sentence recap of the race from the given podium. Do not invent events not implied by the data.",
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: content,
		},
	}

	req := openai.ChatCompletionRequest{
		Model:    openai.GPT4oMini20240718,
		Messages: messages,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to generate recap: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty recap response")
	}

	recap := strings.TrimSpace(resp.Choices[0].Message.Content)
	g.logger.Debug("Generated race recap",
		slog.String("race", race.Name),
		slog.Int("length", len(recap)))

	return recap, nil
}
