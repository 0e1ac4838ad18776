package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// GroqBaseURL is the OpenAI-compatible endpoint of the Groq API.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAI provides an implementation of the LLM interface for any OpenAI-compatible chat completion
// API. Pointing baseURL at GroqBaseURL talks to Groq; an empty baseURL talks to OpenAI itself.
type OpenAI struct {
	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance with the specified API key and base URL.
func NewOpenAI(apiKey, baseURL string, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return OpenAI{
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger.With(slog.String("module", "openai")),
	}
}

// Chat opens a streaming chat completion and yields every non-empty content delta in arrival order.
// The iterator stops after the first error. Cancelling ctx ends the stream without an error.
func (o OpenAI) Chat(ctx context.Context, c models.Completion) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := goopenai.ChatCompletionRequest{
			Model: c.Model,
			Messages: []goopenai.ChatCompletionMessage{
				{
					Role:    goopenai.ChatMessageRoleSystem,
					Content: c.SystemPrompt,
				},
				{
					Role:    goopenai.ChatMessageRoleUser,
					Content: c.Message,
				},
			},
			Stream:      true,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
		}

		o.logger.Debug("Request",
			slog.String("model", req.Model),
			slog.Int("messageLength", len(c.Message)))

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			content := response.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			if !yield(content, nil) {
				return
			}
		}
	}
}
