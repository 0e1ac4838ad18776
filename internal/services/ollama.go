package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama streams completions from a local or remote Ollama server.
type Ollama struct {
	client *api.Client
}

// NewOllama returns a client for the Ollama server at host, e.g. http://localhost:11434.
func NewOllama(host string) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		client: api.NewClient(u, &http.Client{}),
	}, nil
}

// Chat yields the content of each streamed chat response. MaxTokens maps to the num_predict option.
// When the consumer stops early the underlying request is cancelled.
func (o Ollama) Chat(ctx context.Context, c models.Completion) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		t := true
		req := api.ChatRequest{
			Model: c.Model,
			Messages: []api.Message{
				{
					Role:    "system",
					Content: c.SystemPrompt,
				},
				{
					Role:    string(models.RoleUser),
					Content: c.Message,
				},
			},
			Stream: &t,
			Options: map[string]any{
				"temperature": c.Temperature,
			},
		}
		if c.MaxTokens > 0 {
			req.Options["num_predict"] = c.MaxTokens
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if stopped || res.Message.Content == "" {
				return nil
			}
			if !yield(res.Message.Content, nil) {
				stopped = true
				cancel()
			}
			return nil
		}); err != nil {
			if stopped || errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}
