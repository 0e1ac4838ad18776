package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Anthropic streams completions from the Anthropic messages API.
type Anthropic struct {
	apiKey   string
	endpoint string

	client *http.Client
}

const (
	// AnthropicAPIEndpoint is the default base URL of the Anthropic API.
	AnthropicAPIEndpoint = "https://api.anthropic.com/v1"

	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 2048
)

type anthropicTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []anthropicTurn `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature"`
	Stream      bool            `json:"stream"`
}

// anthropicEvent covers the fields this client reads from both content_block_delta and error events.
type anthropicEvent struct {
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropic returns an Anthropic client. An empty endpoint uses AnthropicAPIEndpoint.
func NewAnthropic(apiKey, endpoint string) Anthropic {
	if endpoint == "" {
		endpoint = AnthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

// Chat yields the text deltas of a single completion until message_stop. An error event from the API
// ends the sequence with an error. Cancelling ctx ends it silently.
func (a Anthropic) Chat(ctx context.Context, c models.Completion) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, err := a.open(ctx, c)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				yield("", err)
			}
			return
		}
		defer body.Close()

		for ev, err := range sse.Read(body, nil) {
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					yield("", fmt.Errorf("error reading response: %w", err))
				}
				return
			}

			text, done, err := decodeAnthropicEvent(ev.Type, ev.Data)
			if err != nil {
				yield("", err)
				return
			}
			if done {
				return
			}
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// open sends the streaming request and returns the event stream body.
func (a Anthropic) open(ctx context.Context, c models.Completion) (io.ReadCloser, error) {
	maxTokens := c.MaxTokens
	if maxTokens == 0 {
		// The messages API rejects requests without max_tokens.
		maxTokens = anthropicDefaultMaxTokens
	}

	payload, err := json.Marshal(anthropicRequest{
		Model:       c.Model,
		System:      c.SystemPrompt,
		Messages:    []anthropicTurn{{Role: string(models.RoleUser), Content: c.Message}},
		MaxTokens:   maxTokens,
		Temperature: c.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp.Body, nil
}

// decodeAnthropicEvent maps one server-sent event to the text it carries. done is set on
// message_stop. Event types this client does not use (message_start, ping, ...) yield nothing.
func decodeAnthropicEvent(typ, data string) (text string, done bool, err error) {
	switch typ {
	case "message_stop":
		return "", true, nil
	case "content_block_delta", "error":
	default:
		return "", false, nil
	}

	var ev anthropicEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return "", false, fmt.Errorf("error unmarshaling %s event: %w", typ, err)
	}
	if typ == "error" {
		return "", false, fmt.Errorf("anthropic error %s: %s", ev.Error.Type, ev.Error.Message)
	}
	return ev.Delta.Text, false, nil
}
