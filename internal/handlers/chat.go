package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/stream-chat-ui/internal/metrics"
	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Sentinel is the payload of the frame written after the last fragment of a successful stream.
const Sentinel = "[DONE]"

type chatRequest struct {
	Message     string `json:"message" validate:"required"`
	Model       string `json:"model"`
	UseThinking bool   `json:"useThinking"`
}

type chatFragment struct {
	Content string `json:"content"`
}

// HandleChat relays one chat completion as server-sent events. The JSON request body carries the
// user message, an optional model short name and the thinking flag.
//
// Every non-empty upstream fragment is written as one `data: {"content":...}` frame and flushed
// before the next fragment is pulled. A successful stream ends with a single `data: [DONE]` frame.
// Invalid requests are answered with a 400 JSON error before any frame is written. An upstream
// failure after the stream has started aborts the connection without the sentinel, so the client
// sees a transport error.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.metrics.Rejected()
		m.respondError(w, invalidRequest("Invalid request body", err))
		return
	}
	if err := validateRequest(req); err != nil {
		m.metrics.Rejected()
		m.respondError(w, err)
		return
	}

	model := m.catalog.Resolve(req.Model)
	completion := models.Completion{
		Model:        model.UpstreamID,
		SystemPrompt: m.prompts.Select(req.UseThinking),
		Message:      req.Message,
		Temperature:  m.temperature,
		MaxTokens:    m.maxTokens,
	}

	logger := m.logger.With(
		slog.String("model", model.Name),
		slog.Bool("useThinking", req.UseThinking))
	if req.Model != "" && req.Model != model.Name {
		logger.Warn("Unknown model, using fallback", slog.String("requested", req.Model))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		logger.Error("Streaming unsupported", slog.String(errLoggerKey, err.Error()))
		return
	}

	m.metrics.StreamStarted()
	status := metrics.StatusSuccess
	defer func() {
		m.metrics.StreamEnded(model.Name, status, time.Since(start).Seconds())
	}()

	fragments := 0
	for content, err := range m.llm.Chat(r.Context(), completion) {
		if err != nil {
			logger.Error("Error from llm provider",
				slog.Int("fragments", fragments),
				slog.String(errLoggerKey, err.Error()))
			status = metrics.StatusError
			// Headers are already on the wire: tear the connection down instead of finishing the stream.
			panic(http.ErrAbortHandler)
		}
		if content == "" {
			continue
		}

		data, err := encodeFragment(content)
		if err != nil {
			logger.Error("Failed to encode fragment", slog.String(errLoggerKey, err.Error()))
			continue
		}
		if err := writeFrame(w, rc, data); err != nil {
			logger.Warn("Client went away", slog.String(errLoggerKey, err.Error()))
			status = metrics.StatusCanceled
			return
		}

		m.metrics.Fragment(model.Name, fragments == 0, time.Since(start).Seconds())
		fragments++
	}

	if r.Context().Err() != nil {
		logger.Info("Request canceled", slog.Int("fragments", fragments))
		status = metrics.StatusCanceled
		return
	}

	if err := writeFrame(w, rc, Sentinel); err != nil {
		logger.Warn("Failed to write sentinel", slog.String(errLoggerKey, err.Error()))
		status = metrics.StatusCanceled
		return
	}
	logger.Debug("Stream finished", slog.Int("fragments", fragments))
}

// encodeFragment marshals a fragment without HTML escaping, so the frame carries the text as the
// model produced it.
func encodeFragment(content string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(chatFragment{Content: content}); err != nil {
		return "", fmt.Errorf("failed to marshal fragment: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func writeFrame(w io.Writer, rc *http.ResponseController, data string) error {
	msg := &sse.Message{}
	msg.AppendData(data)
	if _, err := msg.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("failed to flush frame: %w", err)
	}
	return nil
}
