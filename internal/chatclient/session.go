// Package chatclient is the consuming side of the chat relay. A Session keeps the ordered message list
// of one conversation, posts each turn to the relay and grows the assistant reply as fragments arrive.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrEmptyMessage is returned by Submit for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy is returned by Submit while the previous reply is still streaming.
	ErrBusy = errors.New("a response is still streaming")
)

// ChatPath is the relay endpoint, relative to the base URL of the server.
const ChatPath = "/api/chat"

// Turn is one user submission.
type Turn struct {
	Message     string
	Model       string
	UseThinking bool
}

type chatRequest struct {
	Message     string `json:"message"`
	Model       string `json:"model,omitempty"`
	UseThinking bool   `json:"useThinking"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StatusError is reported when the relay answers with a non-2xx status before streaming.
type StatusError struct {
	Code    int
	Message string
}

func (e StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("relay returned status %d %s", e.Code, http.StatusText(e.Code))
}

// Session is a single conversation against one relay. It is safe for concurrent use, but only one
// turn streams at a time.
type Session struct {
	baseURL string
	client  *http.Client
	cookies []*http.Cookie

	ids    *idGenerator
	logger *slog.Logger

	mu       sync.Mutex
	messages []models.Message
	busy     bool
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		s.client = c
	}
}

// WithLogger sets the logger malformed frames and failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithCookies attaches cookies, typically the server's session cookie, to every relay request.
func WithCookies(cookies ...*http.Cookie) Option {
	return func(s *Session) {
		s.cookies = append(s.cookies, cookies...)
	}
}

// NewSession creates a session talking to the relay at baseURL.
func NewSession(baseURL string, opts ...Option) *Session {
	s := &Session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		ids:     newIDGenerator(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("module", "chatclient"))
	return s
}

// Busy reports whether a reply is currently streaming.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Messages returns a copy of the conversation in insertion order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// Submit sends one turn. It appends the frozen user message and an empty assistant placeholder, then
// streams the relay's reply into the placeholder, calling onUpdate with a copy of the placeholder
// after every change. onUpdate may be nil.
//
// A transport failure replaces the placeholder content with "Error: <cause>" and is returned as well.
// The session is no longer busy once Submit returns, whatever the outcome.
func (s *Session) Submit(ctx context.Context, turn Turn, onUpdate func(models.Message)) error {
	if strings.TrimSpace(turn.Message) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true

	now := time.Now()
	s.messages = append(s.messages,
		models.Message{
			ID:             s.ids.next(),
			Role:           models.RoleUser,
			Content:        turn.Message,
			Timestamp:      now,
			StreamingState: models.StreamingStateEnded,
		},
		models.Message{
			ID:             s.ids.next(),
			Role:           models.RoleAssistant,
			Timestamp:      now,
			Model:          turn.Model,
			UseThinking:    turn.UseThinking,
			StreamingState: models.StreamingStateLoading,
		},
	)
	idx := len(s.messages) - 1
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	update := func(fn func(*models.Message)) {
		s.mu.Lock()
		fn(&s.messages[idx])
		msg := s.messages[idx]
		s.mu.Unlock()
		if onUpdate != nil {
			onUpdate(msg)
		}
	}

	update(func(*models.Message) {})

	err := s.stream(ctx, turn, func(fragment string) {
		update(func(m *models.Message) {
			m.Content += fragment
			m.StreamingState = models.StreamingStateStreaming
		})
	})
	if err != nil {
		s.logger.Error("Stream failed", slog.String("err", err.Error()))
		update(func(m *models.Message) {
			m.Content = "Error: " + err.Error()
			m.StreamingState = models.StreamingStateFailed
		})
		return err
	}

	update(func(m *models.Message) {
		m.StreamingState = models.StreamingStateEnded
	})
	return nil
}

func (s *Session) stream(ctx context.Context, turn Turn, onFragment func(string)) error {
	body, err := json.Marshal(chatRequest{
		Message:     turn.Message,
		Model:       turn.Model,
		UseThinking: turn.UseThinking,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+ChatPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for _, c := range s.cookies {
		req.AddCookie(c)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	sawSentinel, err := ReadStream(resp.Body, s.logger, onFragment)
	if err != nil {
		return err
	}
	s.logger.Debug("Stream ended", slog.Bool("sentinel", sawSentinel))
	return nil
}

// idGenerator hands out message ids that are unique within its session: a random per-session prefix
// and a monotonic counter.
type idGenerator struct {
	prefix  string
	counter atomic.Uint64
}

func newIDGenerator() *idGenerator {
	return &idGenerator{prefix: uuid.NewString()[:8]}
}

func (g *idGenerator) next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.counter.Add(1))
}
