package handlers

import (
	"context"
	"html/template"
	"iter"
	"log/slog"

	chatui "github.com/MegaGrindStone/stream-chat-ui"
	"github.com/MegaGrindStone/stream-chat-ui/internal/metrics"
	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"github.com/MegaGrindStone/stream-chat-ui/internal/render"
	"github.com/prometheus/client_golang/prometheus"
)

// LLM represents a large language model that streams a single completion. The returned iterator
// yields response fragments in order and stops after the first error.
type LLM interface {
	Chat(ctx context.Context, completion models.Completion) iter.Seq2[string, error]
}

const (
	// DefaultTemperature is the sampling temperature sent upstream when none is configured.
	DefaultTemperature float32 = 0.7
	// DefaultMaxTokens is the completion length limit sent upstream when none is configured.
	DefaultMaxTokens = 2048
)

// Config holds the generation settings of the relay.
type Config struct {
	Catalog     models.Catalog
	Prompts     models.SystemPrompts
	Temperature float32
	MaxTokens   int

	// AuthEnabled is reported to the pages so they can show sign-in and sign-out controls.
	AuthEnabled bool
}

// Main handles the chat relay, its JSON helpers and the HTML pages.
type Main struct {
	templates *template.Template
	renderer  render.Renderer

	llm         LLM
	catalog     models.Catalog
	prompts     models.SystemPrompts
	temperature float32
	maxTokens   int
	authEnabled bool

	metrics *metrics.Relay
	logger  *slog.Logger
}

const errLoggerKey = "err"

// NewMain creates a new Main instance with the provided LLM. It parses the HTML templates from the
// embedded filesystem. Empty catalog, prompts or max tokens in cfg fall back to the built-in ones.
func NewMain(llm LLM, cfg Config, relayMetrics *metrics.Relay, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		chatui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	if len(cfg.Catalog.Models()) == 0 {
		cfg.Catalog = models.DefaultCatalog()
	}
	if cfg.Prompts.Normal == "" || cfg.Prompts.Thinking == "" {
		cfg.Prompts = models.DefaultSystemPrompts()
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if relayMetrics == nil {
		relayMetrics = metrics.NewRelay(prometheus.NewRegistry())
	}

	return Main{
		templates:   tmpl,
		renderer:    render.New(),
		llm:         llm,
		catalog:     cfg.Catalog,
		prompts:     cfg.Prompts,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		authEnabled: cfg.AuthEnabled,
		metrics:     relayMetrics,
		logger:      logger.With(slog.String("module", "main")),
	}, nil
}
