package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MegaGrindStone/stream-chat-ui/internal/auth"
	"github.com/MegaGrindStone/stream-chat-ui/internal/handlers"
	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"github.com/MegaGrindStone/stream-chat-ui/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(logger *slog.Logger) (handlers.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"apiKey"`
}

type config struct {
	Port      string `yaml:"port"`
	BaseURL   string `yaml:"baseURL"`
	Debug     bool   `yaml:"debug"`
	LogFormat string `yaml:"logFormat"`

	LLM         llmConfig     `yaml:"llm"`
	Temperature *float32      `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Models      modelsConfig  `yaml:"models"`
	Prompts     promptsConfig `yaml:"prompts"`

	Auth  authConfig  `yaml:"auth"`
	Store storeConfig `yaml:"store"`
}

type modelsConfig struct {
	Default  string         `yaml:"default"`
	Fallback string         `yaml:"fallback"`
	List     []models.Model `yaml:"list"`
}

type promptsConfig struct {
	Normal   string `yaml:"normal"`
	Thinking string `yaml:"thinking"`
}

type authConfig struct {
	GoogleClientID     string        `yaml:"googleClientID"`
	GoogleClientSecret string        `yaml:"googleClientSecret"`
	RedirectURL        string        `yaml:"redirectURL"`
	SessionMaxAge      time.Duration `yaml:"sessionMaxAge"`
}

type storeConfig struct {
	Path string `yaml:"path"`
}

type groqConfig struct {
	BaseLLMConfig `yaml:",inline"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	BaseURL       string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Endpoint      string `yaml:"endpoint"`
}

func defaultConfig() config {
	return config{
		Port:      "8080",
		LogFormat: "json",
		LLM:       &groqConfig{BaseLLMConfig: BaseLLMConfig{Provider: "groq"}},
	}
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port        string         `yaml:"port"`
		BaseURL     string         `yaml:"baseURL"`
		Debug       bool           `yaml:"debug"`
		LogFormat   string         `yaml:"logFormat"`
		LLM         map[string]any `yaml:"llm"`
		Temperature *float32       `yaml:"temperature"`
		MaxTokens   int            `yaml:"maxTokens"`
		Models      modelsConfig   `yaml:"models"`
		Prompts     promptsConfig  `yaml:"prompts"`
		Auth        authConfig     `yaml:"auth"`
		Store       storeConfig    `yaml:"store"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.LogFormat != "" {
		c.LogFormat = rawConfig.LogFormat
	}
	c.BaseURL = rawConfig.BaseURL
	c.Debug = rawConfig.Debug
	c.Temperature = rawConfig.Temperature
	c.MaxTokens = rawConfig.MaxTokens
	c.Models = rawConfig.Models
	c.Prompts = rawConfig.Prompts
	c.Auth = rawConfig.Auth
	c.Store = rawConfig.Store

	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "groq":
		llm = &groqConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func (c config) handlersConfig() (handlers.Config, error) {
	catalog := models.DefaultCatalog()
	if len(c.Models.List) > 0 || c.Models.Default != "" || c.Models.Fallback != "" {
		list := c.Models.List
		if len(list) == 0 {
			list = models.DefaultModels
		}
		def := c.Models.Default
		if def == "" {
			def = models.DefaultModel
		}
		fb := c.Models.Fallback
		if fb == "" {
			fb = models.FallbackModel
		}
		var err error
		catalog, err = models.NewCatalog(list, def, fb)
		if err != nil {
			return handlers.Config{}, fmt.Errorf("invalid models config: %w", err)
		}
	}

	prompts := models.DefaultSystemPrompts()
	if c.Prompts.Normal != "" {
		prompts.Normal = c.Prompts.Normal
	}
	if c.Prompts.Thinking != "" {
		prompts.Thinking = c.Prompts.Thinking
	}

	temperature := handlers.DefaultTemperature
	if c.Temperature != nil {
		temperature = *c.Temperature
	}
	maxTokens := c.MaxTokens
	if maxTokens == 0 {
		maxTokens = handlers.DefaultMaxTokens
	}

	return handlers.Config{
		Catalog:     catalog,
		Prompts:     prompts,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		AuthEnabled: c.authConfig().ClientID != "",
	}, nil
}

// authConfig returns the Google sign-in settings, with secrets falling back to the environment. An
// empty ClientID means sign-in is disabled.
func (c config) authConfig() auth.Config {
	clientID := c.Auth.GoogleClientID
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	clientSecret := c.Auth.GoogleClientSecret
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + c.Port
	}
	redirectURL := c.Auth.RedirectURL
	if redirectURL == "" {
		redirectURL = baseURL + "/auth/callback"
	}

	return auth.Config{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RedirectURL:   redirectURL,
		BaseURL:       baseURL,
		SessionMaxAge: c.Auth.SessionMaxAge,
	}
}

func apiKeyOrEnv(key, env string) string {
	if key != "" {
		return key
	}
	return os.Getenv(env)
}

func (g groqConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	apiKey := apiKeyOrEnv(g.APIKey, "GROQ_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("groq api key is required")
	}
	return services.NewOpenAI(apiKey, services.GroqBaseURL, logger), nil
}

func (o openAIConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	apiKey := apiKeyOrEnv(o.APIKey, "OPENAI_API_KEY")
	if apiKey == "" && o.BaseURL == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, logger), nil
}

func (o ollamaConfig) llm(_ *slog.Logger) (handlers.LLM, error) {
	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	return services.NewOllama(host)
}

func (a anthropicConfig) llm(_ *slog.Logger) (handlers.LLM, error) {
	apiKey := apiKeyOrEnv(a.APIKey, "ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return services.NewAnthropic(apiKey, a.Endpoint), nil
}
