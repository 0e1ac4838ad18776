package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"gopkg.in/yaml.v3"
)

func TestConfigUnmarshalYAML(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantErr  bool
		wantType any
		check    func(t *testing.T, c config)
	}{
		{
			name:     "defaults",
			yaml:     "debug: true\n",
			wantType: &groqConfig{},
			check: func(t *testing.T, c config) {
				if c.Port != "8080" || c.LogFormat != "json" || !c.Debug {
					t.Errorf("unexpected defaults: %+v", c)
				}
			},
		},
		{
			name: "groq",
			yaml: `
port: "9000"
llm:
  provider: groq
  apiKey: gsk
temperature: 0.2
maxTokens: 512
`,
			wantType: &groqConfig{},
			check: func(t *testing.T, c config) {
				if c.Port != "9000" {
					t.Errorf("port = %q", c.Port)
				}
				if c.LLM.(*groqConfig).APIKey != "gsk" {
					t.Error("api key not decoded")
				}
				if c.Temperature == nil || *c.Temperature != 0.2 || c.MaxTokens != 512 {
					t.Errorf("generation params not decoded: %v %d", c.Temperature, c.MaxTokens)
				}
			},
		},
		{
			name: "openai",
			yaml: `
llm:
  provider: openai
  baseURL: http://localhost:1234/v1
`,
			wantType: &openAIConfig{},
			check: func(t *testing.T, c config) {
				if c.LLM.(*openAIConfig).BaseURL != "http://localhost:1234/v1" {
					t.Error("base url not decoded")
				}
			},
		},
		{
			name: "ollama",
			yaml: `
llm:
  provider: ollama
  host: http://ollama:11434
`,
			wantType: &ollamaConfig{},
		},
		{
			name: "anthropic with auth and store",
			yaml: `
llm:
  provider: anthropic
  apiKey: sk-ant
auth:
  googleClientID: cid
  sessionMaxAge: 48h
store:
  path: /tmp/x.db
`,
			wantType: &anthropicConfig{},
			check: func(t *testing.T, c config) {
				if c.Auth.GoogleClientID != "cid" || c.Auth.SessionMaxAge != 48*time.Hour {
					t.Errorf("auth = %+v", c.Auth)
				}
				if c.Store.Path != "/tmp/x.db" {
					t.Errorf("store = %+v", c.Store)
				}
			},
		},
		{name: "missing provider", yaml: "llm:\n  apiKey: x\n", wantErr: true},
		{name: "unknown provider", yaml: "llm:\n  provider: cohere\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaultConfig()
			err := yaml.Unmarshal([]byte(tt.yaml), &c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got, want := typeName(c.LLM), typeName(tt.wantType); got != want {
				t.Errorf("llm config type = %s, want %s", got, want)
			}
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *groqConfig:
		return "groq"
	case *openAIConfig:
		return "openai"
	case *ollamaConfig:
		return "ollama"
	case *anthropicConfig:
		return "anthropic"
	default:
		return "unknown"
	}
}

func TestHandlersConfig(t *testing.T) {
	c := defaultConfig()
	hc, err := c.handlersConfig()
	if err != nil {
		t.Fatal(err)
	}
	if hc.Temperature != 0.7 || hc.MaxTokens != 2048 {
		t.Errorf("generation params = %v/%d, want 0.7/2048", hc.Temperature, hc.MaxTokens)
	}
	if hc.Catalog.Resolve("").Name != models.DefaultModel {
		t.Error("default catalog expected")
	}

	zero := float32(0)
	c.Temperature = &zero
	c.Models = modelsConfig{
		Default:  "small",
		Fallback: "small",
		List:     []models.Model{{Name: "small", UpstreamID: "llama3.2:1b"}},
	}
	hc, err = c.handlersConfig()
	if err != nil {
		t.Fatal(err)
	}
	if hc.Temperature != 0 {
		t.Errorf("explicit zero temperature = %v", hc.Temperature)
	}
	if got := hc.Catalog.Resolve("anything").UpstreamID; got != "llama3.2:1b" {
		t.Errorf("custom catalog resolve = %q", got)
	}

	c.Models.Default = "missing"
	if _, err := c.handlersConfig(); err == nil {
		t.Error("a default outside the catalog should be rejected")
	}
}

func TestAuthConfigFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "env-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "env-secret")

	c := defaultConfig()
	ac := c.authConfig()
	if ac.ClientID != "env-id" || ac.ClientSecret != "env-secret" {
		t.Errorf("auth config = %+v", ac)
	}
	if ac.RedirectURL != "http://localhost:8080/auth/callback" {
		t.Errorf("redirect url = %q", ac.RedirectURL)
	}

	hc, err := c.handlersConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !hc.AuthEnabled {
		t.Error("auth should be enabled when a client id is set")
	}
}

func TestLLMConfigEnvFallback(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	if _, err := (groqConfig{}).llm(nil); err == nil {
		t.Error("groq without a key should fail")
	}

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	if _, err := (anthropicConfig{}).llm(nil); err != nil {
		t.Errorf("anthropic with env key: %v", err)
	}

	t.Setenv("OLLAMA_HOST", "http://ollama:11434")
	if _, err := (ollamaConfig{}).llm(nil); err != nil {
		t.Errorf("ollama with env host: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	c, err := loadConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should use defaults: %v", err)
	}
	if c.Port != "8080" {
		t.Errorf("port = %q", c.Port)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: \"7000\"\nllm:\n  provider: ollama\n"), 0600); err != nil {
		t.Fatal(err)
	}
	c, err = loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "7000" {
		t.Errorf("port = %q", c.Port)
	}
	if _, ok := c.LLM.(*ollamaConfig); !ok {
		t.Errorf("llm = %T", c.LLM)
	}

	if err := os.WriteFile(path, []byte("llm: [\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("invalid yaml should fail")
	}
}
