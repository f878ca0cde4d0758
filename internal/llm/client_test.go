package llm

import (
	"context"
	"strings"
	"testing"
)

func TestValidateProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     Provider
		wantErr  bool
	}{
		{name: "valid openai", provider: "openai", want: ProviderOpenAI},
		{name: "valid ollama", provider: "ollama", want: ProviderOllama},
		{name: "valid anthropic", provider: "anthropic", want: ProviderAnthropic},
		{name: "valid gemini", provider: "gemini", want: ProviderGemini},
		{name: "invalid provider", provider: "invalid", wantErr: true},
		{name: "empty provider", provider: "", wantErr: true},
		{name: "case sensitive - OPENAI fails", provider: "OPENAI", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateProvider(tt.provider)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProvider(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ValidateProvider(%q) = %v, want %v", tt.provider, got, tt.want)
			}
		})
	}
}

func TestDefaultModelForProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "gpt-4.1-mini"},
		{"ollama", "llama3.2"},
		{"anthropic", "claude-3-5-sonnet-latest"},
		{"gemini", "gemini-2.0-flash"},
		{"unknown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DefaultModelForProvider(tt.provider); got != tt.want {
			t.Errorf("DefaultModelForProvider(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.Provider != ProviderOllama {
		t.Errorf("Provider = %q, want %q", cfg.Provider, ProviderOllama)
	}
	if cfg.Model != "llama3.2" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Temperature == nil || *cfg.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", cfg.Temperature, DefaultTemperature)
	}
	if cfg.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d", cfg.MaxTokens)
	}

	temp := float32(0.1)
	kept := Config{Provider: ProviderOpenAI, Model: "custom", Temperature: &temp}.WithDefaults()
	if kept.Model != "custom" || *kept.Temperature != 0.1 {
		t.Errorf("WithDefaults overwrote explicit values: %+v", kept)
	}
}

func TestNewCloseableChatModel_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"openai requires API key", Config{Provider: ProviderOpenAI}, "OpenAI API key is required"},
		{"anthropic requires API key", Config{Provider: ProviderAnthropic}, "anthropic API key is required"},
		{"gemini requires API key", Config{Provider: ProviderGemini}, "gemini API key is required"},
		{"unsupported provider", Config{Provider: "unknown", APIKey: "key"}, "unsupported LLM provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCloseableChatModel(ctx, tt.cfg)
			if err == nil {
				t.Fatalf("NewCloseableChatModel() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewCloseableChatModel() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewChatModel_Ollama(t *testing.T) {
	cm, err := NewChatModel(context.Background(), Config{Provider: ProviderOllama, Model: "llama3.2"})
	if err != nil {
		t.Fatalf("NewChatModel(ollama) error = %v", err)
	}
	if cm == nil {
		t.Fatal("NewChatModel(ollama) returned nil model")
	}
}

func TestCloseableChatModel_Close(t *testing.T) {
	cm := &CloseableChatModel{closer: &genaiClientCloser{}}
	if err := cm.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := cm.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "from-google")

	if got := ResolveAPIKey(ProviderGemini, ""); got != "from-google" {
		t.Errorf("ResolveAPIKey(gemini) = %q, want from-google", got)
	}
	if got := ResolveAPIKey(ProviderGemini, " explicit "); got != "explicit" {
		t.Errorf("ResolveAPIKey with configured key = %q", got)
	}
	if got := ResolveAPIKey(ProviderOllama, ""); got != "" {
		t.Errorf("ResolveAPIKey(ollama) = %q, want empty", got)
	}
}
