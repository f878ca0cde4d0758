/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose" yaml:"-"`
	Config    string          `mapstructure:"config" yaml:"-"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Integrity IntegrityConfig `mapstructure:"integrity" yaml:"integrity"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port              int      `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	APIKey            string   `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	AllowedOrigins    []string `mapstructure:"allowedOrigins" yaml:"allowedOrigins"`
	ChatRatePerSecond float64  `mapstructure:"chatRatePerSecond" yaml:"chatRatePerSecond" validate:"min=0"`
	ChatBurst         int      `mapstructure:"chatBurst" yaml:"chatBurst" validate:"min=0"`
}

// LLMConfig holds configuration for the chat model behind the agent
type LLMConfig struct {
	Provider      string  `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=openai ollama anthropic gemini"`
	Model         string  `mapstructure:"model" yaml:"model,omitempty"`
	BaseURL       string  `mapstructure:"baseURL" yaml:"baseURL,omitempty" validate:"omitempty,url"`
	APIKey        string  `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	Temperature   float64 `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens     int     `mapstructure:"maxTokens" yaml:"maxTokens" validate:"min=0"`
	MaxIterations int     `mapstructure:"maxIterations" yaml:"maxIterations" validate:"min=1,max=50"`
	// SystemPrompt replaces the built-in agent instructions when set
	SystemPrompt string `mapstructure:"systemPrompt" yaml:"systemPrompt,omitempty"`
}

// StorageConfig holds SQLite settings
type StorageConfig struct {
	DataDir        string `mapstructure:"dataDir" yaml:"dataDir,omitempty"`
	BusyTimeoutMs  int    `mapstructure:"busyTimeoutMs" yaml:"busyTimeoutMs" validate:"min=0"`
	QueryTimeoutMs int    `mapstructure:"queryTimeoutMs" yaml:"queryTimeoutMs" validate:"min=0"`
}

// IntegrityConfig holds the duplicate-active-plan sweep schedule
type IntegrityConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Schedule string `mapstructure:"schedule" yaml:"schedule" validate:"required"`
}

// TelemetryConfig holds anonymous usage reporting settings
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey   string `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"omitempty,url"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}
