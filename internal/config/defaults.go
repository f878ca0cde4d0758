// Package config loads, validates and writes deepagent configuration.
// Every default lives here.
package config

import (
	"github.com/josephgoksu/deepagent/internal/integrity"
	"github.com/josephgoksu/deepagent/internal/llm"
	"github.com/spf13/viper"
)

const (
	// FileName is the config file name without extension.
	FileName = ".deepagent"
	// EnvPrefix is prepended to every environment override, e.g. DEEPAGENT_SERVER_PORT.
	EnvPrefix = "DEEPAGENT"
	// DataDirName is the directory holding the database, exports and crash logs.
	DataDirName = ".deepagent"
)

// Server defaults
const (
	DefaultPort              = 8000
	DefaultChatRatePerSecond = 2.0
	DefaultChatBurst         = 5
)

// Storage defaults
const (
	DefaultBusyTimeoutMs  = 5000
	DefaultQueryTimeoutMs = 10000
)

// DefaultAllowedOrigins are the origins of a local web client during development.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.apiKey", "")
	v.SetDefault("server.allowedOrigins", DefaultAllowedOrigins)
	v.SetDefault("server.chatRatePerSecond", DefaultChatRatePerSecond)
	v.SetDefault("server.chatBurst", DefaultChatBurst)

	v.SetDefault("llm.provider", string(llm.DefaultProvider))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.temperature", float64(llm.DefaultTemperature))
	v.SetDefault("llm.maxTokens", llm.DefaultMaxTokens)
	v.SetDefault("llm.maxIterations", llm.DefaultMaxIterations)
	v.SetDefault("llm.systemPrompt", "")

	v.SetDefault("storage.dataDir", "")
	v.SetDefault("storage.busyTimeoutMs", DefaultBusyTimeoutMs)
	v.SetDefault("storage.queryTimeoutMs", DefaultQueryTimeoutMs)

	v.SetDefault("integrity.enabled", true)
	v.SetDefault("integrity.schedule", integrity.DefaultSchedule)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.apiKey", "")
	v.SetDefault("telemetry.endpoint", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
