package llm

// Provider constants
const (
	// DefaultProvider is the default LLM provider
	DefaultProvider = ProviderOllama

	// ProviderOpenAI represents the OpenAI provider
	ProviderOpenAI Provider = "openai"

	// ProviderOllama represents a local or remote Ollama server
	ProviderOllama Provider = "ollama"

	// ProviderAnthropic represents the Anthropic provider
	ProviderAnthropic Provider = "anthropic"

	// ProviderGemini represents the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// DefaultOllamaURL is the default URL for Ollama server
const DefaultOllamaURL = "http://localhost:11434"

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature float32 = 0.7

// DefaultMaxIterations bounds the tool-calling loop of one agent turn.
const DefaultMaxIterations = 8

// DefaultMaxTokens is passed to providers that require an output cap.
const DefaultMaxTokens = 4096

var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4.1-mini",
	ProviderOllama:    "llama3.2",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderGemini:    "gemini-2.0-flash",
}

// DefaultModelForProvider returns the model used when none is configured,
// or "" for an unknown provider.
func DefaultModelForProvider(provider string) string {
	return defaultModels[Provider(provider)]
}

// APIKeyEnvVars lists the environment variables consulted for a provider's key, in order.
var APIKeyEnvVars = map[Provider][]string{
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}
