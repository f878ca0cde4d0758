package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/josephgoksu/deepagent/internal/integrity"
	"github.com/josephgoksu/deepagent/internal/llm"
	"github.com/josephgoksu/deepagent/types"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Setup wires env overrides and the config file search path into v.
// An explicit cfgFile wins over the search path. A missing .env is fine.
func Setup(v *viper.Viper, cfgFile string) {
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	SetDefaults(v)
}

// Read reads the config file. A file that is not found is not an error unless
// it was named explicitly.
func Read(v *viper.Viper, explicit bool) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) && !explicit {
		return nil
	}
	if explicit && errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file not found: %s", v.ConfigFileUsed())
	}
	return fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
}

// Load unmarshals v into an AppConfig and validates it.
func Load(v *viper.Viper) (*types.AppConfig, error) {
	var cfg types.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags plus the rules tags cannot express.
func Validate(cfg *types.AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Integrity.Enabled {
		if err := integrity.ValidateSchedule(cfg.Integrity.Schedule); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// LLMConfig builds the chat-model config. The API key falls back to the
// provider's environment variables and the base URL to the local Ollama server.
func LLMConfig(cfg *types.AppConfig) (llm.Config, error) {
	provider := cfg.LLM.Provider
	if provider == "" {
		provider = string(llm.DefaultProvider)
	}
	p, err := llm.ValidateProvider(provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	baseURL := cfg.LLM.BaseURL
	if baseURL == "" && p == llm.ProviderOllama {
		baseURL = llm.DefaultOllamaURL
	}
	temp := float32(cfg.LLM.Temperature)

	return llm.Config{
		Provider:    p,
		Model:       cfg.LLM.Model,
		APIKey:      llm.ResolveAPIKey(p, cfg.LLM.APIKey),
		BaseURL:     baseURL,
		Temperature: &temp,
		MaxTokens:   cfg.LLM.MaxTokens,
	}.WithDefaults(), nil
}

// Millis converts a millisecond setting to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
