package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/josephgoksu/deepagent/types"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const fileHeader = "# deepagent configuration\n# Every key can be overridden with DEEPAGENT_<SECTION>_<KEY>.\n\n"

// Defaults returns an AppConfig holding every default value.
func Defaults() (*types.AppConfig, error) {
	v := viper.New()
	SetDefaults(v)
	return Load(v)
}

// WriteFile writes cfg as YAML to path. An existing file is kept unless force is set.
// Secrets are never written; they belong in the environment.
func WriteFile(path string, cfg *types.AppConfig, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	out := *cfg
	out.Server.APIKey = ""
	out.LLM.APIKey = ""
	out.Telemetry.APIKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append([]byte(fileHeader), data...), 0644)
}
