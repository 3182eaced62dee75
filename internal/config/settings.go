package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/flowbench/flowbench/internal/errors"
)

// Settings are the runner-level knobs, separate from suite documents.
// They come from flowbench.yaml, the FLOWBENCH_* environment, or
// defaults, in ascending priority of environment over file.
type Settings struct {
	Workers        int     `mapstructure:"workers"`
	PythonBin      string  `mapstructure:"python_bin"`
	NodeBin        string  `mapstructure:"node_bin"`
	TimeoutSeconds float64 `mapstructure:"timeout_seconds"`
	AgentCommand   string  `mapstructure:"agent_command"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Trace struct {
		Enabled bool   `mapstructure:"enabled"`
		Dir     string `mapstructure:"dir"`
	} `mapstructure:"trace"`
}

// LoadSettings reads runner settings. An empty configPath searches the
// working directory and ~/.flowbench; a missing file is not an error.
func LoadSettings(configPath string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("flowbench")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".flowbench"))
		}
	}

	v.SetDefault("workers", 4)
	v.SetDefault("python_bin", "")
	v.SetDefault("node_bin", "node")
	v.SetDefault("timeout_seconds", 30.0)
	v.SetDefault("agent_command", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.dir", "")

	v.SetEnvPrefix("FLOWBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// No settings file anywhere is fine; a named file that cannot
		// be read is not.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || configPath != "" {
			return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read settings file", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigSuiteUnmarshal,
			"unmarshal settings", err)
	}

	return &settings, nil
}
