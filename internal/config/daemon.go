package config

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// DaemonConfig is the process-level operational configuration for
// cmd/strobed: where it binds, where it keeps its data. This is
// distinct from Settings (the JSON test/event knobs in settings.go);
// it plays the same role the teacher's own TOML core configuration
// plays for its daemon.
type DaemonConfig struct {
	BindAddress string `toml:"bindAddress"`
	DataDir     string `toml:"dataDir"`
	LogLevel    string `toml:"logLevel"`
}

func defaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		BindAddress: "127.0.0.1:7711",
		LogLevel:    "info",
	}
}

// LoadDaemonConfig reads a TOML file at path, applying it over the
// defaults. A missing file yields the defaults unchanged.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	cfg := defaultDaemonConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
