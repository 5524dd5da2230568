package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	// ConfigPath points at the pipeline document: an .hcl file or a
	// directory of .hcl files.
	ConfigPath string
	// Root is the pipeline root directory that data-node paths resolve
	// against. Empty means: derive from ConfigPath.
	Root string

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
