package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is returned when the merged configuration fails validation.
var ErrInvalid = errors.New("invalid config")

var validate = validator.New()

// Load reads and merges configuration from global and project paths, then validates it.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GlobalPath returns ~/.taskdeck/config.json.
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".taskdeck", "config.json"), nil
}

// ProjectPath returns the project config path under root.
func ProjectPath(root string) string {
	return filepath.Join(root, ".taskdeck", "config.json")
}

// Validate checks limits, framework entries and the log level.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalid, first.Namespace(), first.Tag(), first.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// mergeConfigFile reads a JSON config file and merges the fields it sets into base.
// Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Execution != nil {
		if v := loaded.Execution.MaxConcurrentExecutions; v != nil {
			base.Execution.MaxConcurrentExecutions = *v
		}
		if v := loaded.Execution.MaxHistorySize; v != nil {
			base.Execution.MaxHistorySize = *v
		}
	}

	// Search directories replace rather than append
	if loaded.SearchDirectories != nil {
		base.SearchDirectories = loaded.SearchDirectories
	}

	if base.Frameworks == nil {
		base.Frameworks = make(map[string]FrameworkConfig)
	}
	for name, fw := range loaded.Frameworks {
		merged := base.Frameworks[name]
		if fw.Command != "" {
			merged.Command = fw.Command
		}
		if fw.Args != nil {
			merged.Args = fw.Args
		}
		if fw.Enabled != nil {
			merged.Enabled = fw.Enabled
		}
		base.Frameworks[name] = merged
	}

	if loaded.LogLevel != nil {
		base.LogLevel = *loaded.LogLevel
	}
	if loaded.LogFile != nil {
		base.LogFile = *loaded.LogFile
	}
	return nil
}
