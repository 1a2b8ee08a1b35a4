package config

// ExecutionConfig holds the execution manager limits.
type ExecutionConfig struct {
	MaxConcurrentExecutions int `json:"max_concurrent_executions" validate:"gte=1,lte=256"`
	MaxHistorySize          int `json:"max_history_size" validate:"gte=0,lte=100000"`
}

// FrameworkConfig defines how a framework's tool is invoked.
type FrameworkConfig struct {
	Command string   `json:"command" validate:"required"` // Executable name or path (e.g., "nox")
	Args    []string `json:"args,omitempty"`              // Global args placed before every invocation
	Enabled *bool    `json:"enabled,omitempty"`           // nil means enabled
}

// IsEnabled reports whether the framework should be registered.
func (f FrameworkConfig) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// Config is the top-level configuration.
type Config struct {
	Execution         ExecutionConfig            `json:"execution"`
	SearchDirectories []string                   `json:"search_directories,omitempty" validate:"dive,required"`
	Frameworks        map[string]FrameworkConfig `json:"frameworks" validate:"dive"`
	LogLevel          string                     `json:"log_level" validate:"oneof=trace debug info warn warning error"`
	LogFile           string                     `json:"log_file,omitempty"`
}

// fileConfig mirrors Config with optional fields so a file only overrides what it sets.
type fileConfig struct {
	Execution *struct {
		MaxConcurrentExecutions *int `json:"max_concurrent_executions"`
		MaxHistorySize          *int `json:"max_history_size"`
	} `json:"execution"`
	SearchDirectories []string                   `json:"search_directories"`
	Frameworks        map[string]FrameworkConfig `json:"frameworks"`
	LogLevel          *string                    `json:"log_level"`
	LogFile           *string                    `json:"log_file"`
}
