package config

const (
	DefaultMaxConcurrentExecutions = 5
	DefaultMaxHistorySize          = 100
	DefaultLogLevel                = "info"
)

// DefaultConfig returns the configuration used when no file sets anything.
func DefaultConfig() *Config {
	return &Config{
		Execution: ExecutionConfig{
			MaxConcurrentExecutions: DefaultMaxConcurrentExecutions,
			MaxHistorySize:          DefaultMaxHistorySize,
		},
		Frameworks: map[string]FrameworkConfig{
			"nox": {
				Command: "nox",
			},
		},
		LogLevel: DefaultLogLevel,
	}
}
