package config

import (
	"fmt"
	"time"
)

const (
	DefaultGatewayPort     = 8919
	DefaultModel           = "llama3"
	DefaultTimeout         = 120
	DefaultSummaryInterval = 180
	DefaultOllamaCommand   = "ollama"
	DefaultOllamaURL       = "http://127.0.0.1:11434"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: DefaultGatewayPort,
			Bind: "loopback",
		},
		Chat: ChatConfig{
			Model:         DefaultModel,
			Mode:          "local",
			Timeout:       DefaultTimeout,
			OllamaCommand: DefaultOllamaCommand,
			OllamaURL:     DefaultOllamaURL,
		},
		Summary: SummaryConfig{
			Interval:    DefaultSummaryInterval,
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// TimeoutDuration returns the per-call model timeout.
func (c ChatConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// IntervalDuration returns the summarizer tick period.
func (s SummaryConfig) IntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Second
}
