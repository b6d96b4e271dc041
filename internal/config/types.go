package config

// Config is the root configuration for uncover.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	Chat    ChatConfig    `yaml:"chat,omitempty"`
	Summary SummaryConfig `yaml:"summary,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Hooks   HooksConfig   `yaml:"hooks,omitempty"`
}

// GatewayConfig controls the local UI bridge (HTTP + WebSocket).
type GatewayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// ChatConfig holds the defaults handed to the model gateway when the UI has
// not chosen anything yet.
type ChatConfig struct {
	Model         string `yaml:"model,omitempty"`
	Mode          string `yaml:"mode,omitempty"` // "local" | "api"
	APIURL        string `yaml:"apiUrl,omitempty"`
	AccessToken   string `yaml:"accessToken,omitempty"`
	Timeout       int    `yaml:"timeout,omitempty"` // seconds
	OllamaCommand string `yaml:"ollamaCommand,omitempty"`
	OllamaURL     string `yaml:"ollamaUrl,omitempty"`
}

// SummaryConfig controls background session renaming.
type SummaryConfig struct {
	Enabled     *bool `yaml:"enabled,omitempty"`
	Interval    int   `yaml:"interval,omitempty"` // seconds
	Concurrency int   `yaml:"concurrency,omitempty"`
}

// IsEnabled reports whether the summarizer should run. Unset means on.
func (s SummaryConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"` // defaults to <home>/data/chat_history.db
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HooksConfig maps chat lifecycle events to shell commands.
type HooksConfig struct {
	TurnResolved    []HookEntry `yaml:"turnResolved,omitempty"`
	SessionsRenamed []HookEntry `yaml:"sessionsRenamed,omitempty"`
	GatewayStart    []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop     []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
