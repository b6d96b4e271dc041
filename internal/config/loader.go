package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// secretRef matches ${NAME} references inside secret values.
var secretRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes ${NAME} with $NAME. References to unset
// variables stay as written.
func expandEnvVars(s string) string {
	return secretRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := os.LookupEnv(secretRef.FindStringSubmatch(ref)[1]); ok {
			return v
		}
		return ref
	})
}

// envOverrides are applied after the file, in order.
var envOverrides = []struct {
	name  string
	apply func(cfg *Config, v string)
}{
	{"UNCOVER_GATEWAY_PORT", func(cfg *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}},
	{"UNCOVER_GATEWAY_BIND", func(cfg *Config, v string) { cfg.Gateway.Bind = v }},
	{"UNCOVER_MODEL", func(cfg *Config, v string) { cfg.Chat.Model = v }},
	{"UNCOVER_MODE", func(cfg *Config, v string) { cfg.Chat.Mode = strings.ToLower(v) }},
	{"UNCOVER_API_URL", func(cfg *Config, v string) { cfg.Chat.APIURL = v }},
	{"UNCOVER_ACCESS_TOKEN", func(cfg *Config, v string) { cfg.Chat.AccessToken = v }},
	{"UNCOVER_DB", func(cfg *Config, v string) { cfg.Storage.Path = v }},
	{"UNCOVER_LOG_LEVEL", func(cfg *Config, v string) { cfg.Logging.Level = strings.ToLower(v) }},
}

// readIfExists returns nil data and no error for a missing file.
func readIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Load returns Defaults overlaid with the file at path (if any) and then
// UNCOVER_* environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := readIfExists(path)
	if err != nil {
		return cfg, err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
		restoreBlanks(&cfg)
	}

	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(&cfg, v)
		}
	}
	cfg.Chat.APIURL = expandEnvVars(cfg.Chat.APIURL)
	cfg.Chat.AccessToken = expandEnvVars(cfg.Chat.AccessToken)
	return cfg, nil
}

// LoadRaw reads the file as a plain document for key-based edits.
func LoadRaw(path string) (map[string]any, error) {
	data, err := readIfExists(path)
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw replaces the file at path with raw. The write goes through a
// temporary file so readers never see a partial config.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func orDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// restoreBlanks puts defaults back where the file wrote an explicit zero
// value, e.g. `model: ""`.
func restoreBlanks(cfg *Config) {
	d := Defaults()
	orDefault(&cfg.Gateway.Port, d.Gateway.Port)
	orDefault(&cfg.Gateway.Bind, d.Gateway.Bind)
	orDefault(&cfg.Chat.Model, d.Chat.Model)
	orDefault(&cfg.Chat.Mode, d.Chat.Mode)
	orDefault(&cfg.Chat.Timeout, d.Chat.Timeout)
	orDefault(&cfg.Chat.OllamaCommand, d.Chat.OllamaCommand)
	orDefault(&cfg.Chat.OllamaURL, d.Chat.OllamaURL)
	orDefault(&cfg.Summary.Interval, d.Summary.Interval)
	orDefault(&cfg.Summary.Concurrency, d.Summary.Concurrency)
	orDefault(&cfg.Logging.Level, d.Logging.Level)
	orDefault(&cfg.Logging.ConsoleStyle, d.Logging.ConsoleStyle)
}
