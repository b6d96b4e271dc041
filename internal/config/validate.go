package config

import (
	"fmt"
	"slices"
)

// ValidationIssue is one problem found by Validate.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return v.Path + ": " + v.Message
}

type issues []ValidationIssue

func (is *issues) add(path, format string, args ...any) {
	*is = append(*is, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
}

// oneOf accepts v when it is empty (default applies) or listed.
func (is *issues) oneOf(path, v string, allowed ...string) {
	if v != "" && !slices.Contains(allowed, v) {
		is.add(path, "must be one of %v, got %q", allowed, v)
	}
}

func (is *issues) nonNegative(path string, v int) {
	if v < 0 {
		is.add(path, "must not be negative, got %d", v)
	}
}

// Validate reports every invalid value in cfg, or nil.
func Validate(cfg *Config) []ValidationIssue {
	var is issues

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		is.add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	is.oneOf("gateway.bind", cfg.Gateway.Bind, "loopback", "lan", "custom")
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		is.add("gateway.customBindHost", "required when bind is custom")
	}

	is.oneOf("chat.mode", cfg.Chat.Mode, "local", "api")
	is.nonNegative("chat.timeout", cfg.Chat.Timeout)

	is.nonNegative("summary.interval", cfg.Summary.Interval)
	is.nonNegative("summary.concurrency", cfg.Summary.Concurrency)

	is.oneOf("logging.level", cfg.Logging.Level, "silent", "fatal", "error", "warn", "info", "debug", "trace")
	is.oneOf("logging.consoleStyle", cfg.Logging.ConsoleStyle, "pretty", "json")

	for _, hook := range []struct {
		path    string
		entries []HookEntry
	}{
		{"hooks.turnResolved", cfg.Hooks.TurnResolved},
		{"hooks.sessionsRenamed", cfg.Hooks.SessionsRenamed},
		{"hooks.gatewayStart", cfg.Hooks.GatewayStart},
		{"hooks.gatewayStop", cfg.Hooks.GatewayStop},
	} {
		for i, e := range hook.entries {
			p := fmt.Sprintf("%s[%d]", hook.path, i)
			if e.Command == "" {
				is.add(p+".command", "required")
			}
			is.nonNegative(p+".timeout", e.Timeout)
		}
	}

	if len(is) == 0 {
		return nil
	}
	return is
}
