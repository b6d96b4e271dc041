package llm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/uncover/internal/logging"
)

// LocalConfig configures the subprocess backend.
type LocalConfig struct {
	// Command is the model runner binary. Defaults to "ollama".
	Command string

	// BaseArgs are placed before "run <model>".
	BaseArgs []string

	// Timeout bounds one subprocess call. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// LocalClient runs `<command> run <model>` with the prompt on stdin and
// takes stdout as the answer.
type LocalClient struct {
	cfg LocalConfig
	log *logging.Logger
}

// NewLocalClient creates a subprocess-backed client.
func NewLocalClient(cfg LocalConfig, log *logging.Logger) *LocalClient {
	if cfg.Command == "" {
		cfg.Command = "ollama"
	}
	return &LocalClient{cfg: cfg, log: log.Sub("llm.local")}
}

// Name returns the backend name.
func (c *LocalClient) Name() string { return c.cfg.Command + "-cli" }

// Complete runs the model synchronously and returns its trimmed output.
func (c *LocalClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.cfg.BaseArgs...), "run", req.Model)

	c.log.Debug().
		Str("cmd", c.cfg.Command).
		Strs("args", args).
		Int("promptLen", len(req.Prompt)).
		Msg("running model")

	start := time.Now()

	cmd := exec.CommandContext(ctx, c.cfg.Command, args...)
	cmd.Stdin = strings.NewReader(req.Prompt)
	cmd.WaitDelay = 2 * time.Second

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", c.cfg.Command, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if stderr == "" {
				return "", fmt.Errorf("%s exited %d", c.cfg.Command, exitErr.ExitCode())
			}
			return "", fmt.Errorf("%s exited %d: %s", c.cfg.Command, exitErr.ExitCode(), stderr)
		}
		return "", fmt.Errorf("%s: %w", c.cfg.Command, err)
	}

	c.log.Debug().
		Str("model", req.Model).
		Dur("duration", time.Since(start)).
		Msg("model done")

	return strings.TrimSpace(string(out)), nil
}

// CLIExists checks whether a command is available in PATH.
func CLIExists(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}
