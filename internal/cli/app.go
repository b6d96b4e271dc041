package cli

import (
	"context"
	"fmt"

	"github.com/soyeahso/uncover/internal/chat"
	"github.com/soyeahso/uncover/internal/config"
	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/hooks"
	"github.com/soyeahso/uncover/internal/llm"
	"github.com/soyeahso/uncover/internal/logging"
	"github.com/soyeahso/uncover/internal/store"
)

// app holds the components shared by serve and the one-shot commands.
type app struct {
	cfg config.Config
	log *logging.Logger

	db        *store.DB
	sessions  *store.SessionStore
	endpoints *store.EndpointStore

	hooks    *hooks.Manager
	llm      *llm.Gateway
	remote   *llm.RemoteClient
	models   *llm.ModelManager
	settings *chat.SettingsHolder
	chat     *chat.Controller
}

// loadConfig reads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return cfg, err
	}
	return cfg, validate(cfg)
}

func validate(cfg config.Config) error {
	issues := config.Validate(&cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}

// openApp opens the database and wires the chat stack.
func openApp(ctx context.Context, cfg config.Config, l *logging.Logger) (*app, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}

	dbPath := paths.DBPath(cfg)
	db, err := store.Open(dbPath, l)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	l.Debug().Str("path", dbPath).Msg("database open")

	a := &app{
		cfg:       cfg,
		log:       l,
		db:        db,
		sessions:  store.NewSessionStore(db),
		endpoints: store.NewEndpointStore(db),
		hooks:     hooks.NewManager(l),
	}
	a.hooks.RegisterCommands(cfg.Hooks)

	timeout := cfg.Chat.TimeoutDuration()
	a.llm = llm.NewDefaultGateway(llm.GatewayOptions{
		OllamaCommand: cfg.Chat.OllamaCommand,
		Timeout:       timeout,
	}, l)
	a.remote = llm.NewRemoteClient(timeout, l)
	a.models = llm.NewModelManager(cfg.Chat.OllamaURL, l)

	a.settings = chat.NewSettingsHolder(domain.Settings{
		Model:       cfg.Chat.Model,
		Mode:        domain.Mode(cfg.Chat.Mode),
		APIURL:      cfg.Chat.APIURL,
		AccessToken: cfg.Chat.AccessToken,
	})
	if cfg.Chat.APIURL == "" {
		ep, found, err := a.endpoints.LatestEndpoint(ctx)
		if err != nil {
			db.Close()
			return nil, err
		}
		if found {
			a.settings.UseEndpoint(ep)
		}
	}

	a.chat = chat.New(a.sessions, a.llm, a.hooks, l)
	return a, nil
}

// Close waits for in-flight turns and hooks, then closes the database.
func (a *app) Close() {
	a.chat.Close()
	a.hooks.Wait()
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing database")
	}
}
