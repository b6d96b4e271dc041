package chat

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/hooks"
	"github.com/soyeahso/uncover/internal/llm"
	"github.com/soyeahso/uncover/internal/logging"
)

// SummaryPromptPrefix is prepended to a session's context when asking for
// a new name.
const SummaryPromptPrefix = "Summarize the following conversation in 10 words or less:\n"

// Rename records one session renamed by a summarization pass.
type Rename struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

// SummarizerConfig tunes the background pass.
type SummarizerConfig struct {
	Interval    time.Duration
	Concurrency int
}

// Summarizer periodically renames sessions after a short model summary of
// their conversation.
type Summarizer struct {
	store    Store
	llm      llm.Responder
	settings func() domain.Settings
	hooks    *hooks.Manager
	cfg      SummarizerConfig
	log      *logging.Logger
}

// NewSummarizer creates a summarizer. settings is read on every pass so
// the UI's current model choice is used. hooks may be nil.
func NewSummarizer(store Store, responder llm.Responder, settings func() domain.Settings, hm *hooks.Manager, cfg SummarizerConfig, log *logging.Logger) *Summarizer {
	if cfg.Interval <= 0 {
		cfg.Interval = 180 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Summarizer{
		store:    store,
		llm:      responder,
		settings: settings,
		hooks:    hm,
		cfg:      cfg,
		log:      log.Sub("summary"),
	}
}

// Run ticks until ctx is cancelled.
func (s *Summarizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.cfg.Interval).Msg("summarizer started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("summarizer stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SummarizeOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("summarization pass failed")
			}
		}
	}
}

// SummarizeOnce runs one pass over every session. Sessions are handled
// independently: one failing never stops the others. Only a failure to
// list sessions is returned.
func (s *Summarizer) SummarizeOnce(ctx context.Context) ([]Rename, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	settings := s.settings()
	results := make([]*Rename, len(sessions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, sess := range sessions {
		g.Go(func() error {
			results[i] = s.summarize(gctx, sess, settings)
			return nil
		})
	}
	_ = g.Wait()

	var renamed []Rename
	for _, r := range results {
		if r != nil {
			renamed = append(renamed, *r)
		}
	}

	if len(renamed) > 0 {
		s.log.Info().Int("count", len(renamed)).Msg("sessions renamed")
		if s.hooks != nil {
			s.hooks.EmitAsync(ctx, hooks.EventSessionsRenamed, map[string]any{"renamed": renamed})
		}
	}
	return renamed, nil
}

func (s *Summarizer) summarize(ctx context.Context, sess domain.Session, settings domain.Settings) (out *Rename) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("session", sess.ID).Msg("summarize panicked")
			out = nil
		}
	}()

	history, err := s.store.Context(ctx, sess.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("session", sess.ID).Msg("loading context failed")
		return nil
	}
	if strings.TrimSpace(history) == "" {
		return nil
	}

	res := s.llm.Respond(ctx, llm.RequestFor(SummaryPromptPrefix+history, settings))
	name, ok := SessionNameFromSummary(res)
	if !ok {
		s.log.Debug().Str("session", sess.ID).Str("summary", res.Text).Msg("summary rejected")
		return nil
	}

	if err := s.store.RenameSession(ctx, name, sess.ID); err != nil {
		s.log.Warn().Err(err).Str("session", sess.ID).Msg("rename failed")
		return nil
	}
	return &Rename{SessionID: sess.ID, Name: name}
}

// SessionNameFromSummary turns a model summary into a session name. Any
// summary mentioning "Error" is rejected. When the text contains a colon,
// the part between the first and second colon is used. Cutting at the
// second colon is deliberate: "A: b: c" names the session "b".
func SessionNameFromSummary(res llm.Result) (string, bool) {
	text := res.Text
	if !res.OK || text == "" || strings.Contains(text, "Error") {
		return "", false
	}
	if _, after, found := strings.Cut(text, ":"); found {
		text, _, _ = strings.Cut(after, ":")
	}
	name := strings.TrimSpace(text)
	return name, name != ""
}
