// Package chat sequences chat turns and session lifecycle on top of the
// store and the model gateway.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/hooks"
	"github.com/soyeahso/uncover/internal/llm"
	"github.com/soyeahso/uncover/internal/logging"
)

var (
	ErrEmptyInput    = errors.New("chat: empty input")
	ErrNoSession     = errors.New("chat: no session selected")
	ErrDuplicateTurn = errors.New("chat: turn already exists")
	ErrUnknownTurn   = errors.New("chat: unknown turn")
)

// Store is the persistence the controller needs.
type Store interface {
	ListSessions(ctx context.Context) ([]domain.Session, error)
	CountSessions(ctx context.Context) (int, error)
	GetSession(ctx context.Context, id string) (domain.Session, bool, error)
	CreateSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string)
	RenameSession(ctx context.Context, newName, id string) error
	AppendMessage(ctx context.Context, sessionID string, sender domain.Sender, body string) (domain.Message, error)
	Messages(ctx context.Context, sessionID string) ([]domain.Message, error)
	Context(ctx context.Context, sessionID string) (string, error)
}

// SubmitRequest is one press of send (click or enter).
type SubmitRequest struct {
	SessionID string
	Input     string

	// ClickIndex and EnterIndex are the two UI counters that may both
	// fire for the same action; the larger one names the turn.
	ClickIndex int
	EnterIndex int

	Settings domain.Settings
}

// Index returns the turn index the request resolves to.
func (r SubmitRequest) Index() int {
	return max(r.ClickIndex, r.EnterIndex)
}

type turnEntry struct {
	turn domain.Turn
	done chan struct{}
}

// Controller owns turn state. Durable state lives in the Store.
type Controller struct {
	store Store
	llm   llm.Responder
	hooks *hooks.Manager
	log   *logging.Logger
	now   func() time.Time

	mu    sync.Mutex
	turns map[domain.TurnKey]*turnEntry
	// last is the highest index ever submitted per session. It survives
	// eviction so assigned indices never repeat.
	last map[string]int
	// resolved holds finished turns oldest first; past keepResolved the
	// oldest are evicted.
	resolved     []*turnEntry
	keepResolved int

	jobs sync.WaitGroup
}

// DefaultKeepResolved is how many resolved turns a controller remembers
// for Turn, Wait and Turns.
const DefaultKeepResolved = 512

// New creates a controller. hooks may be nil.
func New(store Store, responder llm.Responder, hm *hooks.Manager, log *logging.Logger) *Controller {
	return &Controller{
		store: store,
		llm:   responder,
		hooks: hm,
		log:   log.Sub("chat"),
		now:   time.Now,
		turns: make(map[domain.TurnKey]*turnEntry),
		last:  make(map[string]int),

		keepResolved: DefaultKeepResolved,
	}
}

// Submit persists the user's question and starts fetching the answer in
// the background. The returned turn is pending. A request carrying no
// index gets the session's next free one.
func (c *Controller) Submit(ctx context.Context, req SubmitRequest) (domain.Turn, error) {
	if strings.TrimSpace(req.Input) == "" {
		return domain.Turn{}, ErrEmptyInput
	}
	if req.SessionID == "" {
		return domain.Turn{}, ErrNoSession
	}

	c.mu.Lock()
	index := req.Index()
	if index == 0 {
		index = c.last[req.SessionID] + 1
	}
	key := domain.TurnKey{SessionID: req.SessionID, Index: index}
	if _, exists := c.turns[key]; exists {
		c.mu.Unlock()
		return domain.Turn{}, fmt.Errorf("%w: %s", ErrDuplicateTurn, key)
	}
	entry := &turnEntry{
		turn: domain.Turn{
			Key:       key,
			Question:  req.Input,
			State:     domain.TurnPending,
			CreatedAt: c.now(),
		},
		done: make(chan struct{}),
	}
	c.turns[key] = entry
	c.last[req.SessionID] = max(c.last[req.SessionID], index)
	c.mu.Unlock()

	if err := c.persistQuestion(ctx, req.SessionID, req.Input); err != nil {
		c.forget(key)
		return domain.Turn{}, err
	}

	turn := entry.turn
	c.log.Info().Str("turn", key.String()).Msg("turn pending")
	c.emit(ctx, hooks.EventTurnPending, map[string]any{"turn": turn})

	c.jobs.Add(1)
	go c.fulfill(context.WithoutCancel(ctx), entry, req.Settings)

	return turn, nil
}

// persistQuestion stores the question, creating the session on first use.
// A session created here is removed again if the question cannot be
// stored and nothing else landed in it.
func (c *Controller) persistQuestion(ctx context.Context, sessionID, input string) error {
	_, existed, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !existed {
		if err := c.store.CreateSession(ctx, sessionID); err != nil {
			return err
		}
	}

	_, err = c.store.AppendMessage(ctx, sessionID, domain.SenderUser, input)
	if err == nil || existed {
		return err
	}
	if msgs, lerr := c.store.Messages(ctx, sessionID); lerr == nil && len(msgs) == 0 {
		c.log.Warn().Err(err).Str("session", sessionID).Msg("dropping empty session after failed append")
		c.store.DeleteSession(ctx, sessionID)
	}
	return err
}

// fulfill answers one pending turn. It runs exactly once per turn.
func (c *Controller) fulfill(ctx context.Context, entry *turnEntry, settings domain.Settings) {
	defer c.jobs.Done()

	key := entry.turn.Key
	var res llm.Result
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error().Interface("panic", r).Str("turn", key.String()).Msg("fulfillment panicked")
				res = llm.Failure(fmt.Errorf("%v", r))
			}
		}()

		history, err := c.store.Context(ctx, key.SessionID)
		if err != nil {
			res = llm.Failure(err)
			return
		}
		res = c.llm.Respond(ctx, llm.RequestFor(BuildPrompt(history, entry.turn.Question), settings))
	}()

	if _, err := c.store.AppendMessage(ctx, key.SessionID, domain.SenderAI, res.Text); err != nil {
		c.log.Error().Err(err).Str("turn", key.String()).Msg("failed to store answer")
	}

	c.mu.Lock()
	entry.turn.Response = res.Text
	entry.turn.OK = res.OK
	entry.turn.State = domain.TurnResolved
	entry.turn.ResolvedAt = c.now()
	turn := entry.turn
	close(entry.done)
	c.retire(entry)
	c.mu.Unlock()

	c.log.Info().Str("turn", key.String()).Bool("ok", res.OK).Msg("turn resolved")
	c.emit(ctx, hooks.EventTurnResolved, map[string]any{"turn": turn})
}

// BuildPrompt appends the new question to the session context.
func BuildPrompt(history, question string) string {
	return history + "\nUser: " + question + "\nAI:"
}

// Turn returns the current state of a turn.
func (c *Controller) Turn(key domain.TurnKey) (domain.Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.turns[key]
	if !ok {
		return domain.Turn{}, false
	}
	return e.turn, true
}

// Wait blocks until the turn resolves or ctx ends.
func (c *Controller) Wait(ctx context.Context, key domain.TurnKey) (domain.Turn, error) {
	c.mu.Lock()
	e, ok := c.turns[key]
	c.mu.Unlock()
	if !ok {
		return domain.Turn{}, fmt.Errorf("%w: %s", ErrUnknownTurn, key)
	}

	select {
	case <-e.done:
		t, _ := c.Turn(key)
		return t, nil
	case <-ctx.Done():
		return domain.Turn{}, ctx.Err()
	}
}

// Turns returns the session's known turns ordered by index.
func (c *Controller) Turns(sessionID string) []domain.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.Turn
	for k, e := range c.turns {
		if k.SessionID == sessionID {
			out = append(out, e.turn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Index < out[j].Key.Index })
	return out
}

// NextIndex returns an index no turn in the session has used.
func (c *Controller) NextIndex(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[sessionID] + 1
}

// retire queues a resolved turn and evicts the oldest past keepResolved.
// Callers hold c.mu.
func (c *Controller) retire(entry *turnEntry) {
	c.resolved = append(c.resolved, entry)
	for len(c.resolved) > c.keepResolved {
		old := c.resolved[0]
		c.resolved[0] = nil
		c.resolved = c.resolved[1:]
		if c.turns[old.turn.Key] == old {
			delete(c.turns, old.turn.Key)
		}
	}
}

func (c *Controller) forget(key domain.TurnKey) {
	c.mu.Lock()
	delete(c.turns, key)
	c.mu.Unlock()
}

// Close waits for in-flight fulfillment jobs.
func (c *Controller) Close() {
	c.jobs.Wait()
}

func (c *Controller) emit(ctx context.Context, event string, data map[string]any) {
	if c.hooks != nil {
		c.hooks.EmitAsync(context.WithoutCancel(ctx), event, data)
	}
}
