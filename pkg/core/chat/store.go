// Package chat implements the conversation store: the collection of
// threads, the active selection, and the single-flight send path.
package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-ai/nexus/pkg/core"
	"github.com/nexus-ai/nexus/pkg/core/types"
)

const titleLimit = 30

// Store owns the conversation threads and mediates exactly one in-flight
// assistant request at a time. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	gateway  core.Gateway
	logger   *slog.Logger
	now      func() time.Time
	threads  []*types.Conversation
	activeID string
	inFlight bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store with no threads. Call EnsureThread (or
// CreateThread) before showing the store to a user.
func NewStore(gateway core.Gateway, opts ...Option) *Store {
	s := &Store{
		gateway: gateway,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateThread allocates a new thread seeded with the assistant greeting,
// prepends it to the collection, and makes it active. Never fails.
func (s *Store) CreateThread() types.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createThreadLocked()
}

func (s *Store) createThreadLocked() types.Conversation {
	greeting := types.NewAssistantMessage(core.Greeting, "")
	greeting.Timestamp = s.now()

	conv := &types.Conversation{
		ID:        uuid.NewString(),
		Title:     core.DefaultTitle,
		Messages:  []types.Message{greeting},
		UpdatedAt: s.now(),
	}
	s.threads = append([]*types.Conversation{conv}, s.threads...)
	s.activeID = conv.ID

	s.logger.Debug("thread created", "thread_id", conv.ID)
	return conv.Clone()
}

// EnsureThread creates a thread if the store has none. First-launch hook.
func (s *Store) EnsureThread() types.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.threads) == 0 {
		return s.createThreadLocked()
	}
	if conv := s.findLocked(s.activeID); conv != nil {
		return conv.Clone()
	}
	return s.threads[0].Clone()
}

// DeleteThread removes the thread with the given id. Deleting the active
// thread selects the first remaining thread, or creates a fresh one if none
// remain. An unknown id is a no-op.
func (s *Store) DeleteThread(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, conv := range s.threads {
		if conv.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.threads = append(s.threads[:idx], s.threads[idx+1:]...)
	s.logger.Debug("thread deleted", "thread_id", id)

	if s.activeID != id {
		return
	}
	if len(s.threads) > 0 {
		s.activeID = s.threads[0].ID
		return
	}
	s.createThreadLocked()
}

// SelectThread makes the thread with the given id active.
func (s *Store) SelectThread(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(id) == nil {
		return core.NewNotFoundError("no such thread: " + id)
	}
	s.activeID = id
	return nil
}

// ActiveThread returns a snapshot of the active thread.
func (s *Store) ActiveThread() (types.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(s.activeID)
	if conv == nil {
		return types.Conversation{}, false
	}
	return conv.Clone(), true
}

// Thread returns a snapshot of the thread with the given id.
func (s *Store) Thread(id string) (types.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(id)
	if conv == nil {
		return types.Conversation{}, false
	}
	return conv.Clone(), true
}

// Threads returns snapshots of all threads in display order.
func (s *Store) Threads() []types.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Conversation, 0, len(s.threads))
	for _, conv := range s.threads {
		out = append(out, conv.Clone())
	}
	return out
}

// Busy reports whether a send is currently in flight.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// AppendMessage appends to the target thread, bumps UpdatedAt, and applies
// the one-time title derivation. An unknown thread id is a no-op.
func (s *Store) AppendMessage(threadID string, msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(threadID, msg)
}

func (s *Store) appendLocked(threadID string, msg types.Message) {
	conv := s.findLocked(threadID)
	if conv == nil {
		return
	}
	// Title derives from the first user message only, and only while the
	// placeholder title is still in place.
	if len(conv.Messages) == 1 && msg.Role == types.RoleUser && conv.Title == core.DefaultTitle {
		conv.Title = deriveTitle(msg.Text)
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = s.now()
}

// SendUserText appends a user message and dispatches one assistant request.
// The user message is appended synchronously before this method returns; the
// gateway call completes in the background and the returned channel closes
// when the assistant (or apology) message has been appended.
//
// At most one send per store is in flight: a call during an active send is
// rejected with a busy error and has no side effects. Gateway failures are
// absorbed into a fixed apology message, never returned to the caller.
func (s *Store) SendUserText(ctx context.Context, threadID, text string) (<-chan struct{}, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, core.NewBusyError("a send is already in flight")
	}
	conv := s.findLocked(threadID)
	if conv == nil {
		s.mu.Unlock()
		return nil, core.NewNotFoundError("no such thread: " + threadID)
	}

	userMsg := types.NewUserMessage(text)
	userMsg.Timestamp = s.now()
	s.appendLocked(threadID, userMsg)

	// Snapshot the history including the just-appended message.
	history := make([]types.Message, len(conv.Messages))
	copy(history, conv.Messages)

	s.inFlight = true
	s.mu.Unlock()

	done := make(chan struct{})
	go s.completeSend(ctx, threadID, text, history, done)
	return done, nil
}

func (s *Store) completeSend(ctx context.Context, threadID, text string, history []types.Message, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	reply, err := s.process(ctx, text, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn("gateway failure folded into transcript",
			"thread_id", threadID, "error", err)
		apology := types.NewAssistantMessage(core.ChatApology, "")
		apology.Timestamp = s.now()
		s.appendLocked(threadID, apology)
		return
	}

	msg := types.NewAssistantMessage(reply.Text, reply.ImageURL)
	msg.Timestamp = s.now()
	s.appendLocked(threadID, msg)
}

// process shields the store from a panicking gateway; a panic is folded
// into the same apology path as an error.
func (s *Store) process(ctx context.Context, text string, history []types.Message) (reply *core.Reply, err error) {
	defer func() {
		if v := recover(); v != nil {
			reply = nil
			err = core.NewAPIError("gateway panic")
			s.logger.Error("gateway panic", "panic", v)
		}
	}()
	return s.gateway.Process(ctx, text, history)
}

func (s *Store) findLocked(id string) *types.Conversation {
	for _, conv := range s.threads {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// deriveTitle truncates the first user message to the title limit, appending
// an ellipsis marker when truncated.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}
