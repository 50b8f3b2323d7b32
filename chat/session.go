// Package chat keeps one group chat room open: history, live messages, send and leave.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/linesmerrill/campus-chat/api"
	"github.com/linesmerrill/campus-chat/models"
	"github.com/linesmerrill/campus-chat/realtime"
)

// ErrInvalidState is returned when an operation does not apply to the session's current state
var ErrInvalidState = errors.New("invalid session state")

// State of a Session
type State int

// Session states
const (
	Closed State = iota
	Opening
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the request/response side of a room
type Backend interface {
	Messages(ctx context.Context, roomID string) ([]models.Message, error)
	Send(ctx context.Context, roomID, content string) (*models.Message, error)
	Leave(ctx context.Context, roomID string) (*models.ChatRoom, error)
}

// Session binds one room to one realtime subscription and the room's local message
// history. Messages are only appended when the server confirms them, either through
// the history fetch or a realtime event; Send never appends.
type Session struct {
	backend   Backend
	factory   realtime.Factory
	identity  models.Identity
	logger    *zap.SugaredLogger
	listener  func(models.Message)
	dedupe    bool
	reconnect *ReconnectPolicy

	mu       sync.Mutex
	state    State
	gen      uint64 // bumped on every open and close, stale callbacks compare against it
	roomID   string
	history  []models.Message
	seen     map[string]struct{}
	lastSeen time.Time
	sub      realtime.Subscription
	stop     context.CancelFunc

	// while reconnecting, live events wait in pending until the missed messages are in
	catchingUp bool
	pending    []models.Message
}

// NewSession creates a closed session. The factory opens the session's only realtime
// connection; its lifetime is the time the session stays open.
func NewSession(backend Backend, factory realtime.Factory, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		factory: factory,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.S()
	}
	return s
}

// Open fetches the room history then subscribes to the room. On any failure the
// session is left Closed with no history.
func (s *Session) Open(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return api.Validationf("room id is required")
	}

	s.mu.Lock()
	if s.state != Closed {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot open room %s while %s", ErrInvalidState, roomID, state)
	}
	s.state = Opening
	s.gen++
	gen := s.gen
	s.roomID = roomID
	s.mu.Unlock()

	history, err := s.backend.Messages(ctx, roomID)
	if err != nil {
		s.reset()
		return fmt.Errorf("open room %s: %w", roomID, err)
	}

	s.mu.Lock()
	s.history = make([]models.Message, 0, len(history))
	if s.dedupe {
		s.seen = make(map[string]struct{}, len(history))
	}
	for _, m := range history {
		s.appendLocked(m)
	}
	s.mu.Unlock()

	sub, err := s.factory.Subscribe(ctx, roomID, s.handlerFor(gen))
	if err != nil {
		s.reset()
		return fmt.Errorf("subscribe to room %s: %w", roomID, err)
	}

	s.mu.Lock()
	s.sub = sub
	s.state = Open
	if s.reconnect != nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		s.stop = cancel
		go s.watch(watchCtx, gen, sub)
	}
	count := len(s.history)
	s.mu.Unlock()

	s.logger.Infow("opened room", "room", roomID, "messages", count)
	return nil
}

// Send appends text to the room on the server. The message shows up in the history
// once the server broadcasts it back.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return api.Validationf("message text is required")
	}

	s.mu.Lock()
	if s.state != Open {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot send while %s", ErrInvalidState, state)
	}
	roomID := s.roomID
	s.mu.Unlock()

	if _, err := s.backend.Send(ctx, roomID, text); err != nil {
		return fmt.Errorf("send to room %s: %w", roomID, err)
	}
	return nil
}

// Leave removes the current user from the room, unsubscribes and drops the history.
// The session ends Closed even when the leave request fails.
func (s *Session) Leave(ctx context.Context) error {
	roomID, err := s.shutdown(func(roomID string) error {
		_, err := s.backend.Leave(ctx, roomID)
		return err
	})
	if err != nil {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	return nil
}

// Close unsubscribes and drops the history without leaving the room, as when the
// user navigates away.
func (s *Session) Close() error {
	_, err := s.shutdown(nil)
	return err
}

func (s *Session) shutdown(leave func(roomID string) error) (string, error) {
	s.mu.Lock()
	if s.state != Open {
		state := s.state
		s.mu.Unlock()
		return "", fmt.Errorf("%w: cannot close while %s", ErrInvalidState, state)
	}
	s.state = Closing
	roomID, sub, stop := s.roomID, s.sub, s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}

	var err error
	if leave != nil {
		err = leave(roomID)
	}
	if sub != nil {
		if cerr := sub.Close(); cerr != nil {
			s.logger.Debugw("unsubscribe failed", "room", roomID, "error", cerr)
		}
	}

	s.reset()
	s.logger.Infow("closed room", "room", roomID, "left", leave != nil)
	return roomID, err
}

// reset moves to Closed and invalidates callbacks of the previous generation
func (s *Session) reset() {
	s.mu.Lock()
	s.state = Closed
	s.gen++
	s.roomID = ""
	s.history = nil
	s.seen = nil
	s.lastSeen = time.Time{}
	s.sub = nil
	s.stop = nil
	s.catchingUp = false
	s.pending = nil
	s.mu.Unlock()
}

func (s *Session) handlerFor(gen uint64) realtime.Handler {
	return func(m models.Message) {
		s.onMessage(gen, m)
	}
}

// onMessage appends a realtime message in arrival order. Without deduplication a
// redelivered event is appended again.
func (s *Session) onMessage(gen uint64, m models.Message) {
	s.mu.Lock()
	if s.gen != gen || s.state == Closed {
		s.mu.Unlock()
		return
	}
	if s.catchingUp {
		s.pending = append(s.pending, m)
		s.mu.Unlock()
		return
	}
	appended := s.appendLocked(m)
	listener := s.listener
	s.mu.Unlock()

	if appended && listener != nil {
		listener(m)
	}
}

func (s *Session) appendLocked(m models.Message) bool {
	if s.dedupe && m.ID != "" {
		if s.seen == nil {
			s.seen = make(map[string]struct{})
		}
		if _, ok := s.seen[m.ID]; ok {
			return false
		}
		s.seen[m.ID] = struct{}{}
	}
	s.history = append(s.history, m)
	if t := m.Time(); t.After(s.lastSeen) {
		s.lastSeen = t
	}
	return true
}

// watch re-subscribes whenever the current subscription ends on its own
func (s *Session) watch(ctx context.Context, gen uint64, sub realtime.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
		}
		if ctx.Err() != nil {
			return
		}

		s.logger.Warnw("realtime connection dropped, reconnecting", "error", sub.Err())
		next, err := s.resubscribe(ctx, gen)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Errorw("giving up on realtime updates", "error", err)
			}
			return
		}
		sub = next
	}
}

// marker is what the local history held when the connection dropped
type marker struct {
	ids    map[string]struct{}
	cutoff time.Time
}

// missed reports whether m was committed after the marker was taken. Messages without
// an id fall back to their timestamp.
func (mk marker) missed(m models.Message) bool {
	if m.ID != "" {
		_, ok := mk.ids[m.ID]
		return !ok
	}
	t := m.Time()
	return !t.IsZero() && t.After(mk.cutoff)
}

func (s *Session) resubscribe(ctx context.Context, gen uint64) (realtime.Subscription, error) {
	s.mu.Lock()
	roomID := s.roomID
	mk := marker{ids: make(map[string]struct{}, len(s.history)), cutoff: s.lastSeen}
	for _, m := range s.history {
		if m.ID != "" {
			mk.ids[m.ID] = struct{}{}
		}
	}
	s.catchingUp = true
	s.pending = nil
	s.mu.Unlock()

	attempt := func() (realtime.Subscription, error) {
		sub, err := s.factory.Subscribe(ctx, roomID, s.handlerFor(gen))
		if err != nil {
			return nil, permanentIf(err)
		}
		missed, err := s.backend.Messages(ctx, roomID)
		if err != nil {
			_ = sub.Close()
			s.mu.Lock()
			s.pending = nil
			s.mu.Unlock()
			return nil, permanentIf(err)
		}
		s.catchUp(gen, mk, missed)
		return sub, nil
	}

	sub, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(s.reconnect.backOff()),
		backoff.WithMaxElapsedTime(s.reconnect.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debugw("reconnect attempt failed", "room", roomID, "retryIn", next, "error", err)
		}),
	)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.catchingUp = false
			s.pending = nil
		}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	if s.gen != gen || s.state != Open {
		s.mu.Unlock()
		_ = sub.Close()
		return nil, fmt.Errorf("%w: session closed while reconnecting", ErrInvalidState)
	}
	s.sub = sub
	s.mu.Unlock()

	s.logger.Infow("reconnected to room", "room", roomID)
	return sub, nil
}

// catchUp appends the messages of a re-fetched history that are not covered by the
// marker, then the live events held back meanwhile. A held event that the re-fetch
// already returned is the same message and is appended once.
func (s *Session) catchUp(gen uint64, mk marker, history []models.Message) {
	s.mu.Lock()
	if s.gen != gen || s.state != Open {
		s.mu.Unlock()
		return
	}
	var appended []models.Message
	fetched := make(map[string]struct{})
	for _, m := range history {
		if !mk.missed(m) {
			continue
		}
		if m.ID != "" {
			if _, ok := fetched[m.ID]; ok {
				continue
			}
			fetched[m.ID] = struct{}{}
		}
		if s.appendLocked(m) {
			appended = append(appended, m)
		}
	}
	for _, m := range s.pending {
		if _, ok := fetched[m.ID]; ok && m.ID != "" {
			delete(fetched, m.ID)
			continue
		}
		if s.appendLocked(m) {
			appended = append(appended, m)
		}
	}
	s.catchingUp = false
	s.pending = nil
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		for _, m := range appended {
			listener(m)
		}
	}
}

func permanentIf(err error) error {
	if errors.Is(err, api.ErrAuthRequired) || errors.Is(err, api.ErrNotFound) || errors.Is(err, api.ErrValidation) {
		return backoff.Permanent(err)
	}
	return err
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the open room, empty when closed
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// History returns a copy of the local message sequence
func (s *Session) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Follow replaces the listener and returns the history appended before it took
// effect. Each message is either in the returned slice or passed to fn, never both.
func (s *Session) Follow(fn func(models.Message)) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
	out := make([]models.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Identity returns the current user
func (s *Session) Identity() models.Identity {
	return s.identity
}

// IsOwn reports whether the message was sent by the current user
func (s *Session) IsOwn(m models.Message) bool {
	return !s.identity.IsZero() && m.Sender.ID == s.identity.ID
}
