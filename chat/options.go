package chat

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/linesmerrill/campus-chat/models"
)

// Option configures a Session
type Option func(*Session)

// WithIdentity sets the current user, used by IsOwn
func WithIdentity(id models.Identity) Option {
	return func(s *Session) {
		s.identity = id
	}
}

// WithLogger sets the session logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithListener is called, outside the session lock, for every message appended from
// the realtime channel or a reconnect catch up
func WithListener(fn func(models.Message)) Option {
	return func(s *Session) {
		s.listener = fn
	}
}

// WithDeduplication drops messages whose id was already appended during the session
func WithDeduplication() Option {
	return func(s *Session) {
		s.dedupe = true
	}
}

// ReconnectPolicy bounds the exponential backoff used when the realtime channel drops
type ReconnectPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime is how long to keep trying before the session gives up on live updates
	MaxElapsedTime time.Duration
}

// DefaultReconnectPolicy retries for up to five minutes
var DefaultReconnectPolicy = ReconnectPolicy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     30 * time.Second,
	MaxElapsedTime:  5 * time.Minute,
}

func (p ReconnectPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// WithReconnect re-subscribes with exponential backoff when the realtime channel drops
// while the session is open, then re-fetches history and appends what was missed.
func WithReconnect(p ReconnectPolicy) Option {
	return func(s *Session) {
		s.reconnect = &p
	}
}
