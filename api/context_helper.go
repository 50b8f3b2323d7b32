package api

import (
	"context"
	"time"
)

// RequestTimeout is the default timeout for API requests
const RequestTimeout = 10 * time.Second

// WithRequestTimeout creates a context with request timeout
func WithRequestTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	return context.WithTimeout(parent, timeout)
}
