package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the client generated id of every request
const RequestIDHeader = "X-Request-ID"

// roundTripperFunc adapts a function to http.RoundTripper
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// middleware wraps a transport
type middleware func(http.RoundTripper) http.RoundTripper

// chain applies middlewares so that the last one runs first
func chain(base http.RoundTripper, mws ...middleware) http.RoundTripper {
	rt := base
	for _, mw := range mws {
		rt = mw(rt)
	}
	return rt
}

// authTransport adds the bearer token to outgoing requests
func authTransport(tokens TokenSource) middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			token := ""
			if tokens != nil {
				token = tokens.Token()
			}
			if token == "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			r.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(r)
		})
	}
}

// requestIDTransport tags every request with a unique id
func requestIDTransport(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get(RequestIDHeader) != "" {
			return next.RoundTrip(r)
		}
		r = r.Clone(r.Context())
		r.Header.Set(RequestIDHeader, uuid.New().String())
		return next.RoundTrip(r)
	})
}

func loggingTransport(logger *zap.SugaredLogger) middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)
			if err != nil {
				logger.Errorw("request failed",
					"method", r.Method,
					"url", r.URL.String(),
					"requestId", r.Header.Get(RequestIDHeader),
					"duration", time.Since(start),
					"error", err,
				)
				return nil, err
			}
			logger.Debugw("request completed",
				"method", r.Method,
				"url", r.URL.String(),
				"requestId", r.Header.Get(RequestIDHeader),
				"status", resp.StatusCode,
				"duration", time.Since(start),
			)
			return resp, nil
		})
	}
}

func metricsTransport(mc *MetricsCollector) middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if mc == nil {
			return next
		}
		return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			trace := RequestTrace{
				Method:    r.Method,
				Path:      r.URL.Path,
				StartTime: time.Now(),
			}
			resp, err := next.RoundTrip(r)
			trace.Duration = time.Since(trace.StartTime)
			trace.RequestID = r.Header.Get(RequestIDHeader)
			if err != nil {
				trace.Error = err.Error()
			} else {
				trace.Status = resp.StatusCode
			}
			mc.RecordTrace(trace)
			return resp, err
		})
	}
}
