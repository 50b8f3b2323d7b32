package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoResponse struct {
	Auth      string `json:"auth"`
	RequestID string `json:"requestId"`
	Query     string `json:"query"`
	Body      string `json:"body"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/api/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echoResponse{
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get(RequestIDHeader),
			Query:     r.URL.RawQuery,
			Body:      string(body),
		})
	})
	r.HandleFunc("/api/status/{code}", func(w http.ResponseWriter, r *http.Request) {
		switch mux.Vars(r)["code"] {
		case "401":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Token expired"}`))
		case "404":
			w.WriteHeader(http.StatusNotFound)
		case "422":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"content is required"}`))
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<html>oops</html>`))
		}
	})
	r.HandleFunc("/api/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.HandleFunc("/api/garbage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	r.HandleFunc("/api/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_RequiresAbsoluteURL(t *testing.T) {
	_, err := NewClient("/api")
	assert.Error(t, err)

	_, err = NewClient("localhost:5001")
	assert.Error(t, err)

	c, err := NewClient("http://localhost:5001/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5001", c.baseURL.String())
}

func TestClient_DoAddsHeaders(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, WithTokenSource(StaticToken("tok")), WithLogger(zap.NewNop().Sugar()))
	require.NoError(t, err)

	var out echoResponse
	err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "api/echo", Query: map[string][]string{"q": {"a b"}}}, &out)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", out.Auth)
	assert.Len(t, out.RequestID, 36)
	assert.Equal(t, "q=a+b", out.Query)
}

func TestClient_DoMissingTokenSendsNothing(t *testing.T) {
	srv := newTestServer(t)
	mc := NewMetricsCollector(10)
	c, err := NewClient(srv.URL, WithMetrics(mc))
	require.NoError(t, err)

	err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/echo"}, nil)

	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Empty(t, mc.GetTraces(10, time.Time{}))
}

func TestClient_DoPublicRequestWithoutToken(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	var out echoResponse
	err = c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/echo", Body: map[string]string{"k": "v"}, Public: true}, &out)
	require.NoError(t, err)
	assert.Empty(t, out.Auth)
	assert.JSONEq(t, `{"k":"v"}`, out.Body)
}

func TestClient_DoErrorKinds(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, WithTokenSource(StaticToken("tok")))
	require.NoError(t, err)

	tests := []struct {
		path    string
		kind    error
		message string
	}{
		{"/api/status/401", ErrAuthRequired, "Token expired"},
		{"/api/status/404", ErrNotFound, "Not Found"},
		{"/api/status/422", ErrValidation, "content is required"},
		{"/api/status/500", ErrServer, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: tt.path}, nil)
			assert.ErrorIs(t, err, tt.kind)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestClient_DoDecoding(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, WithTokenSource(StaticToken("tok")))
	require.NoError(t, err)

	var out map[string]interface{}
	assert.NoError(t, c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/empty"}, &out))
	assert.ErrorIs(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/garbage"}, &out), ErrServer)
}

func TestClient_DoNetworkErrors(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, WithTokenSource(StaticToken("tok")), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/slow"}, nil)
	assert.ErrorIs(t, err, ErrNetwork)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	c, err = NewClient(closed.URL, WithTokenSource(StaticToken("tok")))
	require.NoError(t, err)
	err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/echo"}, nil)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "Network error. Please check your internet connection and server status.", Notice(err))
}

func TestClient_DoRecordsMetrics(t *testing.T) {
	srv := newTestServer(t)
	mc := NewMetricsCollector(10)
	c, err := NewClient(srv.URL, WithTokenSource(StaticToken("tok")), WithMetrics(mc))
	require.NoError(t, err)

	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/echo"}, nil))
	_ = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/status/404"}, nil)

	traces := mc.GetTraces(10, time.Time{})
	require.Len(t, traces, 2)
	assert.Equal(t, http.StatusOK, traces[0].Status)
	assert.NotEmpty(t, traces[0].RequestID)
	assert.True(t, traces[1].Failed())

	summary := mc.GetSummary()
	assert.Equal(t, int64(2), summary["totalRequests"])
	assert.Equal(t, int64(1), summary["totalErrors"])
}

func TestTokenStore(t *testing.T) {
	s := NewTokenStore("a")
	assert.Equal(t, "a", s.Token())
	s.Set("b")
	assert.Equal(t, "b", s.Token())
	s.Clear()
	assert.Empty(t, s.Token())
}

func TestWithRequestTimeout(t *testing.T) {
	ctx, cancel := WithRequestTimeout(nil, 0) //nolint:staticcheck
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(RequestTimeout), deadline, time.Second)
}
