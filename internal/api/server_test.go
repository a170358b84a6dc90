package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/coderTtxi12/model-rag/internal/log"
	"github.com/coderTtxi12/model-rag/internal/rag"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T, runner Runner) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Workflow:    runner,
		CORSOrigins: []string{"http://localhost:5173"},
		RateBurst:   100,
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}
	return srv
}

func TestNewServerRequiresWorkflow(t *testing.T) {
	if _, err := NewServer(ServerConfig{Logger: log.NewNop()}); err == nil {
		t.Error("NewServer() accepted a nil workflow")
	}
}

func TestServerRoutes(t *testing.T) {
	runner := &stubRunner{result: rag.Result{Outcome: rag.OutcomeAnswered, Answer: "answer"}}
	srv := newTestServer(t, runner)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"generate", http.MethodPost, "/generate", `{"question":"q"}`, http.StatusOK},
		{"generate wrong method", http.MethodGet, "/generate", "", http.StatusMethodNotAllowed},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"ready", http.MethodGet, "/ready", "", http.StatusOK},
		{"unknown path", http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *strings.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			} else {
				body = strings.NewReader("")
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestServerSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, &stubRunner{result: rag.Result{Answer: "a"}})

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"question":"q"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set on business route")
	}
}

// Health probes bypass the middleware stack: no request ID, no rate limit.
func TestHealthBypassesMiddleware(t *testing.T) {
	srv := newTestServer(t, &stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") != "" {
		t.Error("health probe went through the middleware stack")
	}
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestReadinessReflectsPinger(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Workflow:  &stubRunner{},
		Readiness: failingPinger{err: errors.New("connection refused")},
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when the store is unreachable", rec.Code)
	}
}

func TestServerRunGracefulShutdown(t *testing.T) {
	srv := newTestServer(t, &stubRunner{result: rag.Result{Answer: "a"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, "127.0.0.1:0")
	}()

	// Give ListenAndServe a moment to bind before canceling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want clean shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
