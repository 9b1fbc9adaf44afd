package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	})
	h := chiMiddleware.RequestID(WithRequestLogging(log)(inner))

	req := httptest.NewRequest(http.MethodPost, "/api/banks", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request served").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries; want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != http.MethodPost {
		t.Errorf("method = %v; want POST", fields["method"])
	}
	if fields["path"] != "/api/banks" {
		t.Errorf("path = %v; want /api/banks", fields["path"])
	}
	if fields["status"] != int64(http.StatusCreated) {
		t.Errorf("status = %v; want 201", fields["status"])
	}
	if fields["size"] != int64(5) {
		t.Errorf("size = %v; want 5", fields["size"])
	}
	if fields["request_id"] == nil {
		t.Error("request_id missing")
	}
}

func TestWithRequestLogging_ServerErrorIsWarn(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	h := WithRequestLogging(zap.New(core))(inner)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("got %+v; want one warn entry", entries)
	}
}

func TestWithRequestLogging_UserFromBearerAuth(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	auth := authFunc(func(_ context.Context, token string) (string, error) {
		return "alice", nil
	})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := WithRequestLogging(zap.New(core))(BearerAuth(auth, zap.NewNop())(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/banks", nil)
	req.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(httptest.NewRecorder(), req)

	anon := httptest.NewRequest(http.MethodGet, "/api/banks", nil)
	h.ServeHTTP(httptest.NewRecorder(), anon)

	entries := logs.FilterMessage("request served").All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries; want 2", len(entries))
	}
	if got := entries[0].ContextMap()["user_id"]; got != "alice" {
		t.Errorf("user_id = %v; want alice", got)
	}
	if _, ok := entries[1].ContextMap()["user_id"]; ok {
		t.Error("user_id logged for an unauthenticated request")
	}
}
