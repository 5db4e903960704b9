package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// dummyHandler is a placeholder that records if it was called.
type dummyHandler struct {
	called bool
	status int
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	d.called = true
	if d.status != 0 {
		w.WriteHeader(d.status)
	}
	_, _ = w.Write([]byte("ok"))
}

func TestWithRequestLogging(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		wantStatus int64
	}{
		{"implicit ok", 0, http.StatusOK},
		{"explicit status", http.StatusTeapot, http.StatusTeapot},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			dummy := &dummyHandler{status: tc.status}
			h := WithRequestLogging(zap.New(core))(dummy)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/domains", nil))

			if !dummy.called {
				t.Fatal("expected next handler to be called")
			}
			entries := logs.FilterMessage("request").All()
			if len(entries) != 1 {
				t.Fatalf("expected 1 request log entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["path"] != "/api/domains" {
				t.Errorf("path = %v; want /api/domains", fields["path"])
			}
			if fields["status"] != tc.wantStatus {
				t.Errorf("status = %v; want %d", fields["status"], tc.wantStatus)
			}
			if fields["size"] != int64(2) {
				t.Errorf("size = %v; want 2", fields["size"])
			}
		})
	}
}
