package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"chronolog/internal/logging"
	"chronolog/internal/metrics"
)

func TestHealthzHandlerReportsOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	healthzHandler(rec, req)

	//1.- A live process must always answer 200 on /healthz.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestBuildMuxRegistersHealthzAndMetrics(t *testing.T) {
	mux := buildMux(logging.NewTestLogger(), metrics.New())

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		//1.- Both operator-facing routes must be reachable, not 404.
		if rec.Code == http.StatusNotFound {
			t.Fatalf("path %q not registered", path)
		}
	}
}
