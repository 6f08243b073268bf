package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestCORSPreflight(t *testing.T) {
	srv := NewServer(zerolog.Nop())
	srv.Router.Post("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("ожидали 204, получили %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("нет CORS заголовка")
	}

	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("ожидали 418, получили %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("нет CORS заголовка в ответе")
	}
}

func TestRecovererCatchesPanic(t *testing.T) {
	srv := NewServer(zerolog.Nop())
	srv.Router.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ожидали 500, получили %d", rec.Code)
	}
}
