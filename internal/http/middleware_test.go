package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agrisync/agrisync/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestLoggerMiddleware_PassThrough(t *testing.T) {
	log := logger.Mock().With().Logger()

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	handler := LoggerMiddleware(&log)(next)

	req := httptest.NewRequest("GET", "/anything", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestLoggerMiddleware_RecoversPanic(t *testing.T) {
	log := logger.Mock().With().Logger()

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	})

	handler := LoggerMiddleware(&log)(next)

	req := httptest.NewRequest("GET", "/anything", nil)
	rr := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		handler.ServeHTTP(rr, req)
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
