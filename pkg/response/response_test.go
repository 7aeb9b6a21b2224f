package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	handler(c)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestSuccessAndCreated(t *testing.T) {
	w := performRequest(func(c *gin.Context) { Success(c, gin.H{"name": "alpha"}) })
	if w.Code != http.StatusOK {
		t.Errorf("Success status = %d, expected 200", w.Code)
	}
	if resp := decode(t, w); resp.Code != 0 || resp.Message != "ok" {
		t.Errorf("Success body = %+v", resp)
	}

	w = performRequest(func(c *gin.Context) { Created(c, gin.H{"id": 1}) })
	if w.Code != http.StatusCreated {
		t.Errorf("Created status = %d, expected 201", w.Code)
	}
	if resp := decode(t, w); resp.Message != "created" {
		t.Errorf("Created message = %q", resp.Message)
	}
}

func TestError_AppError(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NewBadRequest("bad"), http.StatusBadRequest},
		{NewUnauthorized("who"), http.StatusUnauthorized},
		{NewForbidden("no"), http.StatusForbidden},
		{NewNotFound("gone"), http.StatusNotFound},
		{NewConflict("clash"), http.StatusConflict},
		{NewUnavailable("later"), http.StatusServiceUnavailable},
		{NewServerError("oops"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		wrapped := fmt.Errorf("handler: %w", tt.err)
		w := performRequest(func(c *gin.Context) { Error(c, wrapped) })
		if w.Code != tt.status {
			t.Errorf("%q: status = %d, expected %d", tt.err.Message, w.Code, tt.status)
		}
		resp := decode(t, w)
		if resp.Code != tt.status || resp.Message != tt.err.Message {
			t.Errorf("%q: body = %+v", tt.err.Message, resp)
		}
	}
}

func TestError_PlainError(t *testing.T) {
	w := performRequest(func(c *gin.Context) { Error(c, errors.New("database exploded")) })
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, expected 500", w.Code)
	}
	if resp := decode(t, w); resp.Message != "database exploded" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestShortcuts(t *testing.T) {
	shortcuts := map[int]func(*gin.Context, string){
		http.StatusBadRequest:          BadRequest,
		http.StatusUnauthorized:        Unauthorized,
		http.StatusForbidden:           Forbidden,
		http.StatusNotFound:            NotFound,
		http.StatusConflict:            Conflict,
		http.StatusInternalServerError: ServerError,
	}
	for status, fn := range shortcuts {
		w := performRequest(func(c *gin.Context) { fn(c, "msg") })
		if w.Code != status {
			t.Errorf("expected status %d, got %d", status, w.Code)
		}
	}
}
