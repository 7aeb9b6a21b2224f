package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGinLogger_WritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", &buf)
	defer Init("info")

	router := gin.New()
	router.Use(RequestID(), GinLogger())
	router.GET("/projects", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/projects?page=2", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	router.ServeHTTP(w, req)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["level"] != "warn" {
		t.Errorf("level = %v, expected warn", line["level"])
	}
	if line["request_id"] != "req-123" {
		t.Errorf("request_id = %v, expected req-123", line["request_id"])
	}
	if line["path"] != "/projects" {
		t.Errorf("path = %v", line["path"])
	}
	if w.Header().Get(RequestIDHeader) != "req-123" {
		t.Errorf("response header = %q", w.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_Generated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	var seen string
	router.GET("/", func(c *gin.Context) { seen = GetRequestID(c) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	if len(seen) != 36 {
		t.Errorf("expected a uuid request id, got %q", seen)
	}
	if w.Header().Get(RequestIDHeader) != seen {
		t.Error("response header should carry the generated id")
	}
}

func TestGinRecovery(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", &buf)
	defer Init("info")

	router := gin.New()
	router.Use(GinRecovery())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/panic", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, expected 500", w.Code)
	}
	if !bytes.Contains(buf.Bytes(), []byte("panic recovered")) {
		t.Errorf("expected panic log, got %q", buf.String())
	}
}
