package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/internal/services"
	"github.com/huangang/projecthub/pkg/logger"
)

const maxAuditBody = 2000

var sensitiveKeys = []string{"password", "old_password", "new_password", "secret", "token"}

// AuditLog records every mutating request to system_logs after the
// handler has run.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut &&
			method != http.MethodPatch && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = string(raw)
			if len(body) > maxAuditBody {
				body = body[:maxAuditBody] + "...[truncated]"
			}
			body = maskSensitiveFields(body)
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)
		level := models.LogLevelInfo
		if status >= http.StatusBadRequest {
			level = models.LogLevelWarning
		}

		var uid, pid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}
		if id := GetProjectID(c); id > 0 {
			pid = &id
		}

		services.LogAudit(level, module, action,
			formatAuditMessage(GetUsername(c), method, c.Request.URL.Path, status),
			uid, pid, c.ClientIP(), c.Request.UserAgent(),
			map[string]interface{}{
				"method":     method,
				"path":       c.Request.URL.Path,
				"status":     status,
				"body":       body,
				"request_id": logger.GetRequestID(c),
			})
	}
}

// parseRouteInfo names the audited resource after the last static path
// segment: "/api/projects/:id/contributors/:cid" + PUT is
// ("Contributors", "Update").
func parseRouteInfo(fullPath, method string) (module, action string) {
	module = "Unknown"
	for _, seg := range strings.Split(strings.TrimPrefix(fullPath, "/api/"), "/") {
		if seg == "" || strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			continue
		}
		module = titleCase(seg)
	}

	switch method {
	case http.MethodPost:
		action = "Create"
	case http.MethodPut, http.MethodPatch:
		action = "Update"
	case http.MethodDelete:
		action = "Delete"
	default:
		action = method
	}
	return module, action
}

// titleCase turns "system-logs" into "System-Logs".
func titleCase(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "-")
}

func formatAuditMessage(username, method, path string, status int) string {
	if username == "" {
		username = "anonymous"
	}
	outcome := "OK"
	if status >= http.StatusBadRequest {
		outcome = "Failed"
	}
	return "[Audit] " + username + " " + method + " " + path + " -> " + outcome
}

// maskSensitiveFields replaces the string values of sensitive JSON keys.
func maskSensitiveFields(body string) string {
	for _, key := range sensitiveKeys {
		body = maskJSONValue(body, key)
	}
	return body
}

// maskJSONValue masks every "key": "value" occurrence. It is a best
// effort over possibly truncated JSON.
func maskJSONValue(body, key string) string {
	needle := "\"" + key + "\""
	var b strings.Builder
	rest := body
	for {
		idx := strings.Index(strings.ToLower(rest), needle)
		if idx == -1 {
			b.WriteString(rest)
			return b.String()
		}
		afterKey := idx + len(needle)
		b.WriteString(rest[:afterKey])
		rest = rest[afterKey:]

		i := 0
		for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
			i++
		}
		if i >= len(rest) || rest[i] != ':' {
			continue
		}
		i++
		for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
			i++
		}
		if i >= len(rest) || rest[i] != '"' {
			continue
		}
		end := strings.IndexByte(rest[i+1:], '"')
		if end == -1 {
			b.WriteString(rest[:i+1] + "***")
			return b.String()
		}
		b.WriteString(rest[:i+1] + "***")
		rest = rest[i+1+end:]
	}
}
