package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/claimsnet/claims/internal/platform/auth"
)

// AuditEntry describes one state-changing call against the claims API.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	TenantID   string
	Resource   string
	ResourceID string
	Action     string
	IPAddress  string
	Path       string
	Method     string
	StatusCode int
	RequestID  string
	Timestamp  time.Time
}

// Audit emits a structured "financial_audit" log line for every mutating
// request under /api/. Reads are not audited.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/") || isReadMethod(req.Method) {
				return next(c)
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			entry := newAuditEntry(c)
			evt := logger.Info()
			if entry.StatusCode >= 400 {
				evt = logger.Warn()
			}
			evt.
				Str("type", "financial_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("tenant_id", entry.TenantID).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("mutation")

			return nil
		}
	}
}

func newAuditEntry(c echo.Context) AuditEntry {
	req := c.Request()
	entry := AuditEntry{
		Timestamp:  time.Now().UTC(),
		Path:       req.URL.Path,
		Method:     req.Method,
		IPAddress:  c.RealIP(),
		StatusCode: c.Response().Status,
		UserID:     auth.UserIDFromContext(req.Context()),
		UserRoles:  auth.RolesFromContext(req.Context()),
	}
	entry.RequestID, _ = c.Get("request_id").(string)
	entry.TenantID, _ = c.Get("tenant_id").(string)
	entry.Resource, entry.ResourceID, entry.Action = splitAPIPath(req.URL.Path, req.Method)
	return entry
}

// splitAPIPath reads /api/<area>/<resource>[/<id>[/<verb>]].
func splitAPIPath(path, method string) (resource, id, action string) {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/"), "/"), "/")
	if len(segments) < 2 {
		return "", "", methodAction(method)
	}
	resource = segments[1]
	for _, s := range segments[2:] {
		if _, err := uuid.Parse(s); err == nil {
			id = s
			continue
		}
		if id != "" || action == "" {
			action = s
		}
	}
	if action == "" {
		action = methodAction(method)
	}
	return resource, id, action
}

func isReadMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func methodAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
