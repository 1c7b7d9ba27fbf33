package web

// errors.go maps technical errors to the stable JSON error vocabulary the
// storefront frontend understands. Patterns are matched case-insensitively
// with strings.Contains; first match wins, so specific patterns come before
// general ones. When users report an error code, support looks it up here.

import (
	"log/slog"
	"net/http"
	"strings"
)

// UserMessage is the client-facing rendering of an error.
type UserMessage struct {
	Message string `json:"error"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Status  int    `json:"-"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Submission and validation errors (VAL001-VAL099). These return 400 and
	// the frontend renders them inline next to the offending field.
	{
		pattern: "validation failed",
		msg: UserMessage{
			Message: "Some fields need attention",
			Action:  "Fix the highlighted fields and resubmit",
			Code:    "VAL001",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "missing required field",
		msg: UserMessage{
			Message: "A required field is empty",
			Action:  "Fill in every required field",
			Code:    "VAL002",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "already exists",
		msg: UserMessage{
			Message: "This submission already exists",
			Action:  "You are already on our list",
			Code:    "VAL003",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "invalid json",
		msg: UserMessage{
			Message: "The request body could not be read",
			Action:  "Refresh the page and try again",
			Code:    "VAL004",
			Status:  http.StatusBadRequest,
		},
	},

	// Auth errors (AUTH001-AUTH099).
	{
		pattern: "authentication required",
		msg: UserMessage{
			Message: "Please sign in to continue",
			Action:  "Sign in and retry",
			Code:    "AUTH001",
			Status:  http.StatusUnauthorized,
		},
	},
	{
		pattern: "admin access",
		msg: UserMessage{
			Message: "This area is for site admins only",
			Code:    "AUTH002",
			Status:  http.StatusForbidden,
		},
	},

	// Table and record errors (TBL001-TBL099).
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "Unknown table",
			Action:  "Verify the table name is correct",
			Code:    "TBL001",
			Status:  http.StatusNotFound,
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "That record no longer exists",
			Action:  "Reload the table and try again",
			Code:    "TBL002",
			Status:  http.StatusNotFound,
		},
	},
	{
		pattern: "delete not confirmed",
		msg: UserMessage{
			Message: "Deletion requires confirmation",
			Action:  "Confirm the deletion and retry",
			Code:    "TBL003",
			Status:  http.StatusBadRequest,
		},
	},

	// Database errors (DB001-DB099).
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this value already exists",
			Code:    "DB001",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Code:    "DB001",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "A backing service is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
			Status:  http.StatusBadGateway,
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "The connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
			Status:  http.StatusBadGateway,
		},
	},

	// Upstream service errors (SVC001-SVC099).
	{
		pattern: "shopping service",
		msg: UserMessage{
			Message: "Checkout is temporarily unavailable",
			Action:  "Please try again in a few moments",
			Code:    "SVC001",
			Status:  http.StatusBadGateway,
		},
	},
	{
		pattern: "users service",
		msg: UserMessage{
			Message: "Sign-in is temporarily unavailable",
			Action:  "Please try again in a few moments",
			Code:    "SVC002",
			Status:  http.StatusBadGateway,
		},
	},
	{
		pattern: "send email",
		msg: UserMessage{
			Message: "Email delivery failed",
			Action:  "Your submission was saved; emails will be retried",
			Code:    "SVC003",
			Status:  http.StatusBadGateway,
		},
	},

	// Upload errors (UPL001-UPL099).
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The file exceeds the upload size limit",
			Action:  "Upload a smaller file",
			Code:    "UPL001",
			Status:  http.StatusRequestEntityTooLarge,
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a file to upload",
			Code:    "UPL002",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "store object",
		msg: UserMessage{
			Message: "The file could not be stored",
			Action:  "Please try again",
			Code:    "UPL003",
			Status:  http.StatusBadGateway,
		},
	},

	// Request lifecycle (REQ001-REQ099).
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
			Status:  499, // client closed request
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The request timed out",
			Action:  "Please try again",
			Code:    "REQ002",
			Status:  http.StatusGatewayTimeout,
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Please try again",
			Code:    "REQ002",
			Status:  http.StatusGatewayTimeout,
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "REQ003",
			Status:  http.StatusTooManyRequests,
		},
	},
}

// defaultMessage is the ERR000 fallback. The technical error is logged
// server-side; clients only see this generic shape.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError resolves a technical error to its user-facing message and HTTP
// status. Nil maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// respondError logs the technical error and writes the mapped JSON shape.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := MapError(err)

	logger := s.log
	attrs := []any{"path", r.URL.Path, "method", r.Method, "code", msg.Code, "error", err}
	if msg.Status >= 500 {
		logger.Error("request failed", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	writeJSON(w, msg.Status, msg)
}

// respondErrorWith overrides the mapped message with explicit content while
// keeping the logging path. Used when the handler already has a precise
// client-facing message (e.g. per-field validation errors).
func (s *Server) respondErrorWith(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	s.log.Warn("request rejected", "path", r.URL.Path, "method", r.Method, "status", status, "error", err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := encodeJSON(w, v); err != nil {
		slog.Default().Error("json encode failed", "error", err)
	}
}
