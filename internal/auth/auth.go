// Package auth resolves the visitor behind a request. Sessions live in the
// upstream users service; this package forwards the session cookie to it
// and decides whether the resolved user is the site admin.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SessionCookie is the session token cookie set at login.
const SessionCookie = "session_token"

// ErrNoSession is returned when the request carries no usable session.
var ErrNoSession = errors.New("no session")

// User is the identity the users service resolved for a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Client resolves sessions against the users service.
type Client struct {
	baseURL    string
	ownerEmail string
	http       *http.Client
	log        *slog.Logger
}

// Config carries the users service settings.
type Config struct {
	BaseURL    string
	OwnerEmail string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewClient builds a session resolver. Timeout defaults to 10 seconds.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		ownerEmail: cfg.OwnerEmail,
		http:       &http.Client{Timeout: cfg.Timeout},
		log:        cfg.Logger,
	}
}

// UserFromRequest resolves the request's session cookie to a User.
// A missing cookie or a rejected token yields ErrNoSession.
func (c *Client) UserFromRequest(r *http.Request) (*User, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	return c.resolve(r.Context(), cookie.Value)
}

func (c *Client) resolve(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrNoSession
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("resolve session: users service returned %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode session user: %w", err)
	}
	if user.Email == "" {
		return nil, ErrNoSession
	}
	return &user, nil
}

// IsAdmin reports whether the user is the configured site owner.
func (c *Client) IsAdmin(user *User) bool {
	return user != nil && c.ownerEmail != "" && user.Email == c.ownerEmail
}

type contextKey struct{}

// WithUser stores the resolved user on the context.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFrom returns the user stored by middleware, if any.
func UserFrom(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextKey{}).(*User)
	return user, ok
}

// RequireUser rejects requests without a valid session with 401, otherwise
// stores the user on the request context.
func (c *Client) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := c.UserFromRequest(r)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				c.log.Error("session resolution failed", "path", r.URL.Path, "error", err)
			}
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAdmin additionally rejects authenticated non-owners with 403.
func (c *Client) RequireAdmin(next http.Handler) http.Handler {
	return c.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFrom(r.Context())
		if !c.IsAdmin(user) {
			c.log.Warn("admin access denied", "path", r.URL.Path, "email", user.Email)
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// writeError sends a JSON error body the way the gateway's handlers do.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
