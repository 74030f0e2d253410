package pixiv

import (
	"fmt"
	"time"
)

// Credentials holds the account login used for authentication and
// re-authentication.
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both fields are present.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// Session is an authenticated token set issued by the service.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	ExpiresAt    time.Time
}

// Fresh reports whether the session is usable at the given instant,
// honoring a safety margin before the actual expiry.
func (s Session) Fresh(now time.Time, margin time.Duration) bool {
	if s.AccessToken == "" {
		return false
	}
	return now.Add(margin).Before(s.ExpiresAt)
}

// APIError reports a request the service rejected, carrying the failing
// call and the server's error payload.
type APIError struct {
	Call   string
	Status int
	Errors string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api call %s failed (HTTP %d): %s", e.Call, e.Status, e.Errors)
}
