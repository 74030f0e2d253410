package pixiv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pixie/internal/errkind"
)

const (
	defaultAppBaseURL = "https://app-api.pixiv.net"
	defaultAuthURL    = "https://oauth.secure.pixiv.net/auth/token"
	defaultUserAgent  = "PixivAndroidApp/5.0.234 (Android 11; Pixel 5)"

	// defaultTokenMargin is subtracted from the server-reported lifetime
	// so a token is refreshed before it actually lapses mid-download.
	defaultTokenMargin = 5 * time.Minute
)

// downloadReferer is required by the image CDN; requests without it are
// rejected.
const downloadReferer = "https://app-api.pixiv.net/"

// Options configures a Client.
type Options struct {
	BaseURL     string
	AuthURL     string
	UserAgent   string
	AutoRelogin bool
	TokenMargin time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client talks to the gallery service. All exported methods are safe for
// concurrent use; the shared session is guarded internally.
type Client struct {
	baseURL     string
	authURL     string
	userAgent   string
	autoRelogin bool
	tokenMargin time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	authMu      sync.Mutex
	credentials Credentials
	session     Session
}

// NewClient constructs a client. Zero-valued options fall back to service
// defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		authURL:     opts.AuthURL,
		userAgent:   opts.UserAgent,
		autoRelogin: opts.AutoRelogin,
		tokenMargin: opts.TokenMargin,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = defaultAppBaseURL
	}
	if c.authURL == "" {
		c.authURL = defaultAuthURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.tokenMargin <= 0 {
		c.tokenMargin = defaultTokenMargin
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.logger = c.logger.With("component", "pixiv")
	return c
}

// Login authenticates with the stored credentials and installs the
// resulting session.
func (c *Client) Login(ctx context.Context, credentials Credentials) error {
	if !credentials.Valid() {
		return errkind.Wrap(errkind.ErrAuth, "pixiv", "login", "username and password required", nil)
	}
	c.authMu.Lock()
	defer c.authMu.Unlock()
	c.credentials = credentials
	return c.authenticateLocked(ctx)
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.session
}

// HasAuth reports whether a login has succeeded at least once.
func (c *Client) HasAuth() bool {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.session.AccessToken != ""
}

// ensureAuth verifies session freshness before a network-requiring call.
// The check and any refresh run under one lock: the first goroutine to
// observe expiry re-authenticates while the rest block; once inside, they
// re-check freshness and reuse the winner's session.
func (c *Client) ensureAuth(ctx context.Context) (string, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if c.session.AccessToken == "" && !c.credentials.Valid() {
		return "", errkind.Wrap(errkind.ErrAuth, "pixiv", "auth", "not logged in", nil)
	}
	if c.session.Fresh(time.Now(), c.tokenMargin) {
		return c.session.AccessToken, nil
	}
	if c.session.AccessToken != "" && !c.autoRelogin {
		return "", errkind.Wrap(errkind.ErrAuth, "pixiv", "auth", "session expired and auto re-login is disabled", nil)
	}
	if err := c.authenticateLocked(ctx); err != nil {
		return "", err
	}
	return c.session.AccessToken, nil
}

type authResponse struct {
	Response struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		User         struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"response"`
	HasError bool `json:"has_error"`
	Errors   struct {
		System struct {
			Message string `json:"message"`
		} `json:"system"`
	} `json:"errors"`
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("get_secure_url", "1")
	if c.session.RefreshToken != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", c.session.RefreshToken)
	} else {
		form.Set("grant_type", "password")
		form.Set("username", c.credentials.Username)
		form.Set("password", c.credentials.Password)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errkind.Wrap(errkind.ErrAuth, "pixiv", "login", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errkind.Wrap(errkind.ErrAuth, "pixiv", "login", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errkind.Wrap(errkind.ErrAuth, "pixiv", "login", "read response", err)
	}

	var parsed authResponse
	if decodeErr := json.Unmarshal(body, &parsed); decodeErr != nil || resp.StatusCode != http.StatusOK || parsed.Response.AccessToken == "" {
		message := strings.TrimSpace(parsed.Errors.System.Message)
		if message == "" {
			message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		// A stale refresh token is not fatal while we still hold the
		// password; retry once with a password grant.
		if c.session.RefreshToken != "" && c.credentials.Valid() {
			c.logger.Warn("refresh grant rejected, retrying with password", "detail", message)
			c.session.RefreshToken = ""
			return c.authenticateLocked(ctx)
		}
		return errkind.Wrap(errkind.ErrAuth, "pixiv", "login", message, nil)
	}

	lifetime := time.Duration(parsed.Response.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	c.session = Session{
		AccessToken:  parsed.Response.AccessToken,
		RefreshToken: parsed.Response.RefreshToken,
		UserID:       parsed.Response.User.ID,
		ExpiresAt:    time.Now().Add(lifetime),
	}
	c.logger.Debug("authenticated", "expires_at", c.session.ExpiresAt)
	return nil
}

// getJSON performs an authenticated GET against the app API and decodes the
// response into out. Service-level rejections surface as *APIError tagged
// with the fetch marker.
func (c *Client) getJSON(ctx context.Context, call string, query url.Values, out any) error {
	token, err := c.ensureAuth(ctx)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + call
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errkind.Wrap(errkind.ErrFetch, "pixiv", call, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errkind.Wrap(errkind.ErrFetch, "pixiv", call, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errkind.Wrap(errkind.ErrFetch, "pixiv", call, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Call: call, Status: resp.StatusCode, Errors: serverErrorDetail(body)}
		return fmt.Errorf("%w: %w", errkind.ErrFetch, apiErr)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errkind.Wrap(errkind.ErrFetch, "pixiv", call, "decode response", err)
	}
	return nil
}

func serverErrorDetail(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Reason  string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Error.Reason != "" {
			return payload.Error.Reason
		}
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}
