package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
	"github.com/eco-green-group4/evmarket-web/internal/credstore"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/logging"
)

// Operation names, used in APIError.Op, logs and metrics.
const (
	opLogin    = "login"
	opRegister = "register"
	opMe       = "me"
	opProfile  = "profile"
	opRefresh  = "refresh"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Observer receives one call per backend request.
// outcome is KindName of the returned error.
type Observer func(op, outcome string, duration time.Duration)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver registers a per-request observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// Client is the marketplace backend session service.
//
// Thread Safety:
//   - Safe for concurrent use. Concurrent logins are not serialised; the
//     last one to complete owns the stored credentials.
type Client struct {
	baseURL  string
	http     *http.Client
	store    credstore.Store
	logger   *logging.Logger
	observer Observer

	// credMu serialises writes to the credential keys.
	credMu sync.Mutex
}

// New creates a Client for the backend at cfg.BaseURL.
func New(cfg config.BackendConfig, store credstore.Store, logger *logging.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		store:   store,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login authenticates with email and password and persists the returned credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.authenticate(ctx, opLogin, "/auth/login", loginRequest{Email: email, Password: password})
}

// Register creates an account and persists the returned credentials.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	return c.authenticate(ctx, opRegister, "/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, op, path string, payload any) (*Session, error) {
	body, err := c.do(ctx, op, http.MethodPost, path, payload, "")
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.malformed(op, err)
	}
	r := resp.unwrap()
	if r.Token == "" || r.User == nil {
		return nil, c.malformed(op, errors.New("response missing token or user"))
	}

	if err := c.persist(r.Token, r.RefreshToken, r.User); err != nil {
		return nil, err
	}

	c.logger.Info("session established", "op", op, "user_id", r.User.ID.String())
	return &Session{Token: r.Token, RefreshToken: r.RefreshToken, User: r.User}, nil
}

// persist writes the credential keys. A missing refresh token removes any
// previous one so it cannot outlive the session it belonged to.
func (c *Client) persist(token, refreshToken string, user *auth.User) error {
	c.credMu.Lock()
	defer c.credMu.Unlock()

	if err := c.store.Set(credstore.KeyToken, token); err != nil {
		return fmt.Errorf("persisting token: %w", err)
	}

	var err error
	if refreshToken != "" {
		err = c.store.Set(credstore.KeyRefreshToken, refreshToken)
	} else {
		err = c.store.Remove(credstore.KeyRefreshToken)
	}
	if err != nil {
		c.clearLocked()
		return fmt.Errorf("persisting refresh token: %w", err)
	}

	c.cacheUser(user)
	return nil
}

// cacheUser stores the user record. The cache is optional, so failures are only logged.
func (c *Client) cacheUser(user *auth.User) {
	if user == nil {
		return
	}
	data, err := json.Marshal(user)
	if err == nil {
		err = c.store.Set(credstore.KeyUser, string(data))
	}
	if err != nil {
		c.logger.Warn("caching user failed", "error", err)
	}
}

// Logout clears the stored credentials and drops pooled connections.
// It never fails; storage errors are logged.
func (c *Client) Logout() {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	c.clearLocked()
}

// clearLocked removes the credential keys. c.credMu must be held.
func (c *Client) clearLocked() {
	for _, key := range credstore.CredentialKeys {
		if err := c.store.Remove(key); err != nil {
			c.logger.Error("removing credential failed", "key", string(key), "error", err)
		}
	}
	c.http.CloseIdleConnections()
	c.logger.Debug("credentials cleared")
}

// CurrentUser fetches /auth/me. It returns (nil, nil) without a network call
// when no token is stored. A 401 clears the credentials before returning
// ErrUnauthenticated.
func (c *Client) CurrentUser(ctx context.Context) (*auth.User, error) {
	token, ok := c.token()
	if !ok {
		return nil, nil
	}

	body, err := c.do(ctx, opMe, http.MethodGet, "/auth/me", nil, token)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.expire(credstore.KeyToken, token)
		}
		return nil, err
	}

	user, err := decodeUser(body)
	if err != nil {
		return nil, c.malformed(opMe, err)
	}
	c.cacheUser(user)
	return user, nil
}

// UpdateProfile sends a partial user record and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*auth.User, error) {
	token, ok := c.token()
	if !ok {
		return nil, &APIError{Op: opProfile, Kind: ErrUnauthenticated}
	}

	body, err := c.do(ctx, opProfile, http.MethodPut, "/auth/profile", update, token)
	if err != nil {
		return nil, err
	}

	user, err := decodeUser(body)
	if err != nil {
		return nil, c.malformed(opProfile, err)
	}
	if user == nil {
		return nil, c.malformed(opProfile, errors.New("empty user"))
	}
	c.cacheUser(user)
	return user, nil
}

// RefreshToken exchanges the stored refresh token for a new access token.
// It returns ("", false) when no refresh token is stored. Any failure logs
// out and returns ("", false); it never returns an error.
//
// The result is only applied while the refresh token that was sent is still
// stored. If a login replaced it during the call, the newer credentials are
// left untouched and ("", false) is returned.
func (c *Client) RefreshToken(ctx context.Context) (string, bool) {
	refresh, ok := c.store.Get(credstore.KeyRefreshToken)
	if !ok || refresh == "" {
		return "", false
	}

	body, err := c.do(ctx, opRefresh, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refresh}, "")
	if err != nil {
		c.logger.Warn("token refresh rejected", "error", err)
		c.expire(credstore.KeyRefreshToken, refresh)
		return "", false
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.unwrap().Token == "" {
		c.logger.Warn("token refresh returned no token")
		c.expire(credstore.KeyRefreshToken, refresh)
		return "", false
	}
	r := resp.unwrap()

	c.credMu.Lock()
	defer c.credMu.Unlock()
	if !c.holdsLocked(credstore.KeyRefreshToken, refresh) {
		c.logger.Debug("discarding refresh for a replaced session")
		return "", false
	}
	if err := c.store.Set(credstore.KeyToken, r.Token); err != nil {
		c.logger.Error("persisting refreshed token failed", "error", err)
		c.clearLocked()
		return "", false
	}
	if r.RefreshToken != "" {
		if err := c.store.Set(credstore.KeyRefreshToken, r.RefreshToken); err != nil {
			c.logger.Warn("persisting rotated refresh token failed", "error", err)
		}
	}
	return r.Token, true
}

// expire clears the credentials if key still holds the value a failed call
// was made with. Credentials written by a later login are kept.
func (c *Client) expire(key credstore.Key, sent string) {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	if !c.holdsLocked(key, sent) {
		c.logger.Debug("credentials replaced during the call, keeping them", "key", string(key))
		return
	}
	c.clearLocked()
}

func (c *Client) holdsLocked(key credstore.Key, value string) bool {
	current, ok := c.store.Get(key)
	return ok && current == value
}

// IsAuthenticated reports whether an access token is stored. It says nothing
// about the token's validity.
func (c *Client) IsAuthenticated() bool {
	_, ok := c.token()
	return ok
}

// TokenExpiry returns the unverified expiry of the stored access token.
func (c *Client) TokenExpiry() (time.Time, bool) {
	token, ok := c.token()
	if !ok {
		return time.Time{}, false
	}
	return auth.TokenExpiry(token)
}

func (c *Client) token() (string, bool) {
	token, ok := c.store.Get(credstore.KeyToken)
	return token, ok && token != ""
}

// do performs one JSON request and returns the 2xx body.
// bearer, when non-empty, is sent as the Authorization header.
func (c *Client) do(ctx context.Context, op, method, path string, payload any, bearer string) (body []byte, err error) {
	start := time.Now()
	requestID := uuid.NewString()
	status := 0

	defer func() {
		elapsed := time.Since(start)
		c.logger.Debug("backend call",
			"op", op,
			"method", method,
			"path", path,
			"status", status,
			"request_id", requestID,
			"duration_ms", elapsed.Milliseconds(),
			"outcome", KindName(err),
		)
		if c.observer != nil {
			c.observer(op, KindName(err), elapsed)
		}
	}()

	var reader io.Reader
	if payload != nil {
		data, mErr := json.Marshal(payload)
		if mErr != nil {
			return nil, fmt.Errorf("encoding %s request: %w", op, mErr)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &APIError{Op: op, Status: status, Kind: ErrNetwork, Err: err}
	}

	if status < 200 || status > 299 {
		return nil, &APIError{
			Op:      op,
			Status:  status,
			Message: errorMessage(status, body),
			Kind:    kindForStatus(op, status),
		}
	}
	return body, nil
}

func (c *Client) malformed(op string, err error) error {
	return &APIError{Op: op, Kind: ErrMalformedResponse, Err: err}
}

// errorMessage extracts the backend's message, falling back to the status text.
func errorMessage(status int, body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return http.StatusText(status)
}
