package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"raywatch/internal/domain"
	"raywatch/internal/log"
)

const (
	apiVersion = 1

	// maxBodySize caps how much of a device response is read
	maxBodySize = 1 << 20

	DefaultLoginPath = "/api/login.php"
	DefaultGetPath   = "/api/get.php"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "raywatch"
)

// Config describes how to reach a charger's control API
type Config struct {
	Username           string
	Password           string
	LoginPath          string
	GetPath            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	UserAgent          string
}

// Client talks to the control API of individual chargers. It holds no
// per-unit state; every Login starts from nothing.
type Client struct {
	cfg           Config
	newHTTPClient func(Config) (*http.Client, error)
}

// NewClient creates a session client, filling in defaults for empty fields
func NewClient(cfg Config) *Client {
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.GetPath == "" {
		cfg.GetPath = DefaultGetPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{cfg: cfg, newHTTPClient: newHTTPClient}
}

// Session is an authenticated context bound to one unit for one poll
// attempt. It must not be reused for another unit or cycle.
type Session struct {
	// Token is the session token as text
	Token string

	// rawToken is sent back exactly as the unit issued it
	rawToken json.RawMessage

	unit   domain.Unit
	client *http.Client
}

// Close releases the session's connections
func (s *Session) Close() {
	if s == nil || s.client == nil {
		return
	}
	s.client.CloseIdleConnections()
}

type loginRequest struct {
	Version int          `json:"version"`
	Login   loginPayload `json:"login"`
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Login *struct {
		Token json.RawMessage `json:"token"`
	} `json:"login"`
	APIErrors json.RawMessage `json:"api_errors"`
}

type getRequest struct {
	Version  int      `json:"version"`
	Token    json.RawMessage `json:"token"`
	Settings []string        `json:"settings"`
}

// Login authenticates against unit and returns a fresh session
func (c *Client) Login(ctx context.Context, unit domain.Unit) (*Session, error) {
	ctx = log.WithAttrs(ctx, slog.String("ip", unit.Address))
	log.Ctx(ctx).InfoContext(ctx, "logging in", slog.String("hostname", unit.DisplayHostname()))

	httpClient, err := c.newHTTPClient(c.cfg)
	if err != nil {
		return nil, &AuthError{Address: unit.Address, Err: err}
	}
	sess := &Session{unit: unit, client: httpClient}

	payload := loginRequest{
		Version: apiVersion,
		Login:   loginPayload{Username: c.cfg.Username, Password: c.cfg.Password},
	}
	status, body, err := c.post(ctx, httpClient, unit.Address, c.cfg.LoginPath, payload)
	if err != nil {
		sess.Close()
		log.Ctx(ctx).ErrorContext(ctx, "login request failed", slog.Int("status", status), slog.Any("error", err))
		return nil, &AuthError{Address: unit.Address, Status: status, Err: err}
	}

	var res loginResponse
	if err := json.Unmarshal(body, &res); err != nil {
		sess.Close()
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode login response", slog.Any("error", err), slog.String("body", string(body)))
		return nil, &AuthError{Address: unit.Address, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}

	var token string
	ok := res.Login != nil
	if ok {
		token, ok = tokenString(res.Login.Token)
	}
	if !ok {
		sess.Close()
		detail := apiErrorDetail(res.APIErrors)
		log.Ctx(ctx).ErrorContext(ctx, "login failed", slog.String("api_errors", detail))
		return nil, &AuthError{Address: unit.Address, Status: status, Detail: detail, Err: errors.New("response has no login token")}
	}

	sess.Token = token
	sess.rawToken = res.Login.Token
	log.Ctx(ctx).DebugContext(ctx, "login success")
	return sess, nil
}

// FetchInfo retrieves the unit's info settings over sess and flattens them,
// merging the first EVSE entry over the top-level record.
func (c *Client) FetchInfo(ctx context.Context, sess *Session) (domain.DeviceInfo, error) {
	unit := sess.unit
	ctx = log.WithAttrs(ctx, slog.String("ip", unit.Address))
	log.Ctx(ctx).InfoContext(ctx, "fetching charger info")

	payload := getRequest{
		Version:  apiVersion,
		Token:    sess.rawToken,
		Settings: []string{"info"},
	}
	status, body, err := c.post(ctx, sess.client, unit.Address, c.cfg.GetPath, payload)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "fetch request failed", slog.Int("status", status), slog.Any("error", err))
		return domain.DeviceInfo{}, &FetchError{Address: unit.Address, Status: status, Err: err}
	}

	info, evseKey, evse, err := parseInfo(body)
	if err != nil {
		fe := &FetchError{Address: unit.Address, Status: status, Err: err}
		if errors.Is(err, errNoSettings) {
			var res getResponse
			_ = json.Unmarshal(body, &res)
			fe.Detail = apiErrorDetail(res.APIErrors)
		}
		log.Ctx(ctx).ErrorContext(ctx, "invalid info response", slog.Any("error", fe))
		return domain.DeviceInfo{}, fe
	}
	if evseKey == "" {
		log.Ctx(ctx).WarnContext(ctx, "no EVSE data found")
	}

	log.Ctx(ctx).DebugContext(ctx, "retrieved charger info", slog.String("evse", evseKey))
	return domain.NewDeviceInfo(unit, domain.MergeInfo(info, evse)), nil
}

// Poll logs in to unit, fetches its info and discards the session
func (c *Client) Poll(ctx context.Context, unit domain.Unit) (domain.DeviceInfo, error) {
	sess, err := c.Login(ctx, unit)
	if err != nil {
		return domain.DeviceInfo{}, err
	}
	defer sess.Close()

	return c.FetchInfo(ctx, sess)
}

// tokenString reports whether raw is a usable login token: a non-empty
// string or a non-zero number. Numbers are returned in their JSON form.
func tokenString(raw json.RawMessage) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if len(bytes.TrimSpace(raw)) == 0 || dec.Decode(&v) != nil {
		return "", false
	}

	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return "", false
		}
		return t.String(), true
	}
	return "", false
}

// post sends payload as JSON and returns the status and body of a 2xx
// response
func (c *Client) post(ctx context.Context, client *http.Client, address, path string, payload any) (int, []byte, error) {
	u := url.URL{Scheme: "https", Host: address, Path: path}

	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Ctx(ctx).DebugContext(ctx, "sending request", slog.String("url", u.String()))
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.StatusCode, body, nil
}
