// Package domoticz is the backend client for the Domoticz JSON API.
package domoticz

import (
	"context"
	"crypto/md5"
	"domoticz-hue-emulator/internal/domain/model"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// stateTTL bounds how long a state read is served from cache.
const stateTTL = 2 * time.Second

// Logger is the logging interface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is told about every HTTP call made to Domoticz.
type Observer interface {
	ObserveBackendCall(param string, duration time.Duration, err error)
}

var errUnauthorized = errors.New("session rejected")

type Config struct {
	URL          string
	Username     string
	Password     string
	Timeout      time.Duration
	RetryBackoff time.Duration
}

type Client struct {
	baseURL      string
	username     string
	password     string
	timeout      time.Duration
	retryBackoff time.Duration
	httpClient   *http.Client
	logger       Logger
	observer     Observer

	cache *ttlcache.Cache[string, model.BackendState]

	// The session is replaced only through the single-flight login group.
	sessionMu  sync.Mutex
	sessionGen uint64
	cookies    []*http.Cookie
	loggedIn   bool
	logins     singleflight.Group
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.URL, "/"),
		username:     cfg.Username,
		password:     cfg.Password,
		timeout:      cfg.Timeout,
		retryBackoff: cfg.RetryBackoff,
		httpClient:   &http.Client{},
		logger:       noopLogger{},
		cache: ttlcache.New(
			ttlcache.WithTTL[string, model.BackendState](stateTTL),
		),
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// SetObserver registers a receiver for call timings.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// Start runs the cache janitor until Stop is called.
func (c *Client) Start() {
	c.cache.Start()
}

func (c *Client) Stop() {
	c.cache.Stop()
}

// Login establishes a session. Calling it is optional; commands log in on
// demand.
func (c *Client) Login(ctx context.Context) error {
	_, err := c.relogin(ctx, c.generation())
	return err
}

// Execute sends one command to the entity behind target.
func (c *Client) Execute(ctx context.Context, target model.Target, cmd model.Command) error {
	params, err := commandParams(target, cmd)
	if err != nil {
		return err
	}
	if _, err := c.call(ctx, params); err != nil {
		return err
	}
	c.cache.Delete(cacheKey(target))
	return nil
}

func commandParams(target model.Target, cmd model.Command) (url.Values, error) {
	params := url.Values{"type": {"command"}, "idx": {target.BackendID}}
	if target.Scene {
		c, ok := cmd.(model.SceneCommand)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a scene command", model.ErrBackendRejected, cmd)
		}
		params.Set("param", "switchscene")
		params.Set("switchcmd", onOff(c.On))
		return params, nil
	}

	switch c := cmd.(type) {
	case model.SwitchCommand:
		params.Set("param", "switchlight")
		params.Set("switchcmd", onOff(c.On))
	case model.LevelCommand:
		params.Set("param", "switchlight")
		params.Set("switchcmd", "Set Level")
		params.Set("level", fmt.Sprint(c.Level))
	case model.ColorCommand:
		params.Set("param", "setcolbrightnessvalue")
		params.Set("brightness", fmt.Sprint(c.Brightness))
		switch c.Mode {
		case model.ColorHueSat:
			params.Set("hue", fmt.Sprint(c.Hue))
			params.Set("saturation", fmt.Sprint(c.Saturation))
			params.Set("iswhite", "false")
		case model.ColorRGB:
			params.Set("color", encodeColor(colorValue{M: colorModeRGB, R: c.RGB.R, G: c.RGB.G, B: c.RGB.B}))
		case model.ColorWhite:
			params.Set("color", encodeColor(colorValue{M: colorModeWhite, CW: c.ColdWhite, WW: c.WarmWhite}))
		default:
			return nil, fmt.Errorf("%w: unknown color mode %q", model.ErrBackendRejected, c.Mode)
		}
	default:
		return nil, fmt.Errorf("%w: %T is not a device command", model.ErrBackendRejected, cmd)
	}
	return params, nil
}

func onOff(on bool) string {
	if on {
		return "On"
	}
	return "Off"
}

type apiResponse struct {
	Status  string          `json:"status"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// call performs one API request, retrying a transient failure once and
// logging in again once when the session is rejected.
func (c *Client) call(ctx context.Context, params url.Values) (*apiResponse, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBackoff

	operation := func() (*apiResponse, error) {
		gen, err := c.ensureSession(ctx)
		if err != nil {
			return nil, permanentUnlessUnavailable(err)
		}
		resp, err := c.do(ctx, params)
		if errors.Is(err, errUnauthorized) {
			c.logger.Info("domoticz session rejected, logging in again")
			if _, err := c.relogin(ctx, gen); err != nil {
				return nil, permanentUnlessUnavailable(err)
			}
			resp, err = c.do(ctx, params)
			if errors.Is(err, errUnauthorized) {
				return nil, backoff.Permanent(fmt.Errorf("%s: %w", params.Get("param"), model.ErrBackendAuth))
			}
		}
		if err != nil {
			return nil, permanentUnlessUnavailable(err)
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, operation, backoff.WithBackOff(b), backoff.WithMaxTries(2))
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, fmt.Errorf("%s: %w: %v", params.Get("param"), model.ErrBackendUnavailable, err)
		}
		return nil, err
	}
	return resp, nil
}

func permanentUnlessUnavailable(err error) error {
	if errors.Is(err, model.ErrBackendUnavailable) {
		return err
	}
	return backoff.Permanent(err)
}

// do sends a single request with the current session.
func (c *Client) do(ctx context.Context, params url.Values) (resp *apiResponse, err error) {
	param := params.Get("param")
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveBackendCall(param, time.Since(start), err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json.htm?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", param, err)
	}
	c.sessionMu.Lock()
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	c.sessionMu.Unlock()

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", param, model.ErrBackendUnavailable, err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, errUnauthorized
	case httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("%s: %w: HTTP %d", param, model.ErrBackendUnavailable, httpResp.StatusCode)
	case httpResp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: %w: HTTP %d", param, model.ErrBackendRejected, httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", param, model.ErrBackendUnavailable, err)
	}
	resp = &apiResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, fmt.Errorf("%s: %w: invalid response: %v", param, model.ErrBackendUnavailable, err)
	}
	if !strings.EqualFold(resp.Status, "OK") {
		msg := resp.Message
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%s: %w: %s", param, model.ErrBackendRejected, msg)
	}
	return resp, nil
}

func (c *Client) generation() uint64 {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.sessionGen
}

// ensureSession logs in when no session exists yet and returns the session
// generation the caller works with.
func (c *Client) ensureSession(ctx context.Context) (uint64, error) {
	if c.username == "" {
		return 0, nil
	}
	c.sessionMu.Lock()
	gen, ok := c.sessionGen, c.loggedIn
	c.sessionMu.Unlock()
	if ok {
		return gen, nil
	}
	return c.relogin(ctx, gen)
}

// relogin replaces the session of generation stale. Concurrent callers share
// one login; a caller whose generation is already outdated gets the newer
// session without another login.
func (c *Client) relogin(ctx context.Context, stale uint64) (uint64, error) {
	v, err, _ := c.logins.Do("login", func() (any, error) {
		c.sessionMu.Lock()
		if c.loggedIn && c.sessionGen != stale {
			gen := c.sessionGen
			c.sessionMu.Unlock()
			return gen, nil
		}
		c.loggedIn = false
		c.cookies = nil
		c.sessionMu.Unlock()

		// The login outlives the caller that happened to start it.
		cookies, err := c.login(context.WithoutCancel(ctx))
		if err != nil {
			return uint64(0), err
		}

		c.sessionMu.Lock()
		defer c.sessionMu.Unlock()
		c.sessionGen++
		c.cookies = cookies
		c.loggedIn = true
		return c.sessionGen, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

func (c *Client) login(ctx context.Context) ([]*http.Cookie, error) {
	if c.username == "" {
		return nil, nil
	}
	sum := md5.Sum([]byte(c.password))
	params := url.Values{
		"type":     {"command"},
		"param":    {"logincheck"},
		"username": {base64.StdEncoding.EncodeToString([]byte(c.username))},
		"password": {hex.EncodeToString(sum[:])},
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json.htm?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("logincheck: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("logincheck: %w: %v", model.ErrBackendUnavailable, err)
		c.observeLogin(start, err)
		return nil, err
	}
	defer resp.Body.Close()

	var body apiResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body)
	switch {
	case resp.StatusCode >= 500:
		err = fmt.Errorf("logincheck: %w: HTTP %d", model.ErrBackendUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK || decodeErr != nil || !strings.EqualFold(body.Status, "OK"):
		err = fmt.Errorf("logincheck: %w for user %q", model.ErrBackendAuth, c.username)
	}
	c.observeLogin(start, err)
	if err != nil {
		c.logger.Error("domoticz login failed", "user", c.username, "error", err)
		return nil, err
	}
	c.logger.Info("logged in to domoticz", "user", c.username)
	return resp.Cookies(), nil
}

func (c *Client) observeLogin(start time.Time, err error) {
	if c.observer != nil {
		c.observer.ObserveBackendCall("logincheck", time.Since(start), err)
	}
}
