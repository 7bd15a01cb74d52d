// Package client is the API client for the vidtube backend. It attaches the
// current access token to outgoing calls and transparently recovers from an
// expired one: a single refresh, shared across concurrent callers, followed
// by exactly one replay of the original call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned when no usable session remains: the refresh
// token is missing, rejected, or the retried call was denied again.
var ErrSessionExpired = errors.New("session expired")

// User is the sanitized account projection returned by the backend.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client is the request pipeline. Safe for concurrent use.
type Client struct {
	baseURL string
	hc      *http.Client
	store   TokenStore
	group   singleflight.Group
}

// New builds a client rooted at baseURL. A nil store gets an in-memory one;
// a nil httpClient gets a 30s-timeout default.
func New(baseURL string, store TokenStore, httpClient *http.Client) *Client {
	if store == nil {
		store = NewMemoryStore()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      httpClient,
		store:   store,
	}
}

// Do dispatches the request with the current access token attached.
//
// On a 401 it refreshes the session once and replays the original request a
// single time; a second 401 propagates untouched, never looping. Concurrent
// callers hitting 401 together share one in-flight refresh. If the refresh
// fails, local session state is cleared and the original rejection is
// returned. A request whose body cannot be rewound is never replayed, but
// the refresh still runs so later calls start with a fresh pair.
// Non-authentication rejections pass through unchanged.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	attach(req, c.store.AccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if err := c.refreshShared(req.Context()); err != nil {
		c.store.Clear()
		return resp, nil
	}

	// A replay needs a rewindable body; without one the store is fresh but
	// this rejection goes back untouched.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	// The caller walked away while we refreshed: the store is fresh but
	// the retry is skipped.
	if ctxErr := req.Context().Err(); ctxErr != nil {
		resp.Body.Close()
		return nil, ctxErr
	}
	resp.Body.Close()

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	attach(retry, c.store.AccessToken())
	return c.hc.Do(retry)
}

// Login authenticates with a username-or-email identifier and stores the
// returned token pair.
func (c *Client) Login(ctx context.Context, identifier, password string) (*User, error) {
	body, err := json.Marshal(map[string]string{
		"username": identifier,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/users/login", body)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login failed: %s", env.Message)
	}

	var data struct {
		User         User   `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, err
	}
	c.store.SetTokens(data.AccessToken, data.RefreshToken)
	return &data.User, nil
}

// Logout invalidates the session server-side and clears local state.
// Local state is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.store.Clear()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/users/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Profile fetches the authenticated account through the retry pipeline.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/users/profile", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrSessionExpired
	}
	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile fetch failed: %s", env.Message)
	}

	var u User
	if err := json.Unmarshal(env.Data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) refreshShared(ctx context.Context) error {
	// singleflight collapses concurrent expiries into one refresh call;
	// WithoutCancel lets it finish for the others even if this caller quits.
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.refresh(context.WithoutCancel(ctx))
	})
	return err
}

func (c *Client) refresh(ctx context.Context) error {
	rt := c.store.RefreshToken()
	if rt == "" {
		return ErrSessionExpired
	}

	body, err := json.Marshal(map[string]string{"refreshToken": rt})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/users/refresh-token", body)
	if err != nil {
		return err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrSessionExpired
	}
	env, err := decodeEnvelope(resp)
	if err != nil {
		return err
	}

	var data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return err
	}
	if data.AccessToken == "" {
		return ErrSessionExpired
	}
	if data.RefreshToken == "" {
		// Non-rotating servers return only the access token.
		data.RefreshToken = rt
	}
	c.store.SetTokens(data.AccessToken, data.RefreshToken)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	}
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func attach(req *http.Request, accessToken string) {
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Del("Authorization")
	}
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env, nil
}
