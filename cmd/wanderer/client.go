package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wricardo/geocache-world/game/engine"
	"github.com/wricardo/geocache-world/game/service"
)

// Client drives one session over the REST API
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionID returns the session the client is bound to
func (c *Client) SessionID() string {
	return c.sessionID
}

func (c *Client) sessionURL(parts ...string) string {
	u := c.baseURL + "/api/sessions/" + url.PathEscape(c.sessionID)
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

// do sends body as JSON and decodes a 2xx reply into result
func (c *Client) do(method, url string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s - %s", method, url, resp.Status, bytes.TrimSpace(data))
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// CreateSession creates a session and binds the client to it
func (c *Client) CreateSession(configID, sessionID string) (*engine.WorldState, error) {
	req := map[string]string{}
	if configID != "" {
		req["config_id"] = configID
	}
	if sessionID != "" {
		req["session_id"] = sessionID
	}

	var info service.SessionInfo
	if err := c.do("POST", c.baseURL+"/api/sessions", req, &info); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	c.sessionID = info.ID
	return info.WorldState, nil
}

// Resume binds the client to an existing session
func (c *Client) Resume(sessionID string) (*engine.WorldState, error) {
	c.sessionID = sessionID
	return c.GetState()
}

func (c *Client) GetState() (*engine.WorldState, error) {
	var state engine.WorldState
	if err := c.do("GET", c.sessionURL("state"), nil, &state); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &state, nil
}

func (c *Client) Move(direction string) (*service.MoveResult, error) {
	var result service.MoveResult
	if err := c.do("POST", c.sessionURL("move"), map[string]string{"direction": direction}, &result); err != nil {
		return nil, fmt.Errorf("move %s: %w", direction, err)
	}
	return &result, nil
}

func (c *Client) Take(cellKey string) (*service.ExchangeResult, error) {
	return c.exchange("take", cellKey)
}

func (c *Client) Give(cellKey string) (*service.ExchangeResult, error) {
	return c.exchange("give", cellKey)
}

func (c *Client) exchange(action, cellKey string) (*service.ExchangeResult, error) {
	var result service.ExchangeResult
	if err := c.do("POST", c.sessionURL("caches", cellKey, action), nil, &result); err != nil {
		return nil, fmt.Errorf("%s %s: %w", action, cellKey, err)
	}
	return &result, nil
}

// ResetResponse is the reply to a confirmed reset
type ResetResponse struct {
	Message string             `json:"message"`
	State   *engine.WorldState `json:"state"`
}

func (c *Client) Reset() (*engine.WorldState, error) {
	var resp ResetResponse
	if err := c.do("POST", c.sessionURL("reset"), map[string]bool{"confirm": true}, &resp); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return resp.State, nil
}
