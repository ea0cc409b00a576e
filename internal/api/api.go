// Package api calls the chat server's REST surface: token validation for
// route guarding and the generic moderation server actions. The realtime
// session itself lives in the chat package; everything here is plain
// request/response.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raf-os/signalR-client/internal/chat"
)

// Client makes REST calls to the chat server.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a client targeting the given base URL (e.g.
// "http://127.0.0.1:5062"). token is the bearer token attached to server
// actions; it may be empty for unauthenticated calls.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ValidateToken asks the server which authorization level the token grants.
// An invalid or expired token reports LevelGuest with no error; errors are
// reserved for transport and protocol failures.
func (c *Client) ValidateToken(ctx context.Context, token string) (chat.Level, error) {
	body := map[string]string{"loginToken": token}
	var out struct {
		IsValid bool       `json:"isValid"`
		Auth    chat.Level `json:"auth"`
	}
	if err := c.post(ctx, "/api/validateToken", body, &out, false); err != nil {
		return chat.LevelGuest, err
	}
	if !out.IsValid {
		return chat.LevelGuest, nil
	}
	return out.Auth, nil
}

// ActionResponse is the envelope every server action returns.
type ActionResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Action invokes a named server action (POST /api/<endpoint>) with the
// bearer token attached.
func (c *Client) Action(ctx context.Context, endpoint string, payload any) (*ActionResponse, error) {
	var out ActionResponse
	if err := c.post(ctx, "/api/"+endpoint, payload, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any, auth bool) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api: marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth && c.token != "" {
		req.Header.Set("Auth-Token", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: %d %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
