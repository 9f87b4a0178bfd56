package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrStatus is returned for responses outside the expected status codes.
var ErrStatus = errors.New("unexpected status")

// apiClient talks to the control API.
type apiClient struct {
	base   string
	client *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{base: base, client: &http.Client{Timeout: timeout}}
}

// do sends body as JSON and decodes the response into out when the status
// is one of ok.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any, ok ...int) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	for _, code := range ok {
		if resp.StatusCode == code {
			if out == nil {
				return resp.StatusCode, nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
			}
			return resp.StatusCode, nil
		}
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return resp.StatusCode, fmt.Errorf("%w %d from %s %s: %s", ErrStatus, resp.StatusCode, method, path, bytes.TrimSpace(msg))
}

func (c *apiClient) health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
	return err
}

// signup registers p; an existing account is fine.
func (c *apiClient) signup(ctx context.Context, p Player) error {
	body := map[string]string{"userId": p.UserID, "password": p.Password, "address": p.Address}
	_, err := c.do(ctx, http.MethodPost, "/signup", body, nil, http.StatusCreated, http.StatusConflict)
	return err
}

func (c *apiClient) startEvent(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/event/start", map[string]string{"sessionId": sessionID}, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (c *apiClient) endEvent(ctx context.Context) (*Winner, error) {
	var out struct {
		Winner *Winner `json:"winner"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/event/end", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Winner, nil
}

func (c *apiClient) leaderboard(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	q := url.Values{}
	q.Set("session", sessionID)
	q.Set("limit", strconv.Itoa(limit))
	var out struct {
		Leaderboard []Entry `json:"leaderboard"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/event/leaderboard?"+q.Encode(), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Leaderboard, nil
}
