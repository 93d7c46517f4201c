// Package apiclient is the authenticated HTTP client for the StoryForge
// REST API. Failures are classified: a *StatusError means the server
// answered with a non-2xx status; any other error is a transport
// failure (timeout, refused connection, reset). The autosave engine
// folds both into one retry path.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenProvider supplies the bearer token for each request. It may
// refresh under the hood; the client does not.
type TokenProvider func(ctx context.Context) (string, error)

type Options struct {
	BaseURL       string
	TokenProvider TokenProvider
	HTTPClient    *http.Client
	Timeout       time.Duration
	UserAgent     string
}

type Client struct {
	baseURL       string
	tokenProvider TokenProvider
	httpClient    *http.Client
	userAgent     string
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d message=%s", e.Status, e.Message)
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8790/api"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:       baseURL,
		tokenProvider: opts.TokenProvider,
		httpClient:    httpClient,
		userAgent:     strings.TrimSpace(opts.UserAgent),
	}
}

// StorySummary is one row of the story list.
type StorySummary struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Progress  map[string]int `json:"progress"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Credentials is the signin/refresh response.
type Credentials struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
}

// SignIn exchanges email/password for tokens. It does not use the token
// provider.
func (c *Client) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/auth/signin", map[string]any{
		"email":    email,
		"password": password,
	}, &creds, false)
	return creds, err
}

// Refresh exchanges a refresh token for a fresh token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]any{
		"refreshToken": refreshToken,
	}, &creds, false)
	return creds, err
}

// PutStory persists a save payload. The body is the payload as-is; the
// server merges it into the stored document. Any 2xx is success and the
// response body is ignored beyond acknowledgement.
func (c *Client) PutStory(ctx context.Context, storyID string, payload map[string]any) error {
	return c.do(ctx, http.MethodPut, "/stories/"+storyID, payload, nil, true)
}

// GetStory hydrates the full story document.
func (c *Client) GetStory(ctx context.Context, storyID string) (map[string]any, error) {
	var doc map[string]any
	if err := c.do(ctx, http.MethodGet, "/stories/"+storyID, nil, &doc, true); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) ListStories(ctx context.Context) ([]StorySummary, error) {
	var out struct {
		Stories []StorySummary `json:"stories"`
	}
	if err := c.do(ctx, http.MethodGet, "/stories", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Stories, nil
}

func (c *Client) CreateStory(ctx context.Context, title string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/stories", map[string]any{"title": title}, &out, true)
	return out.ID, err
}

func (c *Client) DeleteStory(ctx context.Context, storyID string) error {
	return c.do(ctx, http.MethodDelete, "/stories/"+storyID, nil, nil, true)
}

// ExportStory downloads an export in the given format (pdf, docx, html, json).
func (c *Client) ExportStory(ctx context.Context, storyID, format string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/stories/"+storyID+"/export?format="+format, nil, true)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", statusError(resp.StatusCode, body)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, target any, authed bool) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, path, body, authed)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, respBody)
	}
	if target != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, authed bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if authed && c.tokenProvider != nil {
		token, err := c.tokenProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("token provider: %w", err)
		}
		if strings.TrimSpace(token) != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func statusError(status int, body []byte) *StatusError {
	serr := &StatusError{Status: status, Message: strings.TrimSpace(string(body))}
	var parsed struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Code != "" {
			serr.Code = parsed.Code
		}
		if strings.TrimSpace(parsed.Error) != "" {
			serr.Message = parsed.Error
		}
	}
	return serr
}
