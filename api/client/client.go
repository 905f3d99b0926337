// Package client is a Go client for the scribe HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/scribe/api"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/sse"
)

// StatusError is a non-2xx API response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scribe server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to one scribe server on behalf of one owner.
type Client struct {
	baseURL string
	owner   string
	http    *http.Client
}

// New creates a client. A nil httpClient uses a client without a total
// timeout, since message streams stay open until the reply ends.
func New(baseURL, owner string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		owner:   owner,
		http:    httpClient,
	}
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/ping", nil, nil)
}

// ListSessions returns the owner's sessions, most recently updated first.
func (c *Client) ListSessions(ctx context.Context) (*api.SessionsResponse, error) {
	var out api.SessionsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession creates a session; an empty name lets the server pick one.
func (c *Client) CreateSession(ctx context.Context, name string) (*api.SessionResponse, error) {
	var out api.SessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", api.CreateSessionRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession loads a session. Missing sessions come back empty.
func (c *Client) GetSession(ctx context.Context, name string) (*api.SessionResponse, error) {
	var out api.SessionResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveSession deletes a session.
func (c *Client) RemoveSession(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(name), nil, nil)
}

// Send posts a message to the named session and calls onFragment for every
// streamed fragment. It returns the final done event. Cancelling ctx
// abandons the reply on the server.
func (c *Client) Send(ctx context.Context, name string, msg api.MessageRequest, onFragment func(string)) (*api.DoneEvent, error) {
	req, err := c.newRequest(ctx, http.MethodPost, sessionPath(name)+"/messages", msg)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	reader := sse.NewReader(resp.Body)
	for {
		frame, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("reading reply stream: %w", err)
		}
		if frame == nil {
			return nil, errors.New("reply stream ended without a done event")
		}

		switch {
		case gjson.Get(frame.Data, "fragment").Exists():
			if onFragment != nil {
				onFragment(gjson.Get(frame.Data, "fragment").String())
			}
		case gjson.Get(frame.Data, "incomplete").Exists():
			var done api.DoneEvent
			if err := json.Unmarshal([]byte(frame.Data), &done); err != nil {
				return nil, fmt.Errorf("decoding done event: %w", err)
			}
			return &done, nil
		case gjson.Get(frame.Data, "error").Exists():
			return nil, errors.New(gjson.Get(frame.Data, "error").String())
		}
	}
}

// Attach uploads a document whose text the server adds to the named session.
// provider picks who extracts the text; empty uses the server default.
func (c *Client) Attach(ctx context.Context, name, filename string, doc io.Reader, provider string) (*api.AttachResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if provider != "" {
		if err := mw.WriteField("provider", provider); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, doc); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	path := sessionPath(name) + "/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(api.OwnerHeader, c.owner)

	var out api.AttachResponse
	if err := c.send(req, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Slides asks the server to generate a deck and returns its download URL.
func (c *Client) Slides(ctx context.Context, text string) (string, error) {
	var out api.SlidesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/slides", api.SlidesRequest{Text: text}, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func sessionPath(name string) string {
	return "/v1/sessions/" + url.PathEscape(name)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(api.OwnerHeader, c.owner)
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.send(req, path, out)
}

func (c *Client) send(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var e llm.ErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
