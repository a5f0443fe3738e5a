// Package client talks to a running stacksymd.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/stacksym/stacksym/api"
	"github.com/stacksym/stacksym/api/types"
	"github.com/stacksym/stacksym/pkg/stacktrace"
)

// Client is a stacksymd API client.
type Client struct {
	URL string

	http *http.Client
}

// New creates a client for a daemon reachable at rawURL. A unix:// URL
// connects to the daemon's socket.
func New(rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daemon URL: %w", err)
	}
	c := &Client{
		URL:  strings.TrimSuffix(rawURL, "/") + "/v" + api.DefaultVersion,
		http: &http.Client{},
	}
	if u.Scheme == "unix" {
		socket := u.Path
		c.URL = "http://stacksymd/v" + api.DefaultVersion
		c.http.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
	}
	return c, nil
}

// Ping checks that the daemon is up.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/_ping", "", nil)
	if err != nil {
		return fmt.Errorf("failed to ping stacksymd: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Symbolicate symbolicates an encoded trace, uploading debugInfo when it is not nil.
func (c *Client) Symbolicate(ctx context.Context, trace string, debugInfo []byte) (*stacktrace.SymbolicatedStackTrace, error) {
	contentType, body, err := traceBody(trace, debugInfo)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/symbolicate", contentType, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out stacktrace.SymbolicatedStackTrace
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode symbolicated trace: %w", err)
	}
	return &out, nil
}

// SymCaches lists the symbol cache keys stored by the daemon.
func (c *Client) SymCaches(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/symcache", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out types.SymCacheKeys
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode symbol cache keys: %w", err)
	}
	return out.Keys, nil
}

// DeleteSymCache deletes one key, or every key when key is empty.
func (c *Client) DeleteSymCache(ctx context.Context, key string) error {
	path := "/symcache"
	if key != "" {
		path += "/" + key
	}
	resp, err := c.do(ctx, http.MethodDelete, path, "", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func traceBody(trace string, debugInfo []byte) (string, io.Reader, error) {
	if debugInfo == nil {
		return "text/plain", strings.NewReader(trace), nil
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("trace", trace); err != nil {
		return "", nil, err
	}
	fw, err := mw.CreateFormFile("debuginfo", "debuginfo")
	if err != nil {
		return "", nil, err
	}
	if _, err := fw.Write(debugInfo); err != nil {
		return "", nil, err
	}
	if err := mw.Close(); err != nil {
		return "", nil, err
	}
	return mw.FormDataContentType(), &buf, nil
}

// Error is a non-2xx daemon response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("stacksymd: %s (%d)", e.Message, e.StatusCode)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		var gerr types.GenericError
		if err := json.NewDecoder(resp.Body).Decode(&gerr); err != nil || gerr.Error == "" {
			gerr.Error = resp.Status
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: gerr.Error}
	}
	return resp, nil
}
