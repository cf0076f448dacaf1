package mailman

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

// apiVersion is the REST API version prefix every path is rooted at.
const apiVersion = "/3.0"

// maxErrorBody caps how much of an error response is kept in a StatusError.
const maxErrorBody = 512

// Client is a thin HTTP client for the Mailman 3 core REST API.
// It handles basic authentication and JSON (de)serialization. Requests are
// never retried; a failed call is reported to the caller as is.
type Client struct {
	baseURL    string
	user       string
	pass       string
	httpClient *http.Client
}

// NewClient creates a new Mailman REST client. The baseURL is the root of
// the REST server (e.g., http://localhost:8001) without the version segment.
func NewClient(baseURL, user, pass string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + apiVersion,
		user:    user,
		pass:    pass,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body. Mailman answers
// most mutations with 204 No Content, so result may be nil.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do builds the request, sets auth headers, and maps the response status
// to the typed errors of this package.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.user, c.pass)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Method: method, Path: path, Err: err}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &APIError{Method: method, Path: path, Err: readErr}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("check the REST credentials for %s", c.baseURL),
		}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Path: path}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		text := strings.TrimSpace(string(respBody))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       text,
		}
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}

	return nil
}
