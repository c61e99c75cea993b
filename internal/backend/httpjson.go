package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBody bounds how much of a provider response is read.
const maxResponseBody = 32 << 20

// NewHTTPClient returns the client adapters use when none is injected.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
}

// Do sends req and returns the response headers and body. Non-2xx responses
// are returned as errors that include the status and body.
func Do(client *http.Client, req *http.Request) (http.Header, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, Truncate(string(body), 512))
	}

	return resp.Header, body, nil
}

// DoJSON sends req and decodes the JSON response body into out.
func DoJSON(client *http.Client, req *http.Request, out any) (http.Header, error) {
	header, body, err := Do(client, req)
	if err != nil {
		return nil, err
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
	}
	return header, nil
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
