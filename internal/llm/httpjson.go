package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed reply ends up in an error message
const maxErrorBody = 512

// StatusError is a non-200 reply from a provider API
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// apiCall describes one JSON request to a provider's HTTP API
type apiCall struct {
	method string
	url    string
	header http.Header
	body   any // nil sends no body

	// errorMessage extracts the provider's message from a failed reply;
	// an empty result falls back to the raw body
	errorMessage func([]byte) string
}

// doJSON performs call and decodes a 200 reply into out (which may be nil)
func doJSON(ctx context.Context, client *http.Client, call apiCall, out any) error {
	var reader io.Reader
	if call.body != nil {
		data, err := json.Marshal(call.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, call.method, call.url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for key, values := range call.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if call.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if call.errorMessage != nil {
			msg = call.errorMessage(respBody)
		}
		if msg == "" {
			msg = truncate(string(respBody), maxErrorBody)
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
