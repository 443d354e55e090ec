package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AntoineXev/miniorg/internal/provider"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// client is a thin HTTP client for the Microsoft Graph calendar surface.
// It handles Bearer token authentication and JSON (de)serialization;
// non-2xx responses become ProviderError values.
type client struct {
	httpClient *http.Client
}

func newClient() *client {
	return &client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do builds the request, attaches auth, and decodes the JSON response
// into result when result is non-nil.
func (c *client) do(
	ctx context.Context,
	method, path, accessToken string,
	body interface{},
	result interface{},
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, graphBaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &provider.ProviderError{
			Provider: "outlook",
			Status:   resp.StatusCode,
			Body:     string(respBody),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response from %s: %w", path, err)
		}
	}

	return nil
}
