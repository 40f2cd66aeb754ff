package offline

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

// APIError is a definitive response from the order API. The server was
// reached and rejected the request, so the submission is not retryable
// the way an unreachable server is.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order api: status %d: %s", e.Status, e.Body)
}

// Permanent reports whether the rejection is a client error that
// retrying the same payload cannot fix.
func (e *APIError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500
}

// APIClient talks to the POS order API over HTTP.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type createOrderResponse struct {
	OrderNumber string `json:"order_number"`
	OrderUUID   string `json:"order_uuid"`
}

// CreateOrder posts an order submission and returns the server-assigned
// order number. A non-2xx response yields *APIError; transport errors
// come back as-is.
func (c *APIClient) CreateOrder(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out createOrderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode create order response: %w", err)
	}
	if out.OrderNumber == "" {
		return "", fmt.Errorf("create order response missing order_number")
	}
	return out.OrderNumber, nil
}
