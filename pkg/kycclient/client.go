/**
 * @description
 * This package provides a client for the external KYC/BVN verification
 * provider. It encapsulates the authenticated HTTP call and response parsing.
 * When no provider endpoint is configured it falls back to a deterministic
 * simulation with configurable latency so the rest of the service can be
 * exercised without the upstream.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package kycclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// ErrVerificationFailed reports that the provider rejected the lookup or
// answered in a way the client cannot interpret. It is an infrastructure
// outcome, distinct from a well-formed "not valid" verdict.
var ErrVerificationFailed = errors.New("identity verification failed")

var bvnShape = regexp.MustCompile(`^[0-9]{11}$`)

// Profile is the KYC record returned for a valid identifier.
type Profile struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
}

// Result is the provider's verdict on an identifier.
type Result struct {
	Valid   bool     `json:"valid"`
	Profile *Profile `json:"profile,omitempty"`
}

// Client is a client for the KYC provider. With an empty BaseURL it runs in
// simulation mode: a format check after the configured latency.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	simulatedLatency time.Duration
}

// NewClient creates a new KYC client. simulatedLatency only applies when no
// BaseURL is configured.
func NewClient(baseURL, apiKey string, simulatedLatency time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		simulatedLatency: simulatedLatency,
	}
}

// VerifyIdentity checks the identifier against the provider. The call honors
// ctx: cancellation and deadlines abort the wait with no side effects.
func (c *Client) VerifyIdentity(ctx context.Context, identifier string) (*Result, error) {
	if c.BaseURL == "" {
		return c.simulate(ctx, identifier)
	}

	payload, err := json.Marshal(map[string]string{"bvn": identifier})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrVerificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/bvn/verify", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrVerificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrVerificationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned status %d", ErrVerificationFailed, resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrVerificationFailed, err)
	}
	return &result, nil
}

// simulate stands in for the provider: wait the configured latency, then
// accept any well-formed 11-digit BVN with a canned profile.
func (c *Client) simulate(ctx context.Context, identifier string) (*Result, error) {
	if c.simulatedLatency > 0 {
		timer := time.NewTimer(c.simulatedLatency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if !bvnShape.MatchString(identifier) {
		return &Result{Valid: false}, nil
	}
	return &Result{
		Valid: true,
		Profile: &Profile{
			FirstName:   "John",
			LastName:    "Doe",
			DateOfBirth: "1990-01-01",
		},
	}, nil
}
