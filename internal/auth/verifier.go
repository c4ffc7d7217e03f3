// Package auth verifies caller identity before a query enters the pipeline.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finsight/orchestrator/internal/domain"
)

// Identity is the verified caller.
type Identity struct {
	UserID string `json:"user_id"`
}

// Verifier resolves a bearer token to an identity.
// Returns domain.ErrAuthRequired when the token is missing or rejected.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// HTTPVerifier validates tokens against an external session service.
type HTTPVerifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPVerifier creates a verifier backed by the session service at endpoint.
func NewHTTPVerifier(endpoint string) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Verify implements Verifier.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, domain.ErrAuthRequired
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"/v1/session/verify", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var id Identity
		if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
			return nil, fmt.Errorf("failed to decode session response: %w", err)
		}
		if id.UserID == "" {
			return nil, domain.ErrAuthRequired
		}
		return &id, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrAuthRequired

	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("session service returned status %d: %s", resp.StatusCode, string(body))
	}
}

// StaticVerifier accepts any non-empty token and treats it as the user ID.
// Used in mock mode and tests.
type StaticVerifier struct{}

// Verify implements Verifier.
func (StaticVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, domain.ErrAuthRequired
	}
	return &Identity{UserID: token}, nil
}
