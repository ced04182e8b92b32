package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPRegistry queries an external do-not-call registry over REST. Errors
// from Listed mean the registry could not answer; the gatekeeper fails open
// on them and flags the check for review.
type HTTPRegistry struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPRegistry(baseURL, apiKey string) *HTTPRegistry {
	return &HTTPRegistry{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type registryLookupResponse struct {
	Listed bool `json:"listed"`
}

func (r *HTTPRegistry) Listed(ctx context.Context, phoneNumber string) (bool, error) {
	u := r.baseURL + "/v1/numbers/" + url.PathEscape(phoneNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build registry request: %w", err)
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("registry lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Unknown number is not listed.
		return false, nil
	case resp.StatusCode >= 400:
		return false, fmt.Errorf("registry lookup: http %d", resp.StatusCode)
	}

	var out registryLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode registry response: %w", err)
	}
	return out.Listed, nil
}
