package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VapiClient talks to the Vapi REST API. One client serves all workspaces;
// per-workspace API keys override the platform key when present.
type VapiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client

	// KeyForWorkspace returns a workspace-specific API key, empty for the
	// platform default. Optional.
	KeyForWorkspace func(ctx context.Context, workspaceID string) (string, error)
}

func NewVapiClient(baseURL, apiKey string) *VapiClient {
	return &VapiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *VapiClient) Name() string { return "vapi" }

type vapiCallRequest struct {
	AssistantID   string            `json:"assistantId"`
	PhoneNumberID string            `json:"phoneNumberId"`
	Customer      vapiCustomer      `json:"customer"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type vapiCustomer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type vapiCallResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *VapiClient) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	body := vapiCallRequest{
		AssistantID:   req.AssistantID,
		PhoneNumberID: req.FromLineID,
		Customer:      vapiCustomer{Number: req.ToNumber, Name: req.LeadName},
		Metadata: map[string]string{
			"workspace_id":  req.WorkspaceID,
			"campaign_id":   req.CampaignID,
			"queue_item_id": req.QueueItemID,
		},
	}

	var resp vapiCallResponse
	if err := c.do(ctx, http.MethodPost, "/call", req.WorkspaceID, body, &resp); err != nil {
		return PlaceCallResult{}, err
	}
	started := resp.CreatedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	return PlaceCallResult{ProviderCallID: resp.ID, StartedAt: started}, nil
}

type vapiCallDetail struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	EndedReason  string     `json:"endedReason"`
	Cost         float64    `json:"cost"`
	Transcript   string     `json:"transcript"`
	RecordingURL string     `json:"recordingUrl"`
	StartedAt    *time.Time `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt"`
}

func (c *VapiClient) GetCall(ctx context.Context, workspaceID, providerCallID string) (CallInfo, error) {
	var d vapiCallDetail
	if err := c.do(ctx, http.MethodGet, "/call/"+providerCallID, workspaceID, nil, &d); err != nil {
		return CallInfo{}, err
	}

	info := CallInfo{
		ProviderCallID: d.ID,
		Status:         d.Status,
		EndedReason:    d.EndedReason,
		CostMinor:      int64(d.Cost * 100),
		Transcript:     d.Transcript,
		RecordingURL:   d.RecordingURL,
		StartedAt:      d.StartedAt,
		EndedAt:        d.EndedAt,
	}
	if d.StartedAt != nil && d.EndedAt != nil {
		info.DurationSeconds = int(d.EndedAt.Sub(*d.StartedAt).Seconds())
	}
	return info, nil
}

func (c *VapiClient) do(ctx context.Context, method, path, workspaceID string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode vapi request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build vapi request: %w", err)
	}

	key := c.apiKey
	if c.KeyForWorkspace != nil {
		wk, err := c.KeyForWorkspace(ctx, workspaceID)
		if err != nil {
			return fmt.Errorf("resolve workspace api key: %w", err)
		}
		if wk != "" {
			key = wk
		}
	}
	req.Header.Set("Authorization", "Bearer "+key)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &PlacementError{Code: "network", Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode vapi response: %w", err)
		}
	}
	return nil
}

func classifyStatus(status int, msg string) error {
	code := fmt.Sprintf("http_%d", status)
	switch {
	case status == http.StatusTooManyRequests:
		return &PlacementError{Code: "rate_limited", Message: msg, Transient: true}
	case status >= 500:
		return &PlacementError{Code: code, Message: msg, Transient: true}
	default:
		return &PlacementError{Code: code, Message: msg, Transient: false}
	}
}
