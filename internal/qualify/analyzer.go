package qualify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Analyzer scores a finished call's transcript. A score of 0..100 expresses
// how qualified the lead looks; the reconciler compares it against the
// campaign threshold.
type Analyzer interface {
	Score(ctx context.Context, req ScoreRequest) (ScoreResult, error)
}

type ScoreRequest struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`
	LeadID      string `json:"lead_id"`
	Transcript  string `json:"transcript"`
}

type ScoreResult struct {
	Score   int    `json:"score"`
	Summary string `json:"summary,omitempty"`
}

// HTTPAnalyzer posts transcripts to an external scoring service.
type HTTPAnalyzer struct {
	url  string
	http *http.Client
}

func NewHTTPAnalyzer(url string) *HTTPAnalyzer {
	return &HTTPAnalyzer{url: url, http: &http.Client{Timeout: 30 * time.Second}}
}

func (a *HTTPAnalyzer) Score(ctx context.Context, req ScoreRequest) (ScoreResult, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("encode score request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(buf))
	if err != nil {
		return ScoreResult{}, fmt.Errorf("build score request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("score transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ScoreResult{}, fmt.Errorf("score transcript: status %d: %s", resp.StatusCode, msg)
	}

	var out ScoreResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ScoreResult{}, fmt.Errorf("decode score response: %w", err)
	}
	if out.Score < 0 {
		out.Score = 0
	}
	if out.Score > 100 {
		out.Score = 100
	}
	return out, nil
}

// StaticAnalyzer returns a fixed score, used in tests.
type StaticAnalyzer struct {
	Result ScoreResult
	Err    error
}

func (a StaticAnalyzer) Score(ctx context.Context, req ScoreRequest) (ScoreResult, error) {
	if a.Err != nil {
		return ScoreResult{}, a.Err
	}
	return a.Result, nil
}
