package reporting

import (
	"context"
	"errors"
	"fmt"

	"dialer-platform/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

const defaultQualifiedThreshold = 70

// Repository is the slice of call storage reporting needs.
type Repository interface {
	ListByCampaign(ctx context.Context, workspaceID, campaignID string) ([]calls.CallRecord, error)
}

// Service computes campaign statistics from stored call records.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CampaignSummary recomputes the summary from the campaign's call records.
func (s *Service) CampaignSummary(ctx context.Context, req SummaryRequest) (CampaignSummary, error) {
	if req.WorkspaceID == "" {
		return CampaignSummary{}, fmt.Errorf("%w: workspace id required", ErrInvalidRequest)
	}
	if req.CampaignID == "" {
		return CampaignSummary{}, fmt.Errorf("%w: campaign id required", ErrInvalidRequest)
	}
	threshold := req.QualifiedScoreThreshold
	if threshold <= 0 {
		threshold = defaultQualifiedThreshold
	}

	records, err := s.repo.ListByCampaign(ctx, req.WorkspaceID, req.CampaignID)
	if err != nil {
		return CampaignSummary{}, fmt.Errorf("list campaign calls: %w", err)
	}

	summary := CampaignSummary{
		WorkspaceID: req.WorkspaceID,
		CampaignID:  req.CampaignID,
	}
	for _, rec := range records {
		summary.TotalCalls++
		summary.TotalDurationSeconds += rec.DurationSeconds
		summary.TotalCostMinor += rec.CostMinor

		switch rec.Outcome {
		case calls.OutcomeAnswered:
			summary.AnsweredCalls++
		case calls.OutcomeCompleted:
			summary.CompletedCalls++
		case calls.OutcomeQuickHangup:
			summary.QuickHangups++
		case calls.OutcomeNoAnswer:
			summary.NoAnswerCalls++
		case calls.OutcomeBusy:
			summary.BusyCalls++
		case calls.OutcomeVoicemail:
			summary.VoicemailCalls++
		case calls.OutcomeFailed, calls.OutcomeProviderError, calls.OutcomeSystemError, calls.OutcomeConfigurationError:
			summary.ErrorCalls++
		}

		if rec.QualificationScore != nil && *rec.QualificationScore >= threshold {
			summary.QualifiedLeads++
		}
	}

	if summary.TotalCalls > 0 {
		summary.AverageDurationSeconds = summary.TotalDurationSeconds / summary.TotalCalls
		connected := summary.AnsweredCalls + summary.CompletedCalls + summary.QuickHangups
		summary.AnswerRate = float64(connected) / float64(summary.TotalCalls)
	}
	return summary, nil
}
