package reporting

// CampaignSummary aggregates a campaign's call records. It is always
// recomputed from the immutable records, never incremented in place, so a
// redelivered outcome event can never skew the numbers.
type CampaignSummary struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`

	TotalCalls     int `json:"total_calls"`
	AnsweredCalls  int `json:"answered_calls"`
	CompletedCalls int `json:"completed_calls"`
	QuickHangups   int `json:"quick_hangups"`
	NoAnswerCalls  int `json:"no_answer_calls"`
	BusyCalls      int `json:"busy_calls"`
	VoicemailCalls int `json:"voicemail_calls"`
	ErrorCalls     int `json:"error_calls"`

	QualifiedLeads int `json:"qualified_leads"`

	TotalDurationSeconds   int   `json:"total_duration_seconds"`
	AverageDurationSeconds int   `json:"average_duration_seconds"`
	TotalCostMinor         int64 `json:"total_cost_minor"`

	AnswerRate float64 `json:"answer_rate"`
}

// SummaryRequest scopes a summary query.
type SummaryRequest struct {
	WorkspaceID string
	CampaignID  string
	// QualifiedScoreThreshold counts records at or above it as qualified;
	// zero uses the platform default.
	QualifiedScoreThreshold int
}
