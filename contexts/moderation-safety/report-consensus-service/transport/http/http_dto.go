package http

import "time"

type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Status    string    `json:"status"`
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
}

type FileReportRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason"`
}

type CastVoteRequest struct {
	Vote string `json:"vote"`
}

type AdminDeleteRequest struct {
	Reason string `json:"reason,omitempty"`
}

type AdminBanRequest struct {
	Reason string `json:"reason,omitempty"`
}

type AdminVerdictRequest struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

type ReportResponse struct {
	ReportID     string     `json:"report_id"`
	ReporterID   string     `json:"reporter_id"`
	TargetType   string     `json:"target_type"`
	TargetID     string     `json:"target_id"`
	Reason       string     `json:"reason"`
	Status       string     `json:"status"`
	VotesConfirm int        `json:"votes_confirm"`
	VotesDismiss int        `json:"votes_dismiss"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy   string     `json:"resolved_by,omitempty"`
}

// ResolutionResponse summarizes the side effects applied after a report
// became terminal. FailedSteps lists steps an operator must finish by hand.
type ResolutionResponse struct {
	Removed       bool     `json:"removed"`
	TargetMissing bool     `json:"target_missing"`
	ClosedReports int64    `json:"closed_reports"`
	Banned        bool     `json:"banned"`
	Announced     bool     `json:"announced"`
	FailedSteps   []string `json:"failed_steps,omitempty"`
}

type FileReportResponse struct {
	Report     ReportResponse      `json:"report"`
	Resolution *ResolutionResponse `json:"resolution,omitempty"`
}

type CastVoteResponse struct {
	ReportID     string              `json:"report_id"`
	VotesConfirm int                 `json:"votes_confirm"`
	VotesDismiss int                 `json:"votes_dismiss"`
	Status       string              `json:"status"`
	Resolved     bool                `json:"resolved"`
	Resolution   *ResolutionResponse `json:"resolution,omitempty"`
}

type ListReportsResponse struct {
	Items []ReportResponse `json:"items"`
}

type VoteResponse struct {
	VoterID   string    `json:"voter_id"`
	Vote      string    `json:"vote"`
	CreatedAt time.Time `json:"created_at"`
}

type ListVotesResponse struct {
	ReportID string         `json:"report_id"`
	Items    []VoteResponse `json:"items"`
}

type AdminDeleteResponse struct {
	TargetType string             `json:"target_type"`
	TargetID   string             `json:"target_id"`
	Deleted    bool               `json:"deleted"`
	Resolution ResolutionResponse `json:"resolution"`
}

type BanResponse struct {
	AgentID  string    `json:"agent_id"`
	Reason   string    `json:"reason"`
	BannedBy string    `json:"banned_by"`
	BannedAt time.Time `json:"banned_at"`
}

type AdminBanResponse struct {
	Ban       BanResponse `json:"ban"`
	Announced bool        `json:"announced"`
}

type AdminUnbanResponse struct {
	AgentID  string `json:"agent_id"`
	Unbanned bool   `json:"unbanned"`
}

type ListBansResponse struct {
	Items []BanResponse `json:"items"`
}

type AdminVerdictResponse struct {
	Report     ReportResponse      `json:"report"`
	Resolution *ResolutionResponse `json:"resolution,omitempty"`
}
