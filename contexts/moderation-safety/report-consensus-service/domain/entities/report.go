package entities

import (
	"strings"
	"time"
)

type TargetType string

const (
	TargetTypePost      TargetType = "post"
	TargetTypeSkill     TargetType = "skill"
	TargetTypeKnowledge TargetType = "knowledge"
	TargetTypeAgent     TargetType = "agent"
)

// ParseTargetType accepts the canonical kinds plus the knowledge-entry
// spellings clients have historically sent.
func ParseTargetType(raw string) (TargetType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "post":
		return TargetTypePost, true
	case "skill":
		return TargetTypeSkill, true
	case "knowledge", "knowledge-entry", "knowledge_entry":
		return TargetTypeKnowledge, true
	case "agent":
		return TargetTypeAgent, true
	default:
		return "", false
	}
}

func (t TargetType) Valid() bool {
	switch t {
	case TargetTypePost, TargetTypeSkill, TargetTypeKnowledge, TargetTypeAgent:
		return true
	default:
		return false
	}
}

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusConfirmed ReportStatus = "confirmed"
	ReportStatusDismissed ReportStatus = "dismissed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusPending, ReportStatusConfirmed, ReportStatusDismissed:
		return true
	default:
		return false
	}
}

func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusConfirmed || s == ReportStatusDismissed
}

type VoteChoice string

const (
	VoteChoiceConfirm VoteChoice = "confirm"
	VoteChoiceDismiss VoteChoice = "dismiss"

	// VoteChoiceInvalid stands in for any unrecognised choice where a
	// bounded value is needed, such as a metric label.
	VoteChoiceInvalid VoteChoice = "invalid"
)

func (c VoteChoice) Valid() bool {
	return c == VoteChoiceConfirm || c == VoteChoiceDismiss
}

type Report struct {
	ReportID     string
	ReporterID   string
	TargetType   TargetType
	TargetID     string
	Reason       string
	Status       ReportStatus
	VotesConfirm int
	VotesDismiss int
	CreatedAt    time.Time
	ResolvedAt   *time.Time
	ResolvedBy   string
}

// Vote is append-only; (ReportID, VoterID) is unique.
type Vote struct {
	ReportID  string
	VoterID   string
	Choice    VoteChoice
	CreatedAt time.Time
}

type BannedAgent struct {
	AgentID  string
	Reason   string
	BannedBy string
	BannedAt time.Time
}

// Participant is the caller identity resolved at the transport boundary.
type Participant struct {
	ID       string
	IsAdmin  bool
	IsBanned bool
}

// CanModerate gates the administrative override path.
func (p Participant) CanModerate() bool {
	return strings.TrimSpace(p.ID) != "" && p.IsAdmin && !p.IsBanned
}

func (p Participant) CanMutate() bool {
	return strings.TrimSpace(p.ID) != "" && !p.IsBanned
}
