package postgresadapter

import (
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
)

type reportModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	ReporterID   string     `gorm:"column:reporter_id;not null;uniqueIndex:idx_reports_open_per_reporter,where:status = 'pending'"`
	TargetType   string     `gorm:"column:target_type;not null;index:idx_reports_target;uniqueIndex:idx_reports_open_per_reporter,where:status = 'pending'"`
	TargetID     string     `gorm:"column:target_id;not null;index:idx_reports_target;uniqueIndex:idx_reports_open_per_reporter,where:status = 'pending'"`
	Reason       string     `gorm:"column:reason;not null"`
	Status       string     `gorm:"column:status;not null;index:idx_reports_status_rank"`
	VotesConfirm int        `gorm:"column:votes_confirm;not null;default:0;index:idx_reports_status_rank"`
	VotesDismiss int        `gorm:"column:votes_dismiss;not null;default:0"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at"`
	ResolvedBy   *string    `gorm:"column:resolved_by"`
}

func (reportModel) TableName() string {
	return "reports"
}

// voteModel's composite primary key is the one-vote-per-participant rule.
type voteModel struct {
	ReportID  string    `gorm:"column:report_id;primaryKey"`
	VoterID   string    `gorm:"column:voter_id;primaryKey"`
	Vote      string    `gorm:"column:vote;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (voteModel) TableName() string {
	return "report_votes"
}

type bannedAgentModel struct {
	AgentID  string    `gorm:"column:agent_id;primaryKey"`
	Reason   string    `gorm:"column:reason"`
	BannedBy string    `gorm:"column:banned_by"`
	BannedAt time.Time `gorm:"column:banned_at;not null"`
}

func (bannedAgentModel) TableName() string {
	return "banned_agents"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	ClaimedBy    string     `gorm:"column:claimed_by"`
	ClaimedUntil *time.Time `gorm:"column:claimed_until;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "moderation_outbox"
}

// Models lists the tables owned by the engine, in migration order.
func Models() []any {
	return []any{&reportModel{}, &voteModel{}, &bannedAgentModel{}, &outboxModel{}}
}

func reportModelFromEntity(report entities.Report) reportModel {
	row := reportModel{
		ID:           report.ReportID,
		ReporterID:   report.ReporterID,
		TargetType:   string(report.TargetType),
		TargetID:     report.TargetID,
		Reason:       report.Reason,
		Status:       string(report.Status),
		VotesConfirm: report.VotesConfirm,
		VotesDismiss: report.VotesDismiss,
		CreatedAt:    report.CreatedAt.UTC(),
	}
	if report.ResolvedAt != nil {
		resolvedAt := report.ResolvedAt.UTC()
		row.ResolvedAt = &resolvedAt
	}
	if report.ResolvedBy != "" {
		resolvedBy := report.ResolvedBy
		row.ResolvedBy = &resolvedBy
	}
	return row
}

func (m reportModel) toEntity() entities.Report {
	report := entities.Report{
		ReportID:     m.ID,
		ReporterID:   m.ReporterID,
		TargetType:   entities.TargetType(m.TargetType),
		TargetID:     m.TargetID,
		Reason:       m.Reason,
		Status:       entities.ReportStatus(m.Status),
		VotesConfirm: m.VotesConfirm,
		VotesDismiss: m.VotesDismiss,
		CreatedAt:    m.CreatedAt.UTC(),
	}
	if m.ResolvedAt != nil {
		resolvedAt := m.ResolvedAt.UTC()
		report.ResolvedAt = &resolvedAt
	}
	if m.ResolvedBy != nil {
		report.ResolvedBy = *m.ResolvedBy
	}
	return report
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		ReportID:  m.ReportID,
		VoterID:   m.VoterID,
		Choice:    entities.VoteChoice(m.Vote),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func (m bannedAgentModel) toEntity() entities.BannedAgent {
	return entities.BannedAgent{
		AgentID:  m.AgentID,
		Reason:   m.Reason,
		BannedBy: m.BannedBy,
		BannedAt: m.BannedAt.UTC(),
	}
}
