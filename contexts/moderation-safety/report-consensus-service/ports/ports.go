package ports

import (
	"context"
	"encoding/json"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Transition is the consensus decision applied to a report in the same
// atomic unit as the vote that produced it.
type Transition struct {
	Status     entities.ReportStatus
	ResolvedBy string
	ResolvedAt time.Time
	Event      *EventEnvelope
}

// Evaluator is invoked by the repository while it still holds the report's
// write lock, with the post-increment tallies. Returning false leaves the
// report untouched.
type Evaluator func(report entities.Report) (Transition, bool)

type VoteOutcome struct {
	Report entities.Report
	// Tipped is true for exactly one caller per report: the one whose
	// write moved it from pending to a terminal status.
	Tipped bool
}

type ReportFilter struct {
	Status entities.ReportStatus
	Limit  int
}

type CascadeInput struct {
	TargetType      entities.TargetType
	TargetID        string
	ExcludeReportID string
	ResolvedBy      string
	ResolvedAt      time.Time
}

type ReportRepository interface {
	// CreateReport stores the report and the reporter's seed vote as one unit.
	CreateReport(ctx context.Context, report entities.Report, seed entities.Vote, evaluate Evaluator) (VoteOutcome, error)
	// RecordVote inserts the vote, increments the matching counter and runs
	// evaluate under one lock. Fails with ErrAlreadyResolved, ErrDuplicateVote
	// or ErrReportNotFound.
	RecordVote(ctx context.Context, vote entities.Vote, evaluate Evaluator) (VoteOutcome, error)
	// ApplyVerdict moves a pending report to a terminal status without voting.
	ApplyVerdict(ctx context.Context, reportID string, transition Transition) (entities.Report, error)
	// ResolvePendingForTarget confirms every other pending report on the target.
	ResolvePendingForTarget(ctx context.Context, input CascadeInput) (int64, error)
	GetReport(ctx context.Context, reportID string) (entities.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]entities.Report, error)
	ListVotes(ctx context.Context, reportID string) ([]entities.Vote, error)
}

type BanRepository interface {
	UpsertBan(ctx context.Context, ban entities.BannedAgent, event *EventEnvelope) (entities.BannedAgent, error)
	DeleteBan(ctx context.Context, agentID string) error
	GetBan(ctx context.Context, agentID string) (entities.BannedAgent, bool, error)
	ListBans(ctx context.Context, limit int) ([]entities.BannedAgent, error)
}

// ContentStore is the interface every owning store (posts, skills,
// knowledge, agents) exposes to the engine.
type ContentStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Delete is idempotent: deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	Label(ctx context.Context, id string) (string, error)
}

type AnnouncementSink interface {
	Publish(ctx context.Context, authorID string, text string, kind string) error
}

// ParticipantDirectory answers the identity questions the engine needs for
// an already-authenticated subject.
type ParticipantDirectory interface {
	LookupParticipant(ctx context.Context, participantID string) (entities.Participant, error)
}

type ParticipantResolver interface {
	ResolveParticipant(ctx context.Context, credential string) (entities.Participant, error)
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxClaim leases up to Limit pending rows to Owner until Now+Lease. A
// row held by an unexpired lease is skipped by every other claimant.
type OutboxClaim struct {
	Owner string
	Limit int
	Now   time.Time
	Lease time.Duration
}

type OutboxRepository interface {
	ClaimPendingOutbox(ctx context.Context, claim OutboxClaim) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Metrics interface {
	ReportFiled(targetType entities.TargetType)
	VoteCast(choice entities.VoteChoice, outcome string)
	ReportResolved(status entities.ReportStatus, via string)
	ExecutorStepFailed(step string)
}
