package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateReport(
	ctx context.Context,
	report entities.Report,
	seed entities.Vote,
	evaluate ports.Evaluator,
) (ports.VoteOutcome, error) {
	var outcome ports.VoteOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&reportModel{}).
			Where("reporter_id = ? AND target_type = ? AND target_id = ? AND status = ?",
				report.ReporterID, string(report.TargetType), report.TargetID, string(entities.ReportStatusPending)).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return domainerrors.ErrDuplicateReport
		}

		row := reportModelFromEntity(report)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateReport
			}
			return err
		}
		vote := voteModel{
			ReportID:  seed.ReportID,
			VoterID:   seed.VoterID,
			Vote:      string(seed.Choice),
			CreatedAt: seed.CreatedAt.UTC(),
		}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}

		var evalErr error
		outcome, evalErr = evaluateLocked(tx, report.ReportID, evaluate)
		return evalErr
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateReport) {
			return ports.VoteOutcome{}, err
		}
		return ports.VoteOutcome{}, r.logError("moderation_repo_create_report_failed", err,
			"report_id", report.ReportID,
			"reporter_id", report.ReporterID,
			"target_type", string(report.TargetType),
			"target_id", report.TargetID,
		)
	}
	return outcome, nil
}

// RecordVote moves the tally with a conditional update guarded on the pending
// status. Concurrent voters on one report serialize on that row, and a voter
// that arrives after the flip matches no row and gets ErrAlreadyResolved.
func (r *Repository) RecordVote(ctx context.Context, vote entities.Vote, evaluate ports.Evaluator) (ports.VoteOutcome, error) {
	column, ok := counterColumn(vote.Choice)
	if !ok {
		return ports.VoteOutcome{}, domainerrors.ErrInvalidVote
	}
	reportID := strings.TrimSpace(vote.ReportID)

	var outcome ports.VoteOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&reportModel{}).
			Where("id = ? AND status = ?", reportID, string(entities.ReportStatusPending)).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1))
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			if _, err := loadReport(tx, reportID); err != nil {
				return err
			}
			return domainerrors.ErrAlreadyResolved
		}

		row := voteModel{
			ReportID:  reportID,
			VoterID:   strings.TrimSpace(vote.VoterID),
			Vote:      string(vote.Choice),
			CreatedAt: vote.CreatedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateVote
			}
			return err
		}

		var evalErr error
		outcome, evalErr = evaluateLocked(tx, reportID, evaluate)
		return evalErr
	})
	if err != nil {
		if isDomainOutcome(err) {
			return ports.VoteOutcome{}, err
		}
		return ports.VoteOutcome{}, r.logError("moderation_repo_record_vote_failed", err,
			"report_id", reportID,
			"voter_id", strings.TrimSpace(vote.VoterID),
		)
	}
	return outcome, nil
}

func (r *Repository) ApplyVerdict(ctx context.Context, reportID string, transition ports.Transition) (entities.Report, error) {
	reportID = strings.TrimSpace(reportID)
	var report entities.Report
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := applyTransition(tx, reportID, transition)
		if err != nil {
			return err
		}
		if !applied {
			if _, err := loadReport(tx, reportID); err != nil {
				return err
			}
			return domainerrors.ErrAlreadyResolved
		}
		report, err = loadReport(tx, reportID)
		return err
	})
	if err != nil {
		if isDomainOutcome(err) {
			return entities.Report{}, err
		}
		return entities.Report{}, r.logError("moderation_repo_apply_verdict_failed", err, "report_id", reportID)
	}
	return report, nil
}

func (r *Repository) ResolvePendingForTarget(ctx context.Context, input ports.CascadeInput) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&reportModel{}).
		Where("target_type = ? AND target_id = ? AND status = ?",
			string(input.TargetType), input.TargetID, string(entities.ReportStatusPending))
	if strings.TrimSpace(input.ExcludeReportID) != "" {
		tx = tx.Where("id <> ?", strings.TrimSpace(input.ExcludeReportID))
	}
	result := tx.Updates(map[string]any{
		"status":      string(entities.ReportStatusConfirmed),
		"resolved_at": input.ResolvedAt.UTC(),
		"resolved_by": input.ResolvedBy,
	})
	if result.Error != nil {
		return 0, r.logError("moderation_repo_cascade_failed", result.Error,
			"target_type", string(input.TargetType),
			"target_id", input.TargetID,
		)
	}
	return result.RowsAffected, nil
}

func (r *Repository) GetReport(ctx context.Context, reportID string) (entities.Report, error) {
	report, err := loadReport(r.db.WithContext(ctx), strings.TrimSpace(reportID))
	if err != nil {
		if errors.Is(err, domainerrors.ErrReportNotFound) {
			return entities.Report{}, err
		}
		return entities.Report{}, r.logError("moderation_repo_get_report_failed", err, "report_id", reportID)
	}
	return report, nil
}

func (r *Repository) ListReports(ctx context.Context, filter ports.ReportFilter) ([]entities.Report, error) {
	tx := r.db.WithContext(ctx).Model(&reportModel{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	var rows []reportModel
	if err := tx.Order("votes_confirm DESC").
		Order("created_at DESC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("moderation_repo_list_reports_failed", err, "status", string(filter.Status))
	}
	items := make([]entities.Report, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListVotes(ctx context.Context, reportID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("report_id = ?", strings.TrimSpace(reportID)).
		Order("created_at ASC").
		Order("voter_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("moderation_repo_list_votes_failed", err, "report_id", reportID)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) UpsertBan(ctx context.Context, ban entities.BannedAgent, event *ports.EventEnvelope) (entities.BannedAgent, error) {
	row := bannedAgentModel{
		AgentID:  strings.TrimSpace(ban.AgentID),
		Reason:   ban.Reason,
		BannedBy: ban.BannedBy,
		BannedAt: ban.BannedAt.UTC(),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "agent_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"reason":    row.Reason,
				"banned_by": row.BannedBy,
				"banned_at": row.BannedAt,
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		return appendOutbox(tx, *event)
	})
	if err != nil {
		return entities.BannedAgent{}, r.logError("moderation_repo_upsert_ban_failed", err, "agent_id", row.AgentID)
	}
	return row.toEntity(), nil
}

func (r *Repository) DeleteBan(ctx context.Context, agentID string) error {
	result := r.db.WithContext(ctx).
		Where("agent_id = ?", strings.TrimSpace(agentID)).
		Delete(&bannedAgentModel{})
	if result.Error != nil {
		return r.logError("moderation_repo_delete_ban_failed", result.Error, "agent_id", agentID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrBanNotFound
	}
	return nil
}

func (r *Repository) GetBan(ctx context.Context, agentID string) (entities.BannedAgent, bool, error) {
	var row bannedAgentModel
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", strings.TrimSpace(agentID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.BannedAgent{}, false, nil
		}
		return entities.BannedAgent{}, false, r.logError("moderation_repo_get_ban_failed", err, "agent_id", agentID)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListBans(ctx context.Context, limit int) ([]entities.BannedAgent, error) {
	tx := r.db.WithContext(ctx).Model(&bannedAgentModel{})
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []bannedAgentModel
	if err := tx.Order("banned_at DESC").Order("agent_id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("moderation_repo_list_bans_failed", err)
	}
	items := make([]entities.BannedAgent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// ListPendingOutbox returns unpublished rows in write order without claiming
// them.
func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Order("outbox_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("moderation_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	return outboxMessages(rows), nil
}

// ClaimPendingOutbox leases pending rows to one relay. Candidate rows are
// read with SKIP LOCKED and each lease is taken by a conditional update, so
// concurrent relays over the same table never receive the same row while a
// lease is live.
func (r *Repository) ClaimPendingOutbox(ctx context.Context, claim ports.OutboxClaim) ([]ports.OutboxMessage, error) {
	limit := claim.Limit
	if limit <= 0 {
		limit = 100
	}
	now := claim.Now.UTC()
	until := now.Add(claim.Lease)

	var claimed []outboxModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []outboxModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", outboxStatusPending).
			Where("(claimed_until IS NULL OR claimed_until <= ?)", now).
			Order("created_at ASC").
			Order("outbox_id ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			result := tx.Model(&outboxModel{}).
				Where("outbox_id = ? AND status = ?", row.OutboxID, outboxStatusPending).
				Where("(claimed_until IS NULL OR claimed_until <= ?)", now).
				Updates(map[string]any{
					"claimed_by":    claim.Owner,
					"claimed_until": until,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				claimed = append(claimed, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, r.logError("moderation_repo_claim_outbox_failed", err,
			"owner", claim.Owner,
			"limit", limit,
		)
	}
	return outboxMessages(claimed), nil
}

func outboxMessages(rows []outboxModel) []ports.OutboxMessage {
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("moderation_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidRequest
	}
	return nil
}

// evaluateLocked re-reads the report under a row lock inside the caller's
// transaction and applies the evaluator's transition if it asks for one.
func evaluateLocked(tx *gorm.DB, reportID string, evaluate ports.Evaluator) (ports.VoteOutcome, error) {
	var row reportModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", reportID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.VoteOutcome{}, domainerrors.ErrReportNotFound
		}
		return ports.VoteOutcome{}, err
	}
	report := row.toEntity()
	if evaluate == nil {
		return ports.VoteOutcome{Report: report}, nil
	}
	transition, ok := evaluate(report)
	if !ok {
		return ports.VoteOutcome{Report: report}, nil
	}
	applied, err := applyTransition(tx, reportID, transition)
	if err != nil {
		return ports.VoteOutcome{}, err
	}
	if !applied {
		return ports.VoteOutcome{}, domainerrors.ErrAlreadyResolved
	}
	resolvedAt := transition.ResolvedAt.UTC()
	report.Status = transition.Status
	report.ResolvedAt = &resolvedAt
	report.ResolvedBy = transition.ResolvedBy
	return ports.VoteOutcome{Report: report, Tipped: true}, nil
}

// applyTransition flips a pending report to its terminal status and writes
// the transition's event to the outbox. It reports false when the report was
// no longer pending.
func applyTransition(tx *gorm.DB, reportID string, transition ports.Transition) (bool, error) {
	result := tx.Model(&reportModel{}).
		Where("id = ? AND status = ?", reportID, string(entities.ReportStatusPending)).
		Updates(map[string]any{
			"status":      string(transition.Status),
			"resolved_at": transition.ResolvedAt.UTC(),
			"resolved_by": transition.ResolvedBy,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	if transition.Event != nil {
		if err := appendOutbox(tx, *transition.Event); err != nil {
			return false, err
		}
	}
	return true, nil
}

func appendOutbox(tx *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row).Error
}

func loadReport(tx *gorm.DB, reportID string) (entities.Report, error) {
	var row reportModel
	if err := tx.Where("id = ?", reportID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Report{}, domainerrors.ErrReportNotFound
		}
		return entities.Report{}, err
	}
	return row.toEntity(), nil
}

// counterColumn maps a vote choice to one of the two tally columns. The
// result is the only identifier ever spliced into the increment expression.
func counterColumn(choice entities.VoteChoice) (string, bool) {
	switch choice {
	case entities.VoteChoiceConfirm:
		return "votes_confirm", true
	case entities.VoteChoiceDismiss:
		return "votes_dismiss", true
	default:
		return "", false
	}
}

func isDomainOutcome(err error) bool {
	return errors.Is(err, domainerrors.ErrReportNotFound) ||
		errors.Is(err, domainerrors.ErrAlreadyResolved) ||
		errors.Is(err, domainerrors.ErrDuplicateVote) ||
		errors.Is(err, domainerrors.ErrDuplicateReport)
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "moderation-safety/report-consensus-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("moderation repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
