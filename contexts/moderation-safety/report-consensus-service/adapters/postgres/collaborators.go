package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The collaborator tables belong to neighbouring services. The engine only
// needs existence, deletion and a display label from them; the models below
// describe the columns it touches.

type PostModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	AuthorID  string    `gorm:"column:author_id;index"`
	Content   string    `gorm:"column:content"`
	Kind      string    `gorm:"column:kind"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (PostModel) TableName() string {
	return "posts"
}

type SkillModel struct {
	ID   string `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
}

func (SkillModel) TableName() string {
	return "skills"
}

type KnowledgeEntryModel struct {
	ID    string `gorm:"column:id;primaryKey"`
	Title string `gorm:"column:title"`
}

func (KnowledgeEntryModel) TableName() string {
	return "knowledge_entries"
}

type AgentModel struct {
	ID      string `gorm:"column:id;primaryKey"`
	Name    string `gorm:"column:name"`
	IsAdmin bool   `gorm:"column:is_admin"`
}

func (AgentModel) TableName() string {
	return "agents"
}

// CollaboratorModels lists the neighbouring tables for local databases that
// host every service in one schema.
func CollaboratorModels() []any {
	return []any{&PostModel{}, &SkillModel{}, &KnowledgeEntryModel{}, &AgentModel{}}
}

// ContentTable adapts one collaborator table to ports.ContentStore. M names
// the table through its TableName method.
type ContentTable[M any] struct {
	db          *gorm.DB
	labelColumn string
	logger      *slog.Logger
}

func NewContentTable[M any](db *gorm.DB, labelColumn string, logger *slog.Logger) ContentTable[M] {
	if logger == nil {
		logger = slog.Default()
	}
	return ContentTable[M]{db: db, labelColumn: labelColumn, logger: logger}
}

// NewContentStores wires each target type to its table. Posts are labelled by
// id: the body is what gets removed and must not reappear in the notice.
func NewContentStores(db *gorm.DB, logger *slog.Logger) map[entities.TargetType]ports.ContentStore {
	return map[entities.TargetType]ports.ContentStore{
		entities.TargetTypePost:      NewContentTable[PostModel](db, "id", logger),
		entities.TargetTypeSkill:     NewContentTable[SkillModel](db, "name", logger),
		entities.TargetTypeKnowledge: NewContentTable[KnowledgeEntryModel](db, "title", logger),
		entities.TargetTypeAgent:     NewContentTable[AgentModel](db, "name", logger),
	}
}

func (t ContentTable[M]) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := t.db.WithContext(ctx).
		Model(new(M)).
		Where("id = ?", strings.TrimSpace(id)).
		Count(&count).Error; err != nil {
		return false, t.logError("moderation_content_exists_failed", err, id)
	}
	return count > 0, nil
}

func (t ContentTable[M]) Delete(ctx context.Context, id string) error {
	if err := t.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(id)).
		Delete(new(M)).Error; err != nil {
		return t.logError("moderation_content_delete_failed", err, id)
	}
	return nil
}

func (t ContentTable[M]) Label(ctx context.Context, id string) (string, error) {
	var labels []string
	if err := t.db.WithContext(ctx).
		Model(new(M)).
		Where("id = ?", strings.TrimSpace(id)).
		Limit(1).
		Pluck(t.labelColumn, &labels).Error; err != nil {
		return "", t.logError("moderation_content_label_failed", err, id)
	}
	if len(labels) == 0 {
		return "", domainerrors.ErrTargetNotFound
	}
	return labels[0], nil
}

func (t ContentTable[M]) logError(event string, err error, id string) error {
	t.logger.Error("moderation content store operation failed",
		"event", event,
		"module", "moderation-safety/report-consensus-service",
		"layer", "adapter",
		"target_id", strings.TrimSpace(id),
		"error", err.Error(),
	)
	return err
}

// FeedSink publishes announcements as posts in the shared feed table.
type FeedSink struct {
	db *gorm.DB
}

func NewFeedSink(db *gorm.DB) FeedSink {
	return FeedSink{db: db}
}

func (f FeedSink) Publish(ctx context.Context, authorID string, text string, kind string) error {
	return f.db.WithContext(ctx).Create(&PostModel{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   text,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}).Error
}

// AgentDirectory answers participant lookups from the agents table. The ban
// flag is read from banned_agents on every lookup.
type AgentDirectory struct {
	db *gorm.DB
}

func NewAgentDirectory(db *gorm.DB) AgentDirectory {
	return AgentDirectory{db: db}
}

func (d AgentDirectory) LookupParticipant(ctx context.Context, participantID string) (entities.Participant, error) {
	participantID = strings.TrimSpace(participantID)
	var agent AgentModel
	if err := d.db.WithContext(ctx).Where("id = ?", participantID).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Participant{}, domainerrors.ErrAgentNotFound
		}
		return entities.Participant{}, err
	}
	var bans int64
	if err := d.db.WithContext(ctx).
		Model(&bannedAgentModel{}).
		Where("agent_id = ?", participantID).
		Count(&bans).Error; err != nil {
		return entities.Participant{}, err
	}
	return entities.Participant{ID: agent.ID, IsAdmin: agent.IsAdmin, IsBanned: bans > 0}, nil
}
