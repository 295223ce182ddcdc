package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message      ports.OutboxMessage
	sequence     int64
	published    bool
	claimedBy    string
	claimedUntil time.Time
}

type agentRecord struct {
	name    string
	isAdmin bool
}

// Store keeps every moderation table behind one mutex, which gives each
// repository call the same all-or-nothing behaviour as a database
// transaction.
type Store struct {
	mu sync.RWMutex

	reports map[string]entities.Report
	votes   map[string]entities.Vote
	bans    map[string]entities.BannedAgent
	agents  map[string]agentRecord
	outbox  map[string]outboxRecord
	seq     int64
}

func NewStore() *Store {
	return &Store{
		reports: make(map[string]entities.Report),
		votes:   make(map[string]entities.Vote),
		bans:    make(map[string]entities.BannedAgent),
		agents:  make(map[string]agentRecord),
		outbox:  make(map[string]outboxRecord),
	}
}

// SetAgent registers a participant in the agent directory.
func (s *Store) SetAgent(agentID string, name string, isAdmin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[strings.TrimSpace(agentID)] = agentRecord{name: strings.TrimSpace(name), isAdmin: isAdmin}
}

func (s *Store) CreateReport(
	_ context.Context,
	report entities.Report,
	seed entities.Vote,
	evaluate ports.Evaluator,
) (ports.VoteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ReportID]; exists {
		return ports.VoteOutcome{}, domainerrors.ErrDuplicateReport
	}
	for _, existing := range s.reports {
		if existing.Status == entities.ReportStatusPending &&
			existing.ReporterID == report.ReporterID &&
			existing.TargetType == report.TargetType &&
			existing.TargetID == report.TargetID {
			return ports.VoteOutcome{}, domainerrors.ErrDuplicateReport
		}
	}

	return s.settleLocked(report, seed, evaluate)
}

func (s *Store) RecordVote(_ context.Context, vote entities.Vote, evaluate ports.Evaluator) (ports.VoteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[vote.ReportID]
	if !ok {
		return ports.VoteOutcome{}, domainerrors.ErrReportNotFound
	}
	if report.Status != entities.ReportStatusPending {
		return ports.VoteOutcome{}, domainerrors.ErrAlreadyResolved
	}
	key := voteKey(vote.ReportID, vote.VoterID)
	if _, exists := s.votes[key]; exists {
		return ports.VoteOutcome{}, domainerrors.ErrDuplicateVote
	}

	switch vote.Choice {
	case entities.VoteChoiceConfirm:
		report.VotesConfirm++
	case entities.VoteChoiceDismiss:
		report.VotesDismiss++
	default:
		return ports.VoteOutcome{}, domainerrors.ErrInvalidVote
	}
	return s.settleLocked(report, vote, evaluate)
}

// settleLocked runs evaluate over the updated tally and stores the vote, the
// report and any transition event together. The event is encoded before
// anything is written, so a failure leaves the store as it was.
func (s *Store) settleLocked(report entities.Report, vote entities.Vote, evaluate ports.Evaluator) (ports.VoteOutcome, error) {
	var (
		transition ports.Transition
		tipped     bool
	)
	if evaluate != nil {
		transition, tipped = evaluate(report)
	}
	var event *ports.EventEnvelope
	if tipped {
		report = applyTransition(report, transition)
		event = transition.Event
	}
	record, err := newOutboxRecord(event)
	if err != nil {
		return ports.VoteOutcome{}, err
	}
	s.votes[voteKey(vote.ReportID, vote.VoterID)] = vote
	s.reports[report.ReportID] = report
	s.appendOutboxLocked(record)
	return ports.VoteOutcome{Report: report, Tipped: tipped}, nil
}

func applyTransition(report entities.Report, transition ports.Transition) entities.Report {
	resolvedAt := transition.ResolvedAt.UTC()
	report.Status = transition.Status
	report.ResolvedAt = &resolvedAt
	report.ResolvedBy = transition.ResolvedBy
	return report
}

func (s *Store) ApplyVerdict(_ context.Context, reportID string, transition ports.Transition) (entities.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[strings.TrimSpace(reportID)]
	if !ok {
		return entities.Report{}, domainerrors.ErrReportNotFound
	}
	if report.Status != entities.ReportStatusPending {
		return entities.Report{}, domainerrors.ErrAlreadyResolved
	}
	record, err := newOutboxRecord(transition.Event)
	if err != nil {
		return entities.Report{}, err
	}
	report = applyTransition(report, transition)
	s.reports[report.ReportID] = report
	s.appendOutboxLocked(record)
	return report, nil
}

func (s *Store) ResolvePendingForTarget(_ context.Context, input ports.CascadeInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolvedAt := input.ResolvedAt.UTC()
	var closed int64
	for id, report := range s.reports {
		if id == input.ExcludeReportID ||
			report.Status != entities.ReportStatusPending ||
			report.TargetType != input.TargetType ||
			report.TargetID != input.TargetID {
			continue
		}
		at := resolvedAt
		report.Status = entities.ReportStatusConfirmed
		report.ResolvedAt = &at
		report.ResolvedBy = input.ResolvedBy
		s.reports[id] = report
		closed++
	}
	return closed, nil
}

func (s *Store) GetReport(_ context.Context, reportID string) (entities.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[strings.TrimSpace(reportID)]
	if !ok {
		return entities.Report{}, domainerrors.ErrReportNotFound
	}
	return report, nil
}

func (s *Store) ListReports(_ context.Context, filter ports.ReportFilter) ([]entities.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Report, 0, len(s.reports))
	for _, report := range s.reports {
		if filter.Status != "" && report.Status != filter.Status {
			continue
		}
		items = append(items, report)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].VotesConfirm != items[j].VotesConfirm {
			return items[i].VotesConfirm > items[j].VotesConfirm
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ReportID < items[j].ReportID
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *Store) ListVotes(_ context.Context, reportID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reportID = strings.TrimSpace(reportID)
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.ReportID == reportID {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].VoterID < items[j].VoterID
	})
	return items, nil
}

func (s *Store) UpsertBan(_ context.Context, ban entities.BannedAgent, event *ports.EventEnvelope) (entities.BannedAgent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := newOutboxRecord(event)
	if err != nil {
		return entities.BannedAgent{}, err
	}
	ban.AgentID = strings.TrimSpace(ban.AgentID)
	ban.BannedAt = ban.BannedAt.UTC()
	s.bans[ban.AgentID] = ban
	s.appendOutboxLocked(record)
	return ban, nil
}

func (s *Store) DeleteBan(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agentID = strings.TrimSpace(agentID)
	if _, ok := s.bans[agentID]; !ok {
		return domainerrors.ErrBanNotFound
	}
	delete(s.bans, agentID)
	return nil
}

func (s *Store) GetBan(_ context.Context, agentID string) (entities.BannedAgent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ban, ok := s.bans[strings.TrimSpace(agentID)]
	return ban, ok, nil
}

func (s *Store) ListBans(_ context.Context, limit int) ([]entities.BannedAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.BannedAgent, 0, len(s.bans))
	for _, ban := range s.bans {
		items = append(items, ban)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].BannedAt.Equal(items[j].BannedAt) {
			return items[i].BannedAt.After(items[j].BannedAt)
		}
		return items[i].AgentID < items[j].AgentID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// LookupParticipant resolves an agent id to its moderation capabilities.
// The banned flag is read from the ban table on every call.
func (s *Store) LookupParticipant(_ context.Context, participantID string) (entities.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participantID = strings.TrimSpace(participantID)
	agent, ok := s.agents[participantID]
	if !ok {
		return entities.Participant{}, domainerrors.ErrAgentNotFound
	}
	_, banned := s.bans[participantID]
	return entities.Participant{ID: participantID, IsAdmin: agent.isAdmin, IsBanned: banned}, nil
}

// Agents exposes the agent directory as a content store.
func (s *Store) Agents() ports.ContentStore {
	return agentContent{store: s}
}

type agentContent struct {
	store *Store
}

func (a agentContent) Exists(_ context.Context, id string) (bool, error) {
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	_, ok := a.store.agents[strings.TrimSpace(id)]
	return ok, nil
}

func (a agentContent) Delete(_ context.Context, id string) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	delete(a.store.agents, strings.TrimSpace(id))
	return nil
}

func (a agentContent) Label(_ context.Context, id string) (string, error) {
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	agent, ok := a.store.agents[strings.TrimSpace(id)]
	if !ok {
		return "", domainerrors.ErrAgentNotFound
	}
	return agent.name, nil
}

// newOutboxRecord encodes event ahead of the state change it accompanies. A
// nil event yields a nil record, which appendOutboxLocked ignores.
func newOutboxRecord(event *ports.EventEnvelope) (*outboxRecord, error) {
	if event == nil {
		return nil, nil
	}
	payload, err := json.Marshal(*event)
	if err != nil {
		return nil, fmt.Errorf("encode outbox event %s: %w", event.EventType, err)
	}
	id := uuid.NewString()
	return &outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     id,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			CreatedAt:    time.Now().UTC(),
		},
	}, nil
}

func (s *Store) appendOutboxLocked(record *outboxRecord) {
	if record == nil {
		return
	}
	s.seq++
	record.sequence = s.seq
	s.outbox[record.message.OutboxID] = *record
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if !row.published {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].sequence < rows[j].sequence
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) ClaimPendingOutbox(_ context.Context, claim ports.OutboxClaim) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := claim.Limit
	if limit <= 0 {
		limit = 100
	}
	now := claim.Now.UTC()
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if !row.published && !row.claimedUntil.After(now) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].sequence < rows[j].sequence
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		row.claimedBy = claim.Owner
		row.claimedUntil = now.Add(claim.Lease)
		s.outbox[row.message.OutboxID] = row
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrInvalidRequest
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func voteKey(reportID string, voterID string) string {
	return strings.TrimSpace(reportID) + "|" + strings.TrimSpace(voterID)
}
