package queries

import (
	"context"
	"strings"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ReportQueryUseCase struct {
	Reports ports.ReportRepository
	Bans    ports.BanRepository
}

func (uc ReportQueryUseCase) GetReport(ctx context.Context, reportID string) (entities.Report, error) {
	reportID = strings.TrimSpace(reportID)
	if reportID == "" {
		return entities.Report{}, domainerrors.ErrReportNotFound
	}
	return uc.Reports.GetReport(ctx, reportID)
}

// ListReports returns reports closest to quorum first, newest first on ties.
// An empty status lists every report.
func (uc ReportQueryUseCase) ListReports(ctx context.Context, status string, limit int) ([]entities.Report, error) {
	filter := ports.ReportFilter{
		Status: entities.ReportStatus(strings.ToLower(strings.TrimSpace(status))),
		Limit:  clampLimit(limit),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domainerrors.ErrInvalidRequest
	}
	return uc.Reports.ListReports(ctx, filter)
}

// ListVotes returns the ledger rows of a report, oldest first.
func (uc ReportQueryUseCase) ListVotes(ctx context.Context, reportID string) ([]entities.Vote, error) {
	report, err := uc.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return uc.Reports.ListVotes(ctx, report.ReportID)
}

func (uc ReportQueryUseCase) ListBans(ctx context.Context, actor entities.Participant, limit int) ([]entities.BannedAgent, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, domainerrors.ErrUnauthenticated
	}
	if !actor.CanModerate() {
		return nil, domainerrors.ErrForbidden
	}
	return uc.Bans.ListBans(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
