package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	moderationerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	moderationhttp "tribunal/contexts/moderation-safety/report-consensus-service/transport/http"
)

func writeModerationError(w http.ResponseWriter, status int, code string, message string, details map[string]any) {
	writeJSON(w, status, moderationhttp.ErrorEnvelope{
		Status: "error",
		Error: moderationhttp.ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeModerationDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, moderationerrors.ErrUnauthenticated):
		writeModerationError(w, http.StatusUnauthorized, "UNAUTHORIZED", moderationerrors.ErrUnauthenticated.Error(), nil)
	case errors.Is(err, moderationerrors.ErrForbidden):
		writeModerationError(w, http.StatusForbidden, "PERMISSION_DENIED", err.Error(), nil)
	case errors.Is(err, moderationerrors.ErrParticipantBanned):
		writeModerationError(w, http.StatusForbidden, "PARTICIPANT_BANNED", err.Error(), nil)
	case errors.Is(err, moderationerrors.ErrDuplicateVote):
		writeModerationError(w, http.StatusConflict, "DUPLICATE_VOTE", err.Error(), nil)
	case errors.Is(err, moderationerrors.ErrDuplicateReport):
		writeModerationError(w, http.StatusConflict, "DUPLICATE_REPORT", err.Error(), nil)
	case errors.Is(err, moderationerrors.ErrAlreadyResolved):
		writeModerationError(w, http.StatusConflict, "ALREADY_RESOLVED", err.Error(), nil)
	case moderationerrors.IsNotFound(err):
		writeModerationError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case moderationerrors.IsValidation(err):
		writeModerationError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	default:
		s.logger.Error("moderation request failed",
			"event", "http_moderation_internal_error",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeModerationError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// authenticate resolves the caller. Participant flags come from the
// directory on every request so a fresh ban takes effect immediately.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (entities.Participant, bool) {
	token, ok := bearerToken(r)
	if !ok {
		writeModerationError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization bearer token is required", nil)
		return entities.Participant{}, false
	}
	if s.resolver == nil {
		s.writeModerationDomainError(w, r, errors.New("participant resolver is not configured"))
		return entities.Participant{}, false
	}
	participant, err := s.resolver.ResolveParticipant(r.Context(), token)
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return entities.Participant{}, false
	}
	return participant, true
}

// authenticateMutation additionally rejects banned callers and applies the
// per-participant rate limit.
func (s *Server) authenticateMutation(w http.ResponseWriter, r *http.Request) (entities.Participant, bool) {
	participant, ok := s.authenticate(w, r)
	if !ok {
		return entities.Participant{}, false
	}
	if !participant.CanMutate() {
		writeModerationError(w, http.StatusForbidden, "PARTICIPANT_BANNED", moderationerrors.ErrParticipantBanned.Error(), nil)
		return entities.Participant{}, false
	}
	if s.limiter != nil && !s.limiter.Allow(participant.ID) {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.limiter.RetryAfter().Seconds())))
		writeModerationError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many moderation requests", nil)
		return entities.Participant{}, false
	}
	return participant, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeModerationError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer", nil)
		return 0, false
	}
	return limit, true
}

func (s *Server) handleFileReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.authenticateMutation(w, r)
	if !ok {
		return
	}
	var req moderationhttp.FileReportRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	resp, err := s.moderation.Handler.FileReportHandler(r.Context(), actor, req)
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	resp, err := s.moderation.Handler.ListReportsHandler(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	resp, err := s.moderation.Handler.GetReportHandler(r.Context(), r.PathValue("report_id"))
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.authenticateMutation(w, r)
	if !ok {
		return
	}
	var req moderationhttp.CastVoteRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	resp, err := s.moderation.Handler.CastVoteHandler(r.Context(), actor, r.PathValue("report_id"), req)
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	resp, err := s.moderation.Handler.ListVotesHandler(r.Context(), r.PathValue("report_id"))
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.authenticateMutation(w, r)
	if !ok {
		return
	}
	targetType := r.PathValue("target_type")
	if _, known := entities.ParseTargetType(targetType); !known {
		writeModerationError(w, http.StatusNotFound, "NOT_FOUND", "unknown target type", map[string]any{"target_type": targetType})
		return
	}
	var req moderationhttp.AdminDeleteRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	resp, err := s.moderation.Handler.AdminDeleteHandler(r.Context(), actor, targetType, r.PathValue("target_id"), req)
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminBan(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.authenticateMutation(w, r)
	if !ok {
		return
	}
	var req moderationhttp.AdminBanRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	resp, err := s.moderation.Handler.AdminBanHandler(r.Context(), actor, r.PathValue("agent_id"), req)
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminUnban(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.authenticateMutation(w, r)
	if !ok {
		return
	}
	resp, err := s.moderation.Handler.AdminUnbanHandler(r.Context(), actor, r.PathValue("agent_id"))
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListBans(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	resp, err := s.moderation.Handler.ListBansHandler(r.Context(), actor, limit)
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminVerdict(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.authenticateMutation(w, r)
	if !ok {
		return
	}
	var req moderationhttp.AdminVerdictRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	resp, err := s.moderation.Handler.AdminVerdictHandler(r.Context(), actor, r.PathValue("report_id"), req)
	if err != nil {
		s.writeModerationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
