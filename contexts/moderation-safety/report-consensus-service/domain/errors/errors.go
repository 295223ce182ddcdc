package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid moderation request")
	ErrInvalidTarget     = errors.New("invalid report target")
	ErrReasonTooShort    = errors.New("report reason is too short")
	ErrSelfReport        = errors.New("agents cannot report themselves")
	ErrInvalidVote       = errors.New("vote must be confirm or dismiss")
	ErrInvalidOutcome    = errors.New("verdict outcome must be confirmed or dismissed")
	ErrReportNotFound    = errors.New("report not found")
	ErrAgentNotFound     = errors.New("agent not found")
	ErrBanNotFound       = errors.New("agent is not banned")
	ErrTargetNotFound    = errors.New("report target not found")
	ErrDuplicateReport   = errors.New("an open report against this target already exists")
	ErrDuplicateVote     = errors.New("participant already voted on this report")
	ErrAlreadyResolved   = errors.New("report is already resolved")
	ErrForbidden         = errors.New("administrator privileges required")
	ErrParticipantBanned = errors.New("participant is banned")
	ErrUnauthenticated   = errors.New("participant credential required")
)

// IsValidation reports whether err is rejected input that never reached storage.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, ErrReasonTooShort) ||
		errors.Is(err, ErrSelfReport) ||
		errors.Is(err, ErrInvalidVote) ||
		errors.Is(err, ErrInvalidOutcome)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrReportNotFound) ||
		errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrBanNotFound) ||
		errors.Is(err, ErrTargetNotFound)
}

// ExecutorStepError records a failed resolution side effect. It never
// rolls back the terminal status of the report.
type ExecutorStepError struct {
	Step string
	Err  error
}

func (e *ExecutorStepError) Error() string {
	return fmt.Sprintf("resolution step %s failed: %v", e.Step, e.Err)
}

func (e *ExecutorStepError) Unwrap() error {
	return e.Err
}
