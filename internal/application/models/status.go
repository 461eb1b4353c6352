package models

import (
	dErrors "visaflow/pkg/domain-errors"
)

// Status is the application lifecycle state.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusSubmitted      Status = "submitted"
	StatusAdditionalInfo Status = "additional_info_required"
	StatusResubmission   Status = "resubmission"
	StatusProcessing     Status = "processing"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusCompleted      Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusDraft:          true,
	StatusSubmitted:      true,
	StatusAdditionalInfo: true,
	StatusResubmission:   true,
	StatusProcessing:     true,
	StatusApproved:       true,
	StatusRejected:       true,
	StatusCancelled:      true,
	StatusCompleted:      true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", s)
	}
	return st, nil
}

// allowedTransitions is the single source of truth for the state machine.
// resubmission is re-entrant: any in-process state may be pulled back into it
// by an administrator's correction request.
var allowedTransitions = map[Status][]Status{
	StatusDraft:          {StatusSubmitted, StatusCancelled},
	StatusSubmitted:      {StatusProcessing, StatusAdditionalInfo, StatusResubmission, StatusRejected, StatusCancelled},
	StatusAdditionalInfo: {StatusResubmission, StatusProcessing, StatusCancelled},
	StatusResubmission:   {StatusProcessing, StatusCancelled},
	StatusProcessing:     {StatusResubmission, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled},
	StatusApproved:       {StatusCompleted},
}

// CanTransitionTo reports whether the state machine permits status -> target.
// Writing the current status again is always permitted (idempotent no-op,
// handled by the caller).
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return true
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsInProcess reports whether the application is still moving through the
// workflow: these are the states an administrator may pull back into
// resubmission.
func (s Status) IsInProcess() bool {
	switch s {
	case StatusSubmitted, StatusAdditionalInfo, StatusResubmission, StatusProcessing:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0 && validStatuses[s]
}
