package articles

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInReview   Status = "IN_REVIEW"
	StatusApproved   Status = "APPROVED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusAssigned, StatusInProgress, StatusInReview, StatusApproved:
		return true
	default:
		return false
	}
}

func AllStatuses() []Status {
	return []Status{StatusWaiting, StatusAssigned, StatusInProgress, StatusInReview, StatusApproved}
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown article status %q", s)
	}
	return st, nil
}

// Trigger is an event that may move an article between statuses.
type Trigger string

const (
	TriggerFieldsAttached    Trigger = "fields_attached"
	TriggerValueEntered      Trigger = "value_entered"
	TriggerSubmit            Trigger = "submit"
	TriggerApprove           Trigger = "approve"
	TriggerLastFieldApproved Trigger = "last_field_approved"
	TriggerRequestCorrection Trigger = "request_correction"
	TriggerFieldReopened     Trigger = "field_reopened"
	TriggerAllDetached       Trigger = "all_detached"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Next returns the status an article in from moves to when t happens.
// The returned status equals from when t leaves the article where it is.
// ErrInvalidTransition is returned when t is not allowed in from.
func Next(from Status, t Trigger) (Status, error) {
	if !from.Valid() {
		return from, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	switch t {
	case TriggerFieldsAttached:
		switch from {
		case StatusWaiting, StatusApproved:
			return StatusAssigned, nil
		default:
			return from, nil
		}
	case TriggerValueEntered:
		switch from {
		case StatusAssigned:
			return StatusInProgress, nil
		case StatusApproved:
			return from, fmt.Errorf("%w: article is already approved", ErrInvalidTransition)
		default:
			return from, nil
		}
	case TriggerSubmit:
		switch from {
		case StatusAssigned, StatusInProgress:
			return StatusInReview, nil
		default:
			return from, fmt.Errorf("%w: cannot submit an article in %s", ErrInvalidTransition, from)
		}
	case TriggerApprove:
		if from == StatusInReview {
			return StatusApproved, nil
		}
		return from, fmt.Errorf("%w: only articles in review can be approved (status %s)", ErrInvalidTransition, from)
	case TriggerLastFieldApproved:
		if from == StatusInReview {
			return StatusApproved, nil
		}
		return from, nil
	case TriggerRequestCorrection:
		if from == StatusInReview {
			return StatusAssigned, nil
		}
		return from, fmt.Errorf("%w: corrections can only be requested for articles in review (status %s)", ErrInvalidTransition, from)
	case TriggerFieldReopened:
		if from == StatusApproved {
			return StatusInReview, nil
		}
		return from, nil
	case TriggerAllDetached:
		return StatusWaiting, nil
	default:
		return from, fmt.Errorf("%w: unknown trigger %q", ErrInvalidTransition, t)
	}
}
