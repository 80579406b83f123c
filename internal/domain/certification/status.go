package certification

import "strings"

type Status string

const (
	StatusPending            Status = "PENDING"
	StatusAssigned           Status = "ASSIGNED"
	StatusInEvaluation       Status = "IN_EVALUATION"
	StatusAwaitingValidation Status = "AWAITING_VALIDATION"
	StatusApproved           Status = "APPROVED"
	StatusRejected           Status = "REJECTED"
	StatusComplementRequired Status = "COMPLEMENT_REQUIRED"
	StatusCancelled          Status = "CANCELLED"
)

var AllStatuses = []Status{
	StatusPending,
	StatusAssigned,
	StatusInEvaluation,
	StatusAwaitingValidation,
	StatusApproved,
	StatusRejected,
	StatusComplementRequired,
	StatusCancelled,
}

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllStatuses {
		if s == known {
			return s, true
		}
	}
	return "", false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Label is the human form used in messages, e.g. "awaiting validation".
func (s Status) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// HoldsAssignee reports whether a request in this status must carry an assignee.
func (s Status) HoldsAssignee() bool {
	switch s {
	case StatusAssigned, StatusInEvaluation, StatusAwaitingValidation, StatusComplementRequired:
		return true
	default:
		return false
	}
}

// StatusStrings is the string form used by persistence guards.
func StatusStrings(in ...Status) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

type Recommendation string

const (
	RecommendationApprove           Recommendation = "APPROVE"
	RecommendationReject            Recommendation = "REJECT"
	RecommendationRequestComplement Recommendation = "REQUEST_COMPLEMENT"
	RecommendationInProgress        Recommendation = "IN_PROGRESS"
)

func ParseRecommendation(raw string) (Recommendation, bool) {
	switch r := Recommendation(strings.ToUpper(strings.TrimSpace(raw))); r {
	case RecommendationApprove, RecommendationReject, RecommendationRequestComplement, RecommendationInProgress:
		return r, true
	default:
		return "", false
	}
}

// Outcome is the manager's final call on a request.
type Outcome string

const (
	OutcomeApprove           Outcome = "APPROVE"
	OutcomeReject            Outcome = "REJECT"
	OutcomeRequestComplement Outcome = "REQUEST_COMPLEMENT"
)

func ParseOutcome(raw string) (Outcome, bool) {
	switch o := Outcome(strings.ToUpper(strings.TrimSpace(raw))); o {
	case OutcomeApprove, OutcomeReject, OutcomeRequestComplement:
		return o, true
	default:
		return "", false
	}
}

// Target is the status an outcome leads to.
func (o Outcome) Target() Status {
	switch o {
	case OutcomeApprove:
		return StatusApproved
	case OutcomeReject:
		return StatusRejected
	case OutcomeRequestComplement:
		return StatusComplementRequired
	default:
		return ""
	}
}
