package models

// Status is the master state of a verification record.
type Status string

const (
	StatusSubmitted        Status = "submitted"
	StatusAIProcessing     Status = "ai_processing"
	StatusAIVerified       Status = "ai_verified"
	StatusCredentialIssued Status = "credential_issued"
	StatusCompleted        Status = "completed"
	StatusRejected         Status = "rejected"
)

// forward lists the single legal successor of each non-terminal status.
var forward = map[Status]Status{
	StatusSubmitted:        StatusAIProcessing,
	StatusAIProcessing:     StatusAIVerified,
	StatusAIVerified:       StatusCredentialIssued,
	StatusCredentialIssued: StatusCompleted,
}

// AllStatuses in lifecycle order.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusAIProcessing,
	StatusAIVerified,
	StatusCredentialIssued,
	StatusCompleted,
	StatusRejected,
}

// NonTerminalStatuses are the in-flight states; a user may hold at most one
// record in any of them.
var NonTerminalStatuses = []Status{
	StatusSubmitted,
	StatusAIProcessing,
	StatusAIVerified,
	StatusCredentialIssued,
}

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// CanTransitionTo allows exactly one forward step, or rejection from any
// non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusRejected {
		return true
	}
	return forward[s] == next
}

// ParseStatus validates a status string from a trust boundary.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.IsValid()
}

// UserKYCStatus is the denormalized per-user summary shown on the account.
type UserKYCStatus string

const (
	UserKYCNotStarted UserKYCStatus = "not_started"
	UserKYCInProgress UserKYCStatus = "in_progress"
	UserKYCVerified   UserKYCStatus = "verified"
	UserKYCRejected   UserKYCStatus = "rejected"
)

// RejectionCategory is the stable, machine-readable half of a rejection.
type RejectionCategory string

const (
	// RejectionVerificationFailed: the provider looked at the documents and said no.
	RejectionVerificationFailed RejectionCategory = "verification_failed"
	// RejectionVerificationUnavailable: the provider could not be reached or errored.
	RejectionVerificationUnavailable RejectionCategory = "verification_unavailable"
	// RejectionProcessingTimeout: the per-submission deadline expired.
	RejectionProcessingTimeout RejectionCategory = "processing_timeout"
	// RejectionStale: superseded by a newer submission after going stale.
	RejectionStale RejectionCategory = "stale_timeout"
)
