package domain

import "time"

// RequestStatus is the closed set of lifecycle states for a records request.
type RequestStatus string

const (
	StatusDraft        RequestStatus = "draft"
	StatusReady        RequestStatus = "ready"
	StatusSubmitted    RequestStatus = "submitted"
	StatusAcknowledged RequestStatus = "acknowledged"
	StatusProcessing   RequestStatus = "processing"
	StatusFulfilled    RequestStatus = "fulfilled"
	StatusPartial      RequestStatus = "partial"
	StatusDenied       RequestStatus = "denied"
	StatusAppealed     RequestStatus = "appealed"
	StatusClosed       RequestStatus = "closed"
)

// transitions is the closed graph checked at every mutation site. CLOSED is
// additionally reachable from every non-terminal state.
var transitions = map[RequestStatus][]RequestStatus{
	StatusDraft:        {StatusSubmitted},
	StatusReady:        {StatusSubmitted},
	StatusSubmitted:    {StatusAcknowledged, StatusProcessing, StatusFulfilled, StatusPartial, StatusDenied},
	StatusAcknowledged: {StatusProcessing, StatusFulfilled, StatusPartial, StatusDenied},
	StatusProcessing:   {StatusFulfilled, StatusPartial, StatusDenied},
	StatusDenied:       {StatusAppealed},
	StatusAppealed:     {StatusFulfilled, StatusPartial, StatusDenied, StatusClosed},
}

// Terminal reports whether no further transitions are allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusFulfilled || s == StatusClosed
}

// CanTransition reports whether from -> to is an allowed lifecycle move.
func CanTransition(from, to RequestStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusClosed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Request is a public records request sent to a target agency. It is created
// in DRAFT and mutated only through the lifecycle manager.
type Request struct {
	ID              string
	TargetID        string
	CandidateID     string
	ReferenceNumber string
	Status          RequestStatus
	Priority        int
	Subject         string
	Body            string
	AutoFiled       bool
	EstimatedCents  int
	ActualCents     int
	CreatedAt       time.Time
	SubmittedAt     *time.Time
	DueAt           *time.Time
	FulfilledAt     *time.Time
}

// RequestStatusChange is one append-only audit row, written atomically with
// each status mutation.
type RequestStatusChange struct {
	ID         string
	RequestID  string
	FromStatus RequestStatus
	ToStatus   RequestStatus
	ChangedBy  string
	Reason     string
	Metadata   map[string]string
	CreatedAt  time.Time
}

// Target is a public agency requests can be filed with. Read-only inside
// this core; referenced by id, never by live pointer.
type Target struct {
	ID                  string
	Name                string
	Jurisdiction        string
	Active              bool
	ContactEmail        string
	AvgCostCents        int
	AvgResponseInterval time.Duration
	Patterns            []string
}

// HasContact reports whether a submission channel exists for the target.
func (t Target) HasContact() bool {
	return t.ContactEmail != ""
}

// DefaultResponseInterval is used when a target has no history.
const DefaultResponseInterval = 30 * 24 * time.Hour

// ResponseInterval returns the window used to compute due_at.
func (t Target) ResponseInterval() time.Duration {
	if t.AvgResponseInterval <= 0 {
		return DefaultResponseInterval
	}
	return t.AvgResponseInterval
}
