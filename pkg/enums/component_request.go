package enums

import "fmt"

// ComponentRequestStatus tracks a student's request for stock the labs do not carry.
type ComponentRequestStatus string

const (
	ComponentRequestStatusPending  ComponentRequestStatus = "pending"
	ComponentRequestStatusReviewed ComponentRequestStatus = "reviewed"
	ComponentRequestStatusApproved ComponentRequestStatus = "approved"
	ComponentRequestStatusRejected ComponentRequestStatus = "rejected"
)

// IsFinal reports whether the request can no longer change.
func (s ComponentRequestStatus) IsFinal() bool {
	return s == ComponentRequestStatusApproved || s == ComponentRequestStatusRejected
}

// ParseComponentRequestDecision accepts only the statuses staff may set.
func ParseComponentRequestDecision(value string) (ComponentRequestStatus, error) {
	switch ComponentRequestStatus(value) {
	case ComponentRequestStatusReviewed, ComponentRequestStatusApproved, ComponentRequestStatusRejected:
		return ComponentRequestStatus(value), nil
	}
	return "", fmt.Errorf("invalid component request status %q", value)
}

// Urgency ranks component requests.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency converts raw input into an Urgency, defaulting to medium.
func ParseUrgency(value string) (Urgency, error) {
	switch Urgency(value) {
	case "":
		return UrgencyMedium, nil
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return Urgency(value), nil
	}
	return "", fmt.Errorf("invalid urgency %q", value)
}
