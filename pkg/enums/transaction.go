package enums

import "fmt"

// TransactionStatus drives the borrow/transfer lifecycle.
type TransactionStatus string

const (
	TransactionStatusRaised          TransactionStatus = "raised"
	TransactionStatusApproved        TransactionStatus = "approved"
	TransactionStatusActive          TransactionStatus = "active"
	TransactionStatusReturnRequested TransactionStatus = "return_requested"
	TransactionStatusCompleted       TransactionStatus = "completed"
	TransactionStatusOverdue         TransactionStatus = "overdue"
	TransactionStatusRejected        TransactionStatus = "rejected"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusRaised,
	TransactionStatusApproved,
	TransactionStatusActive,
	TransactionStatusReturnRequested,
	TransactionStatusCompleted,
	TransactionStatusOverdue,
	TransactionStatusRejected,
}

// OpenTransactionStatuses are the states that count against a student's single open request.
var OpenTransactionStatuses = []TransactionStatus{
	TransactionStatusRaised,
	TransactionStatusApproved,
	TransactionStatusActive,
	TransactionStatusOverdue,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusRejected
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

// TransactionType distinguishes student borrows, direct lab issues and inter-lab transfers.
type TransactionType string

const (
	TransactionTypeRegular     TransactionType = "regular"
	TransactionTypeLabSession  TransactionType = "lab_session"
	TransactionTypeLabTransfer TransactionType = "lab_transfer"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeRegular,
	TransactionTypeLabSession,
	TransactionTypeLabTransfer,
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// TransferType marks whether transferred stock must come back.
type TransferType string

const (
	TransferTypeTemporary TransferType = "temporary"
	TransferTypePermanent TransferType = "permanent"
)

// IsValid reports whether the value is a known TransferType.
func (t TransferType) IsValid() bool {
	return t == TransferTypeTemporary || t == TransferTypePermanent
}

// ParseTransferType converts raw input into a TransferType.
func ParseTransferType(value string) (TransferType, error) {
	switch TransferType(value) {
	case TransferTypeTemporary, TransferTypePermanent:
		return TransferType(value), nil
	}
	return "", fmt.Errorf("invalid transfer type %q", value)
}

// Decision is the outcome an approver records on a raised request.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseDecision converts raw input into a Decision.
func ParseDecision(value string) (Decision, error) {
	switch Decision(value) {
	case DecisionApproved, DecisionRejected:
		return Decision(value), nil
	}
	return "", fmt.Errorf("invalid decision %q", value)
}
