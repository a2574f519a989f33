package domain

import "time"

// Status is the lifecycle state of a swap attempt.
type Status string

const (
	StatusIdle          Status = "IDLE"
	StatusQuoting       Status = "QUOTING"
	StatusQuoteReady    Status = "QUOTE_READY" // awaiting confirmation from user
	StatusCancelled     Status = "CANCELLED"
	StatusSigning       Status = "SIGNING"
	StatusSubmitting    Status = "SUBMITTING"
	StatusConfirming    Status = "CONFIRMING"
	StatusConfirmed     Status = "CONFIRMED"
	StatusFailed        Status = "FAILED"
	StatusIndeterminate Status = "INDETERMINATE" // sent, finality not observed within the poll bound
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusConfirmed, StatusFailed, StatusIndeterminate:
		return true
	}
	return false
}

// InFlight reports whether the attempt is past the user's last decision point.
func (s Status) InFlight() bool {
	switch s {
	case StatusSigning, StatusSubmitting, StatusConfirming:
		return true
	}
	return false
}

// Settlement holds amounts observed on-chain for a confirmed swap.
type Settlement struct {
	InputRaw  uint64
	OutputRaw uint64
	Source    string // "chain" or "quote"
}

// Settlement sources.
const (
	SettlementFromChain = "chain"
	SettlementFromQuote = "quote"
)

// SwapAttempt is the unit of work tracked by the swap state machine.
// Never reused: a retry creates a new attempt with a fresh quote.
type SwapAttempt struct {
	ID          string
	Quote       *Quote
	UnsignedTx  *UnsignedTransaction
	Signature   string
	Status      Status
	ErrorDetail string
	Settlement  *Settlement
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
