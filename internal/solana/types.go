package solana

import (
	"encoding/base64"
	"strconv"

	"github.com/gagliardetto/solana-go/rpc"
)

// Blockhash is a recent blockhash with its validity bound.
type Blockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
	Slot                 uint64
}

// SendOptions configures sendTransaction.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	MaxRetries          *uint
}

// SignatureStatus from getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	Err                interface{}
	ConfirmationStatus rpc.ConfirmationStatusType
}

// Reached reports whether the status meets the requested commitment.
func (s *SignatureStatus) Reached(commitment rpc.CommitmentType) bool {
	if s == nil {
		return false
	}
	switch commitment {
	case rpc.CommitmentFinalized:
		return s.ConfirmationStatus == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentConfirmed:
		return s.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			s.ConfirmationStatus == rpc.ConfirmationStatusFinalized
	default:
		return s.ConfirmationStatus != ""
	}
}

// TokenBalance is a pre/post token balance entry from transaction metadata.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string // raw amount as decimal string
	Decimals     uint8
}

// RawAmount parses Amount as an unsigned integer; 0 on malformed input.
func (b TokenBalance) RawAmount() uint64 {
	v, err := strconv.ParseUint(b.Amount, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// Bytes decodes the base64 account data.
func (a *AccountInfo) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}
