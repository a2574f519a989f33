package domain

import (
	"errors"
	"strings"
)

// Swap pipeline errors. Stages wrap these with context; callers classify
// with errors.Is or KindOf.
var (
	// ErrTokenNotFound is returned when no token table matches the input.
	ErrTokenNotFound = errors.New("token not found")

	// ErrNoRouteFound is returned when the aggregator reports no liquidity path.
	ErrNoRouteFound = errors.New("no route found")

	// ErrUpstream is returned on network or HTTP failures of third-party APIs.
	ErrUpstream = errors.New("upstream error")

	// ErrBuild is returned when a quote is stale or the signer is missing.
	ErrBuild = errors.New("build error")

	// ErrSigningRejected is returned when the user declines in the wallet.
	ErrSigningRejected = errors.New("signing rejected")

	// ErrSigningError is returned on technical signing failures.
	ErrSigningError = errors.New("signing error")

	// ErrBlockhashExpired marks failures caused by an expired blockhash.
	// Always joined with ErrSigningError or ErrSubmission.
	ErrBlockhashExpired = errors.New("transaction blockhash error")

	// ErrSubmission is returned when a sent transaction is rejected or fails on-chain.
	ErrSubmission = errors.New("submission error")

	// ErrInvalidAmount is returned for negative, zero or overflowing amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAttemptInFlight is returned when a new trade overlaps a signing attempt.
	ErrAttemptInFlight = errors.New("swap attempt in flight")
)

// Kind is the error category used for user messaging and metrics.
type Kind string

const (
	KindNone            Kind = ""
	KindTokenNotFound   Kind = "token_not_found"
	KindNoRoute         Kind = "no_route"
	KindUpstream        Kind = "upstream"
	KindBuild           Kind = "build"
	KindSigningRejected Kind = "signing_rejected"
	KindBlockhash       Kind = "blockhash_expired"
	KindSigning         Kind = "signing"
	KindSubmission      Kind = "submission"
	KindInvalidAmount   Kind = "invalid_amount"
	KindInFlight        Kind = "in_flight"
	KindUnknown         Kind = "unknown"
)

// KindOf classifies an error into the taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTokenNotFound):
		return KindTokenNotFound
	case errors.Is(err, ErrNoRouteFound):
		return KindNoRoute
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrAttemptInFlight):
		return KindInFlight
	case errors.Is(err, ErrBuild):
		return KindBuild
	case errors.Is(err, ErrSigningRejected):
		return KindSigningRejected
	case errors.Is(err, ErrBlockhashExpired):
		return KindBlockhash
	case errors.Is(err, ErrSigningError):
		return KindSigning
	case errors.Is(err, ErrSubmission):
		return KindSubmission
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	}
	return KindUnknown
}

// MentionsBlockhash reports whether an error message refers to the blockhash.
func MentionsBlockhash(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "blockhash") || strings.Contains(m, "block height exceeded")
}
