// Package orchestrator drives one clause submission through authorization, the signed
// write, acceptance and a bounded polling loop against the read call, reporting every
// transition as an Event
package orchestrator

import (
	"time"
)

// State is the lifecycle position of a submission
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingAuthorization State = "awaiting_authorization"
	StateSubmitting            State = "submitting"
	StateAwaitingAcceptance    State = "awaiting_acceptance"
	StatePolling               State = "polling"
	StateSucceeded             State = "succeeded"
	StateTimedOut              State = "timed_out"
	StateFailed                State = "failed"
)

// Terminal reports whether no further transitions can follow s
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateTimedOut, StateFailed:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known states
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateAwaitingAuthorization, StateSubmitting, StateAwaitingAcceptance,
		StatePolling, StateSucceeded, StateTimedOut, StateFailed:
		return true
	default:
		return false
	}
}

// Identity is the opaque id of an authorized signer, usually an address
type Identity string

// Short renders the identity the way wallets show it: 0x1234...abcd
func (id Identity) Short() string {
	s := string(id)
	if len(s) <= 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

// Receipt references an accepted-for-processing write, e.g. a transaction hash
type Receipt struct {
	Ref string `json:"ref"`
}

// Event is one observable status transition
type Event struct {
	State       State     `json:"state"`
	Attempt     int       `json:"attempt,omitempty"`
	MaxAttempts int       `json:"max_attempts,omitempty"`
	Key         string    `json:"key,omitempty"`
	Signer      Identity  `json:"signer,omitempty"`
	Receipt     string    `json:"receipt,omitempty"`
	Result      string    `json:"result,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Message     string    `json:"message"`
	At          time.Time `json:"at"`
}

// Terminal reports whether e ends the stream
func (e Event) Terminal() bool { return e.State.Terminal() }

// PollKind tags a PollResult
type PollKind uint8

const (
	// PollNotFound means the result is not available yet
	PollNotFound PollKind = iota
	// PollFound carries the stored text
	PollFound
	// PollTransientError means the round-trip failed; treated like not found
	PollTransientError
)

// String returns the kind name used in logs
func (k PollKind) String() string {
	switch k {
	case PollFound:
		return "found"
	case PollTransientError:
		return "transient_error"
	default:
		return "not_found"
	}
}

// PollResult is the outcome of a single query attempt
type PollResult struct {
	Kind  PollKind
	Text  string
	Cause error
}

// DefaultSentinel is what the read call returns when nothing is stored under the key
const DefaultSentinel = "Explanation not found"

// Classify maps a raw read-call outcome onto a PollResult
func Classify(text string, err error, sentinel string) PollResult {
	if err != nil {
		return PollResult{Kind: PollTransientError, Cause: err}
	}
	if text == "" || text == sentinel {
		return PollResult{Kind: PollNotFound}
	}
	return PollResult{Kind: PollFound, Text: text}
}
