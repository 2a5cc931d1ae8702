// Package domain holds DTOs and ports for clause explanation submissions
package domain

import "time"

// MaxTextRunes bounds a submitted clause
const MaxTextRunes = 8000

// SubmitInput is the body of a new submission
type SubmitInput struct {
	Text string `json:"text" validate:"required,notblank,max=8000" example:"The party of the first part shall indemnify..."`
}

// Submission is one clause sent for explanation and its current status
type Submission struct {
	ID          string    `json:"id" example:"5f0c7a0e-3c1e-4a53-9d8e-0a6a4b1f2c3d"`
	Key         string    `json:"key" example:"The party of the first part shall indemnify..."`
	Text        string    `json:"text"`
	State       string    `json:"state" example:"polling"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	Result      string    `json:"result,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Message     string    `json:"message"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Signer      string    `json:"signer,omitempty"`
	Collisions  []string  `json:"collisions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Terminal reports whether the submission has finished
func (s Submission) Terminal() bool {
	switch s.State {
	case "succeeded", "timed_out", "failed":
		return true
	}
	return false
}

// EventRecord is one persisted status transition
type EventRecord struct {
	Seq         int       `json:"seq"`
	State       string    `json:"state"`
	Attempt     int       `json:"attempt,omitempty"`
	MaxAttempts int       `json:"max_attempts,omitempty"`
	Message     string    `json:"message"`
	Result      string    `json:"result,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Terminal reports whether no further events follow e
func (e EventRecord) Terminal() bool {
	switch e.State {
	case "succeeded", "timed_out", "failed":
		return true
	}
	return false
}

// KeyPreview shows the lookup key a text would be stored under
type KeyPreview struct {
	Key        string   `json:"key"`
	Runes      int      `json:"runes"`
	Truncated  bool     `json:"truncated"`
	Cleaned    bool     `json:"cleaned"`
	Collisions []string `json:"collisions,omitempty"`
}
