package orchestrator

import "fmt"

func authMessage(cached bool) string {
	if cached {
		return "Initializing transaction..."
	}
	return "Requesting signing authority..."
}

// messageFor renders the human-readable status line for ev
func messageFor(ev Event) string {
	switch ev.State {
	case StateIdle:
		return "Ready."
	case StateAwaitingAuthorization:
		return authMessage(ev.Signer != "")
	case StateSubmitting:
		return "Please sign the transaction in your wallet..."
	case StateAwaitingAcceptance:
		return "Transaction sent! Waiting for block confirmation..."
	case StatePolling:
		return fmt.Sprintf("AI is processing... (attempt %d/%d)", ev.Attempt, ev.MaxAttempts)
	case StateSucceeded:
		return "Explanation received!"
	case StateTimedOut:
		return "Timeout: The AI took too long. The explanation may still arrive later; check again shortly."
	case StateFailed:
		if ev.Reason == "" {
			return "Error: unknown failure"
		}
		return "Error: " + ev.Reason
	default:
		return string(ev.State)
	}
}
