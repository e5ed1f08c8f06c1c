package domain

import "github.com/upekshaip/tg-ytdlp-bot-sub000/internal/failure"

// AttemptResult is the outcome of one item attempt. The concrete types are
// Success, RetryableFailure, FatalFailure, Skip and StopAll.
type AttemptResult interface {
	isAttemptResult()
}

// Success carries the finished artifact.
type Success struct {
	ArtifactPath string
	Metadata     Metadata
}

// RetryableFailure may succeed with another egress profile or after a pause.
type RetryableFailure struct {
	Kind   failure.Kind
	Reason string
}

// FatalFailure ends the current item.
type FatalFailure struct {
	Kind   failure.Kind
	Reason string
}

// Skip drops the current item and lets the task continue.
type Skip struct {
	Reason string
}

// StopAll ends the whole task.
type StopAll struct {
	Reason string
}

func (Success) isAttemptResult()          {}
func (RetryableFailure) isAttemptResult() {}
func (FatalFailure) isAttemptResult()     {}
func (Skip) isAttemptResult()             {}
func (StopAll) isAttemptResult()          {}

// ResultName is a short label for logs and metrics.
func ResultName(r AttemptResult) string {
	switch r.(type) {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable"
	case FatalFailure:
		return "fatal"
	case Skip:
		return "skip"
	case StopAll:
		return "stop_all"
	default:
		return "unknown"
	}
}
