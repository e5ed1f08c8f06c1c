package orchestrator

import (
	"fmt"
	"strings"
)

// Summary is the outcome of one task. It is also the payload of the task
// summary event.
type Summary struct {
	TaskID      string   `json:"task_id"`
	RequesterID int64    `json:"requester_id"`
	ChatID      int64    `json:"chat_id"`
	Requested   int      `json:"requested"`
	Delivered   int      `json:"delivered"`
	Cached      int      `json:"cached"`
	Skipped     int      `json:"skipped"`
	Failed      int      `json:"failed"`
	Stopped     string   `json:"stopped,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// Complete reports whether every requested item was delivered.
func (s Summary) Complete() bool {
	return s.Requested > 0 && s.Delivered == s.Requested
}

// StatusLine is the final line of the status message.
func (s Summary) StatusLine() string {
	return fmt.Sprintf("%d/%d delivered", s.Delivered, s.Requested)
}

// StatusText is the final status message: the status line followed by the
// user-facing errors.
func (s Summary) StatusText() string {
	if len(s.Errors) == 0 {
		return s.StatusLine()
	}
	return s.StatusLine() + "\n\n" + strings.Join(s.Errors, "\n\n")
}
