package model

import "time"

// Job is one queued unit of work: a single download+deliver request. It is
// immutable once enqueued and consumed exactly once by exactly one worker.
type Job struct {
	ChatID     int64     // destination chat
	UserID     int64     // requesting user (for stats attribution)
	URL        string    // source URL as submitted
	Height     int       // selected quality tier (max height in pixels)
	EnqueuedAt time.Time // when the user confirmed the selection
}

// Outcome is the terminal state of a processed job. There are no retries;
// every job ends in exactly one of these.
type Outcome string

const (
	// OutcomeDelivered means the file was downloaded and sent to the chat.
	OutcomeDelivered Outcome = "Delivered"

	// OutcomeTooLarge means the downloaded file exceeded the transport limit
	// and was discarded without an upload attempt.
	OutcomeTooLarge Outcome = "TooLarge"

	// OutcomeFailed means a download or upload stage failed.
	OutcomeFailed Outcome = "Failed"
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	return string(o)
}

// IsDelivered returns true if the job completed successfully.
func (o Outcome) IsDelivered() bool {
	return o == OutcomeDelivered
}
