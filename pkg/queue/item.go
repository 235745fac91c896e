package queue

import (
	"time"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

// Status is the lifecycle state of an Item.
//
//	pending -> processing -> completed
//	                      -> failed
//	                      -> pending (transient failure, attempts remaining)
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions can happen from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Item is one submission attempt, in flight or resolved.
//
// An Item is created by Enqueue and mutated only by the consumer goroutine
// while holding the queue lock. Callers only ever see copies.
type Item struct {
	// ID is assigned at enqueue time and never changes.
	ID string `json:"id"`

	Payload   reports.Payload `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`

	// AttemptCount counts outer retries: how many times the item went back to pending.
	AttemptCount int `json:"attemptCount"`

	// StorageRetryCount counts inner retries spent by the retry policy across all attempts.
	StorageRetryCount int `json:"storageRetryCount"`

	Status Status `json:"status"`

	// ErrorMessage is set iff Status is failed.
	ErrorMessage string `json:"errorMessage,omitempty"`

	// Result is set iff Status is completed.
	Result *reports.Record `json:"result,omitempty"`

	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	ProcessingEndedAt   *time.Time `json:"processingEndedAt,omitempty"`
}

// clone returns a copy that shares no mutable state with it.
func (it *Item) clone() Item {
	c := *it
	if it.Result != nil {
		r := *it.Result
		c.Result = &r
	}
	if it.ProcessingStartedAt != nil {
		ts := *it.ProcessingStartedAt
		c.ProcessingStartedAt = &ts
	}
	if it.ProcessingEndedAt != nil {
		ts := *it.ProcessingEndedAt
		c.ProcessingEndedAt = &ts
	}
	return c
}

// processingTime is the time between pick-up and resolution.
func (it *Item) processingTime() time.Duration {
	if it.ProcessingStartedAt == nil || it.ProcessingEndedAt == nil {
		return 0
	}
	return it.ProcessingEndedAt.Sub(*it.ProcessingStartedAt)
}
