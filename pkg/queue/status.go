package queue

import (
	"time"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

// StatusResponse is what a polling caller sees for one item.
type StatusResponse struct {
	ID           string          `json:"id"`
	Status       Status          `json:"status"`
	Result       *reports.Record `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	AttemptCount int             `json:"attemptCount"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func newStatusResponse(it *Item) StatusResponse {
	c := it.clone()
	return StatusResponse{
		ID:           c.ID,
		Status:       c.Status,
		Result:       c.Result,
		Error:        c.ErrorMessage,
		AttemptCount: c.AttemptCount,
		CreatedAt:    c.CreatedAt,
	}
}

// Metrics is a point-in-time snapshot of the queue.
type Metrics struct {
	Pending             int     `json:"pending"`
	Processing          int     `json:"processing"`
	Completed           int     `json:"completed"`
	Failed              int     `json:"failed"`
	Total               int     `json:"total"`
	AvgProcessingTimeMs float64 `json:"avgProcessingTimeMs"`
	Healthy             bool    `json:"healthy"`
}
