// Package reports defines the work-report data structures that flow through the
// submission queue: the Payload a caller submits and the Record the storage layer
// persists. A report is identified by its natural key, the (EmployeeID, Date) pair;
// at most one Record may exist per key.
package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of Payload.Date.
const DateLayout = "2006-01-02"

var (
	// ErrDuplicate reports a natural-key collision. It is permanent and never retried.
	ErrDuplicate = errors.New("duplicate submission")

	// ErrInvalidPayload reports a payload that can never be persisted.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrRejected marks a storage error that retrying cannot fix, such as a
	// constraint or type violation reported by the database.
	ErrRejected = errors.New("rejected by storage")

	// ErrNotFound is returned by lookups that find nothing.
	ErrNotFound = errors.New("not found")
)

// Payload is one work-report submission as received from a caller.
type Payload struct {
	// EmployeeID and Date form the natural key.
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`

	EmployeeName string  `json:"employeeName,omitempty"`
	Department   string  `json:"department,omitempty"`
	Tasks        string  `json:"tasks"`
	Blockers     string  `json:"blockers,omitempty"`
	HoursWorked  float64 `json:"hoursWorked,omitempty"`
}

// Key returns the natural key of the payload.
func (p Payload) Key() Key {
	return Key{EmployeeID: p.EmployeeID, Date: p.Date}
}

// Validate checks the payload for errors no retry can fix.
// Every returned error wraps ErrInvalidPayload.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.EmployeeID) == "" {
		return fmt.Errorf("%w: employeeId is required", ErrInvalidPayload)
	}
	if _, err := time.Parse(DateLayout, p.Date); err != nil {
		return fmt.Errorf("%w: date %q must use YYYY-MM-DD", ErrInvalidPayload, p.Date)
	}
	if strings.TrimSpace(p.Tasks) == "" {
		return fmt.Errorf("%w: tasks is required", ErrInvalidPayload)
	}
	if p.HoursWorked < 0 || p.HoursWorked > 24 {
		return fmt.Errorf("%w: hoursWorked %.2f out of range", ErrInvalidPayload, p.HoursWorked)
	}
	return nil
}

// Key is the natural key of a work report.
type Key struct {
	EmployeeID string
	Date       string
}

func (k Key) String() string {
	return k.EmployeeID + "/" + k.Date
}

// Record is a persisted work report.
type Record struct {
	ID string `json:"id"`
	Payload
	CreatedAt time.Time `json:"createdAt"`
}

// DuplicateError builds the error used when a report for key already exists.
func DuplicateError(k Key) error {
	return fmt.Errorf("%w: work report for employee %s on %s already exists", ErrDuplicate, k.EmployeeID, k.Date)
}
