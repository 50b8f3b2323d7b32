package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DueDate is an assignment deadline. The API sends either a plain `YYYY-MM-DD` date or
// a full RFC 3339 timestamp.
type DueDate struct {
	time.Time
}

const dueDateLayout = "2006-01-02"

// UnmarshalJSON parses both date and timestamp forms
func (d *DueDate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("due date: %w", err)
	}
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(dueDateLayout, s)
	if err != nil {
		return fmt.Errorf("due date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// MarshalJSON writes the date form
func (d DueDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dueDateLayout))
}

// Assignment holds the structure of an assignment as returned by the API
type Assignment struct {
	ID       string  `json:"_id"`
	Title    string  `json:"title"`
	Course   string  `json:"course,omitempty"`
	Batch    string  `json:"batch,omitempty"`
	Subject  string  `json:"subject,omitempty"`
	Priority string  `json:"priority,omitempty"`
	DueDate  DueDate `json:"dueDate"`
	DueTime  string  `json:"dueTime,omitempty"`
}

// AssignmentFilter narrows down the assignment listing
type AssignmentFilter struct {
	Course  string
	Batch   string
	Subject string
	Minimal bool
}

// AssignmentUpdate is the editable part of an assignment
type AssignmentUpdate struct {
	Title    string  `json:"title"`
	Course   string  `json:"course"`
	Subject  string  `json:"subject"`
	DueDate  DueDate `json:"dueDate"`
	DueTime  string  `json:"dueTime,omitempty"`
	Priority string  `json:"priority,omitempty"`
}

// Deadline combines the due date with the optional `HH:MM` due time. Without a valid
// due time the assignment is due at the end of its due day.
func (a Assignment) Deadline() time.Time {
	if a.DueDate.IsZero() {
		return time.Time{}
	}
	y, m, d := a.DueDate.Date()
	loc := a.DueDate.Location()
	if t, err := time.Parse("15:04", a.DueTime); err == nil {
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
	}
	if a.DueDate.Hour() != 0 || a.DueDate.Minute() != 0 || a.DueDate.Second() != 0 {
		return a.DueDate.Time
	}
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}
