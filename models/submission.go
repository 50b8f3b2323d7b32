package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Submission is a student's hand-in for an assignment
type Submission struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	StudentName string     `json:"studentName,omitempty"`
	Assignment  string     `json:"assignment,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

// SubmissionList accepts both a bare array and a `{"data": [...]}` envelope
type SubmissionList []Submission

// UnmarshalJSON decodes either response shape
func (l *SubmissionList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var envelope struct {
			Data []Submission `json:"data"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return err
		}
		*l = envelope.Data
		return nil
	}
	var list []Submission
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}
