// internal/model/job.go
package model

import "time"

type JobStatus string

const (
	JobStarting  JobStatus = "starting"
	JobSending   JobStatus = "sending"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further progress will be recorded.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError || s == JobCancelled
}

// Job is the pollable progress record of one asynchronous blast.
type Job struct {
	ID        string     `json:"id"`
	Channel   Channel    `json:"channel"`
	Total     int        `json:"total"`
	Sent      int        `json:"sent"`
	Failed    int        `json:"failed"`
	Current   int        `json:"current"`
	Status    JobStatus  `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Errors    []string   `json:"errors"`
	Error     string     `json:"error,omitempty"`
}

// Clone returns a copy that shares no memory with j.
func (j Job) Clone() Job {
	cp := j
	cp.Errors = append([]string(nil), j.Errors...)
	if j.EndTime != nil {
		t := *j.EndTime
		cp.EndTime = &t
	}
	return cp
}

// Summary is returned by synchronous blasts.
type Summary struct {
	Success bool     `json:"success"`
	Total   int      `json:"total"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
