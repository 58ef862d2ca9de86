package model

import "time"

// JobStatus is the lifecycle state of a background extraction job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailure JobStatus = "failure"
)

// Terminal reports whether no further transition is legal from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailure
}

// transitionSources maps each reachable status to its single legal
// predecessor. A job only ever moves pending -> running -> success|failure.
var transitionSources = map[JobStatus]JobStatus{
	JobStatusRunning: JobStatusPending,
	JobStatusSuccess: JobStatusRunning,
	JobStatusFailure: JobStatusRunning,
}

// TransitionSource returns the only status a job may be in for a
// transition to `to` to be legal. ok is false when `to` is not a valid
// transition target at all (e.g. back to pending).
func TransitionSource(to JobStatus) (from JobStatus, ok bool) {
	from, ok = transitionSources[to]
	return from, ok
}

// Job is a trackable unit of background file-processing work. A job is
// created pending by the upload path and mutated only by the worker that
// claims it; the claim itself is the atomic pending->running transition.
type Job struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Status      JobStatus  `json:"status"`
	Columns     []string   `json:"columns,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
