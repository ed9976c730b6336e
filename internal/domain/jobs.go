package domain

import (
	"context"
	"time"
)

// DigestJobCause records what triggered a digest job.
type DigestJobCause string

const (
	// DigestCauseManual means an operator requested the digest.
	DigestCauseManual DigestJobCause = "manual"
	// DigestCauseScheduled means the weekly schedule fired.
	DigestCauseScheduled DigestJobCause = "scheduled"
)

// DigestJob asks a worker to build and publish one guild digest.
type DigestJob struct {
	ID          string         `json:"job_id,omitempty"`
	Guild       string         `json:"guild"`
	Date        time.Time      `json:"date"`
	RequestedAt time.Time      `json:"requested_at"`
	Cause       DigestJobCause `json:"cause"`
}

// DigestAckFunc confirms processing or asks for redelivery.
type DigestAckFunc func(success bool) error

// DigestQueue transports digest jobs between scheduler and worker.
type DigestQueue interface {
	Enqueue(ctx context.Context, job DigestJob) error
	Receive(ctx context.Context) (DigestJob, DigestAckFunc, error)
}
