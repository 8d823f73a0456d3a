package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-agent/internal/model"
)

// ViolationReporter durably records a violation and returns the authoritative
// cumulative violation count for the session.
type ViolationReporter interface {
	ReportViolation(ctx context.Context, v model.Violation) (int, error)
}

// AnswerSubmitter finalizes the session's answers. Retrying with an identical
// payload must be idempotent on the backend side.
type AnswerSubmitter interface {
	SubmitAnswers(ctx context.Context, answers map[uuid.UUID]string) error
}

// Checkpointer accepts best-effort partial-progress snapshots.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, timeLeftSeconds int, answers map[uuid.UUID]string) error
}

// Recorder appends session events to the local audit journal. Implementations
// must absorb their own failures; the monitor never checks them.
type Recorder interface {
	Record(kind, detail string)
}

// NopRecorder satisfies Recorder when no journal is configured.
type NopRecorder struct{}

func (NopRecorder) Record(kind, detail string) {}
