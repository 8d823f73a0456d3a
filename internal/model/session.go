package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SessionStatus enumerates proctored session states.
type SessionStatus string

const (
	SessionStatusInitializing SessionStatus = "INITIALIZING"
	SessionStatusInProgress   SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitting   SessionStatus = "SUBMITTING"
	SessionStatusSubmitted    SessionStatus = "SUBMITTED"
	SessionStatusErrored      SessionStatus = "ERRORED"
)

// Terminal reports whether the status is an end state for the monitor.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusSubmitted || s == SessionStatusErrored
}

var (
	ErrInvalidTransition = errors.New("invalid session status transition")
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrUnknownOption     = errors.New("unknown option key")
)

// ExamSession is the shared session aggregate. It is owned by the monitor for
// its lifetime; all mutation goes through its methods so the monotonicity
// rules (time never increases, warnings never decrease, status moves forward)
// hold no matter which component drives the change.
type ExamSession struct {
	mu sync.RWMutex

	id          uuid.UUID
	examID      uuid.UUID
	questions   []Question
	questionIdx map[uuid.UUID]int
	answers     map[uuid.UUID]string

	durationSeconds int
	timeLeft        int
	warningCount    int
	maxWarnings     int
	status          SessionStatus
}

// NewExamSession builds a session aggregate in INITIALIZING state.
// durationSeconds is fixed here and never extended afterwards.
func NewExamSession(id, examID uuid.UUID, questions []Question, durationSeconds, maxWarnings int) *ExamSession {
	idx := make(map[uuid.UUID]int, len(questions))
	for i, q := range questions {
		idx[q.ID] = i
	}
	return &ExamSession{
		id:              id,
		examID:          examID,
		questions:       questions,
		questionIdx:     idx,
		answers:         make(map[uuid.UUID]string),
		durationSeconds: durationSeconds,
		timeLeft:        durationSeconds,
		maxWarnings:     maxWarnings,
		status:          SessionStatusInitializing,
	}
}

func (s *ExamSession) ID() uuid.UUID     { return s.id }
func (s *ExamSession) ExamID() uuid.UUID { return s.examID }

func (s *ExamSession) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *ExamSession) TimeLeft() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeLeft
}

func (s *ExamSession) WarningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warningCount
}

func (s *ExamSession) MaxWarnings() int { return s.maxWarnings }

func (s *ExamSession) QuestionCount() int { return len(s.questions) }

// transition table: forward-only, except the two documented recovery edges
// (SUBMITTING→IN_PROGRESS after a failed manual submit, ERRORED→IN_PROGRESS
// for an explicit manual resubmission).
var allowedTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusInitializing: {SessionStatusInProgress},
	SessionStatusInProgress:   {SessionStatusSubmitting},
	SessionStatusSubmitting:   {SessionStatusSubmitted, SessionStatusErrored, SessionStatusInProgress},
	SessionStatusErrored:      {SessionStatusInProgress},
}

func (s *ExamSession) transition(to SessionStatus) error {
	for _, next := range allowedTransitions[s.status] {
		if next == to {
			s.status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
}

// Begin moves the session into IN_PROGRESS. Called once by the monitor when
// the countdown starts.
func (s *ExamSession) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(SessionStatusInProgress)
}

// BeginSubmitting is the guard-and-set step of finalization. It only succeeds
// from IN_PROGRESS, so two competing triggers cannot both win.
func (s *ExamSession) BeginSubmitting() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != SessionStatusInProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, SessionStatusSubmitting)
	}
	return s.transition(SessionStatusSubmitting)
}

// Reopen reverts to IN_PROGRESS after a recoverable submission failure.
func (s *ExamSession) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(SessionStatusInProgress)
}

// MarkSubmitted finalizes the session successfully.
func (s *ExamSession) MarkSubmitted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(SessionStatusSubmitted)
}

// MarkErrored finalizes the session with an unrecoverable submission error.
func (s *ExamSession) MarkErrored() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(SessionStatusErrored)
}

// DecrementTime ticks the countdown down by one second, clamped at zero.
// It is a no-op unless the session is IN_PROGRESS. Returns the remaining
// seconds after the tick.
func (s *ExamSession) DecrementTime() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != SessionStatusInProgress {
		return s.timeLeft
	}
	if s.timeLeft > 0 {
		s.timeLeft--
	}
	return s.timeLeft
}

// SelectAnswer records the candidate's choice for a question, replacing any
// previous choice. The question and option key must both exist.
func (s *ExamSession) SelectAnswer(questionID uuid.UUID, optionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.questionIdx[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if _, ok := s.questions[i].Options[optionKey]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, optionKey)
	}
	s.answers[questionID] = optionKey
	return nil
}

// SeedAnswers restores previously autosaved answers on session resume.
// Unknown question IDs and malformed keys are skipped and reported back so
// the caller can log them.
func (s *ExamSession) SeedAnswers(saved map[string]string) (skipped []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for rawID, key := range saved {
		qid, err := uuid.Parse(rawID)
		if err != nil {
			skipped = append(skipped, rawID)
			continue
		}
		i, ok := s.questionIdx[qid]
		if !ok {
			skipped = append(skipped, rawID)
			continue
		}
		if _, ok := s.questions[i].Options[key]; !ok {
			skipped = append(skipped, rawID)
			continue
		}
		s.answers[qid] = key
	}
	return skipped
}

// AnswersSnapshot returns a copy of the answer map. Finalization and
// checkpointing always operate on a snapshot, never on the live map.
func (s *ExamSession) AnswersSnapshot() map[uuid.UUID]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[uuid.UUID]string, len(s.answers))
	for k, v := range s.answers {
		snap[k] = v
	}
	return snap
}

// AdoptWarningCount takes the reporting collaborator's authoritative count.
// The local count never goes backwards, even if the collaborator reports a
// lower number.
func (s *ExamSession) AdoptWarningCount(count int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count > s.warningCount {
		s.warningCount = count
	}
	return s.warningCount
}

// IncrementWarnings is the local fallback when the reporting collaborator is
// unreachable.
func (s *ExamSession) IncrementWarnings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warningCount++
	return s.warningCount
}

// SessionView is the read model served to the exam surface.
type SessionView struct {
	SessionID       uuid.UUID         `json:"session_id"`
	ExamID          uuid.UUID         `json:"exam_id"`
	Status          SessionStatus     `json:"status"`
	TimeLeftSeconds int               `json:"time_left_seconds"`
	DurationSeconds int               `json:"duration_seconds"`
	WarningCount    int               `json:"warning_count"`
	MaxWarnings     int               `json:"max_warnings"`
	Answers         map[string]string `json:"answers"`
	Questions       []Question        `json:"questions"`
}

// View builds a consistent snapshot of the session for the surface.
func (s *ExamSession) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answers := make(map[string]string, len(s.answers))
	for qid, key := range s.answers {
		answers[qid.String()] = key
	}
	return SessionView{
		SessionID:       s.id,
		ExamID:          s.examID,
		Status:          s.status,
		TimeLeftSeconds: s.timeLeft,
		DurationSeconds: s.durationSeconds,
		WarningCount:    s.warningCount,
		MaxWarnings:     s.maxWarnings,
		Answers:         answers,
		Questions:       s.questions,
	}
}
