package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-agent/internal/model"
)

// Candidate-facing submission error messages.
const (
	msgSubmitRetryable = "Pengiriman jawaban gagal. Silakan coba kirim ulang."
	msgSubmitFatal     = "Pengiriman jawaban gagal setelah percobaan ulang. Hubungi administrator ujian."
)

// controller is the single point of truth for finalization. It owns the only
// code path that calls the answer-submission collaborator, and its
// guard-and-set (BeginSubmitting) decides which of the competing triggers
// wins — exactly one per session.
type controller struct {
	m         *Monitor
	submitter AnswerSubmitter
}

func newController(m *Monitor, submitter AnswerSubmitter) *controller {
	return &controller{m: m, submitter: submitter}
}

// submitManual handles the candidate's explicit submit action. It is also the
// only path allowed to reopen an ERRORED session for another attempt.
func (c *controller) submitManual() {
	if c.m.sess.Status() == model.SessionStatusErrored {
		if err := c.m.sess.Reopen(); err != nil {
			c.m.log.Error().Err(err).Msg("Reopen from errored failed")
			return
		}
	}
	c.submit(TriggerManual, "manual submit")
}

// submit starts a finalization attempt. The status transition doubles as the
// guard: once any trigger has moved the session to SUBMITTING (or beyond),
// every later call is a no-op.
func (c *controller) submit(trigger SubmissionTrigger, reason string) {
	m := c.m
	if err := m.sess.BeginSubmitting(); err != nil {
		m.log.Debug().
			Str("trigger", string(trigger)).
			Str("status", string(m.sess.Status())).
			Msg("Submit ignored, finalization already underway")
		return
	}

	m.log.Info().Str("trigger", string(trigger)).Str("reason", reason).Msg("Finalizing session")
	snapshot := m.sess.AnswersSnapshot()
	c.send(trigger, reason, snapshot, 1)
}

// send dispatches one submission attempt over the snapshot taken when the
// trigger won the guard. Retries reuse the identical snapshot so the backend
// sees an idempotent payload.
func (c *controller) send(trigger SubmissionTrigger, reason string, snapshot map[uuid.UUID]string, attempt int) {
	m := c.m
	m.journal.Record(JournalSubmitAttempt,
		fmt.Sprintf("trigger=%s attempt=%d answers=%d", trigger, attempt, len(snapshot)))

	m.dispatch(func() {
		ctx, cancel := m.callCtx()
		defer cancel()
		err := c.submitter.SubmitAnswers(ctx, snapshot)
		m.post(submitResultEvent{
			trigger:  trigger,
			reason:   reason,
			attempt:  attempt,
			snapshot: snapshot,
			err:      err,
		})
	})
}

func (c *controller) handleResult(ev submitResultEvent) {
	m := c.m

	if ev.err == nil {
		if err := m.sess.MarkSubmitted(); err != nil {
			m.log.Error().Err(err).Msg("Mark submitted failed")
			return
		}
		m.journal.Record(JournalSubmitSucceeded, fmt.Sprintf("trigger=%s", ev.trigger))
		m.log.Info().Str("trigger", string(ev.trigger)).Msg("Session submitted")
		m.surface.Redirect(Outcome{
			Trigger:       ev.trigger,
			AutoSubmitted: ev.trigger != TriggerManual,
			Reason:        ev.reason,
		})
		// Terminal: the loop exits and teardown stops the timers and exits
		// lockdown.
		m.finished = true
		return
	}

	m.log.Warn().Err(ev.err).
		Str("trigger", string(ev.trigger)).
		Int("attempt", ev.attempt).
		Msg("Submission failed")
	m.journal.Record(JournalSubmitFailed,
		fmt.Sprintf("trigger=%s attempt=%d err=%v", ev.trigger, ev.attempt, ev.err))

	if ev.trigger == TriggerManual {
		// The candidate retries explicitly; no automatic resubmission.
		if err := m.sess.Reopen(); err != nil {
			m.log.Error().Err(err).Msg("Reopen after failed manual submit failed")
		}
		m.surface.NotifySubmissionError(msgSubmitRetryable, false)
		return
	}

	if ev.attempt == 1 {
		// Auto triggers get one direct retry of the same snapshot.
		c.send(ev.trigger, ev.reason, ev.snapshot, 2)
		return
	}

	if err := m.sess.MarkErrored(); err != nil {
		m.log.Error().Err(err).Msg("Mark errored failed")
	}
	m.surface.NotifySubmissionError(msgSubmitFatal, true)
	// The loop stays alive: ERRORED blocks every automatic trigger but the
	// candidate may still resubmit manually.
}
