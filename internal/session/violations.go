package session

import (
	"fmt"
	"time"

	"github.com/stemsi/exstem-agent/internal/model"
)

// tracker deduplicates and rate-limits violations. Two guard flags, mutated
// only on the loop goroutine:
//
//	reported — a violation is being processed end-to-end right now
//	cooldown — the 1s suppression window after a processed violation
//
// At most one violation reaches the reporting collaborator per window no
// matter how many triggering events arrive.
type tracker struct {
	m        *Monitor
	reporter ViolationReporter

	reported       bool
	cooldown       bool
	cancelCooldown CancelFunc
}

func newTracker(m *Monitor, reporter ViolationReporter) *tracker {
	return &tracker{m: m, reporter: reporter}
}

// raise registers a violation. No-op while a report is in flight, during the
// cooldown window, or once the session has left IN_PROGRESS.
func (t *tracker) raise(reason string) {
	m := t.m
	if t.reported || t.cooldown {
		m.log.Debug().Str("reason", reason).Msg("Violation suppressed by guard")
		return
	}
	if m.sess.Status() != model.SessionStatusInProgress {
		return
	}

	t.reported = true
	t.cooldown = true
	m.log.Warn().Str("reason", reason).Msg("Violation raised")
	m.journal.Record(JournalViolationRaised, reason)

	v := model.Violation{Reason: reason, Timestamp: time.Now()}
	m.dispatch(func() {
		ctx, cancel := m.callCtx()
		defer cancel()
		count, err := t.reporter.ReportViolation(ctx, v)
		m.post(reportResultEvent{reason: reason, count: count, err: err})
	})
}

// handleReportResult adopts the authoritative count (or falls back to a local
// increment), acknowledges the candidate, checks the auto-submit threshold
// and arms the cooldown clear. The acknowledgment always happens before the
// guards can clear.
func (t *tracker) handleReportResult(reason string, count int, err error) {
	m := t.m

	var newCount int
	authoritative := err == nil
	if authoritative {
		newCount = m.sess.AdoptWarningCount(count)
	} else {
		m.log.Warn().Err(err).Str("reason", reason).Msg("Violation report failed, incrementing locally")
		newCount = m.sess.IncrementWarnings()
	}

	maxWarnings := m.sess.MaxWarnings()
	remaining := maxWarnings - newCount
	if remaining < 0 {
		remaining = 0
	}
	m.journal.Record(JournalViolationRecorded,
		fmt.Sprintf("reason=%s count=%d authoritative=%t", reason, newCount, authoritative))

	m.surface.NotifyWarning(model.WarningAck{
		Reason:        reason,
		WarningCount:  newCount,
		MaxWarnings:   maxWarnings,
		Remaining:     remaining,
		Authoritative: authoritative,
	})

	t.cancelCooldown = m.sched.After(m.cfg.ViolationCooldown, func() {
		m.post(cooldownClearEvent{})
	})

	// Strict inequality: with maxWarnings = 2 the third recorded violation
	// auto-submits, not the second. Matches the product's counting rule.
	if newCount > maxWarnings {
		m.controller.submit(TriggerViolationThreshold, "maximum violations reached")
	}
}

// clearGuards ends the processing + cooldown window, regardless of how the
// report turned out.
func (t *tracker) clearGuards() {
	t.reported = false
	t.cooldown = false
}

func (t *tracker) stopCooldown() {
	if t.cancelCooldown != nil {
		t.cancelCooldown()
		t.cancelCooldown = nil
	}
}
