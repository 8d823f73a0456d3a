package session

import "fmt"

// checkpointLoop snapshots remaining time plus the answer map to the
// checkpoint collaborator on a fixed interval. Deliberately unconditional: it
// fires whether or not anything changed since the last snapshot, and a failed
// save never touches session state or delays the next attempt.
type checkpointLoop struct {
	m            *Monitor
	checkpointer Checkpointer
	cancel       CancelFunc
}

func newCheckpointLoop(m *Monitor, checkpointer Checkpointer) *checkpointLoop {
	return &checkpointLoop{m: m, checkpointer: checkpointer}
}

func (c *checkpointLoop) start() {
	c.cancel = c.m.sched.Every(c.m.cfg.CheckpointInterval, func() {
		c.m.post(checkpointDueEvent{})
	})
}

func (c *checkpointLoop) stop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *checkpointLoop) snapshot() {
	m := c.m
	timeLeft := m.sess.TimeLeft()
	answers := m.sess.AnswersSnapshot()

	m.dispatch(func() {
		ctx, cancel := m.callCtx()
		defer cancel()
		err := c.checkpointer.SaveCheckpoint(ctx, timeLeft, answers)
		m.post(checkpointResultEvent{err: err})
	})
}

func (c *checkpointLoop) handleResult(err error) {
	if err != nil {
		// Best effort: log, journal, move on.
		c.m.log.Warn().Err(err).Msg("Checkpoint save failed")
		c.m.journal.Record(JournalCheckpointFailed, err.Error())
		return
	}
	c.m.journal.Record(JournalCheckpointSaved, fmt.Sprintf("time_left=%d", c.m.sess.TimeLeft()))
}
