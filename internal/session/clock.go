package session

// clock drives the one-tick-per-second countdown. Pausing is unsupported on
// purpose: no candidate action stops time, only finalization or teardown.
type clock struct {
	m       *Monitor
	cancel  CancelFunc
	expired bool
}

func newClock(m *Monitor) *clock {
	return &clock{m: m}
}

func (c *clock) start() {
	c.cancel = c.m.sched.Every(c.m.cfg.TickInterval, func() {
		c.m.post(tickEvent{})
	})
}

func (c *clock) stop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// tick decrements the countdown and raises the expiry exactly once when it
// reaches zero. The aggregate ignores ticks outside IN_PROGRESS, so time
// freezes during submission instead of expiring a session that is already
// being finalized.
func (c *clock) tick() {
	left := c.m.sess.DecrementTime()
	c.m.surface.Tick(left)

	if left == 0 && !c.expired {
		c.expired = true
		c.m.controller.submit(TriggerTimeExpiry, "time expired")
	}
}
