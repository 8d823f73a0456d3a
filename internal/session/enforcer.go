package session

import "github.com/stemsi/exstem-agent/internal/model"

// Violation reasons raised by the environment enforcer. These strings travel
// to the backend and into the audit journal, so they are stable identifiers.
const (
	ReasonLockdownEntryFailed = "failed to enter lockdown"
	ReasonComplianceLost      = "lockdown compliance lost"
	ReasonFullscreenExit      = "left full-screen mode"
	ReasonVisibilityLost      = "exam tab lost visibility"
	ReasonFocusLost           = "exam window lost focus"
	ReasonContextMenu         = "attempted context menu"
	ReasonReloadShortcut      = "attempted page reload shortcut"
	ReasonFullscreenShortcut  = "attempted full-screen exit shortcut"
	ReasonTabShortcut         = "attempted tab switch shortcut"
)

var envReasons = map[EnvEventKind]string{
	EnvFullscreenExit:     ReasonFullscreenExit,
	EnvVisibilityLost:     ReasonVisibilityLost,
	EnvFocusLost:          ReasonFocusLost,
	EnvContextMenu:        ReasonContextMenu,
	EnvReloadShortcut:     ReasonReloadShortcut,
	EnvFullscreenShortcut: ReasonFullscreenShortcut,
	EnvTabShortcut:        ReasonTabShortcut,
}

// enforcer requests and maintains lockdown. Environment events come in from
// the surface subscription; a periodic probe independently re-checks the
// lockdown state in case the event channel itself was circumvented.
type enforcer struct {
	m           *Monitor
	cancelProbe CancelFunc
}

func newEnforcer(m *Monitor) *enforcer {
	return &enforcer{m: m}
}

// requestLockdown asks the surface to enter full-screen lockdown. A refusal
// is a violation, never a silent continue.
func (e *enforcer) requestLockdown() {
	m := e.m
	m.dispatch(func() {
		ctx, cancel := m.callCtx()
		defer cancel()
		m.post(lockdownResultEvent{err: m.surface.EnterLockdown(ctx)})
	})
}

func (e *enforcer) handleLockdownResult(err error) {
	if err != nil {
		e.m.log.Warn().Err(err).Msg("Surface refused lockdown")
		e.m.journal.Record(JournalLockdownFailed, err.Error())
		e.m.tracker.raise(ReasonLockdownEntryFailed)
		return
	}
	e.m.log.Info().Msg("Lockdown entered")
	e.m.journal.Record(JournalLockdownEntered, "")
}

func (e *enforcer) startProbe() {
	e.cancelProbe = e.m.sched.Every(e.m.cfg.ProbeInterval, func() {
		e.m.post(probeDueEvent{})
	})
}

func (e *enforcer) stopProbe() {
	if e.cancelProbe != nil {
		e.cancelProbe()
		e.cancelProbe = nil
	}
}

func (e *enforcer) probe() {
	if e.m.sess.Status() != model.SessionStatusInProgress {
		return
	}
	m := e.m
	m.dispatch(func() {
		ctx, cancel := m.callCtx()
		defer cancel()
		ok, err := m.surface.Compliant(ctx)
		m.post(probeResultEvent{compliant: ok, err: err})
	})
}

func (e *enforcer) handleProbeResult(compliant bool, err error) {
	if err != nil {
		e.m.log.Warn().Err(err).Msg("Compliance probe failed")
		e.m.tracker.raise(ReasonComplianceLost)
		return
	}
	if !compliant {
		e.m.tracker.raise(ReasonComplianceLost)
	}
}

// handleEnvEvent maps a surface report to a violation while the session is in
// progress. The tracker re-checks status itself; the map lookup here also
// shields the loop from unknown kinds sent by a stale surface build.
func (e *enforcer) handleEnvEvent(kind EnvEventKind) {
	reason, ok := envReasons[kind]
	if !ok {
		e.m.log.Warn().Str("kind", string(kind)).Msg("Ignoring unknown environment event")
		return
	}
	e.m.tracker.raise(reason)
}

// exitLockdown reverses full-screen mode. Unconditional and idempotent; runs
// on teardown no matter how the session ended.
func (e *enforcer) exitLockdown() {
	m := e.m
	go func() {
		ctx, cancel := m.callCtx()
		defer cancel()
		if err := m.surface.ExitLockdown(ctx); err != nil {
			m.log.Warn().Err(err).Msg("Exit lockdown failed")
			return
		}
		m.journal.Record(JournalLockdownExited, "")
	}()
}
