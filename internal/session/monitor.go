package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
)

// ErrNoQuestions is returned by Start when the loader supplied an empty
// paper. The clock and lockdown never start in that case.
var ErrNoQuestions = errors.New("exam paper has no questions")

// Config tunes the monitor's timers. Zero values fall back to the production
// defaults; tests inject a manual Scheduler so the absolute values only
// matter in production.
type Config struct {
	TickInterval       time.Duration // countdown resolution, default 1s
	ViolationCooldown  time.Duration // suppression window after a violation, default 1s
	CheckpointInterval time.Duration // snapshot cadence, default 30s
	ProbeInterval      time.Duration // lockdown compliance re-check, default 30s
	CallTimeout        time.Duration // per collaborator/surface call, default 10s
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.ViolationCooldown <= 0 {
		c.ViolationCooldown = time.Second
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = 30 * time.Second
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 30 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	return c
}

// Deps are the monitor's external collaborators.
type Deps struct {
	Session      *model.ExamSession
	Surface      Surface
	Reporter     ViolationReporter
	Submitter    AnswerSubmitter
	Checkpointer Checkpointer
	Recorder     Recorder
	Scheduler    Scheduler
	Logger       zerolog.Logger
}

// ─── Loop events ────────────────────────────────────────────────────
//
// Everything that can change session state arrives here as a discrete event
// consumed by the single run goroutine: clock ticks, environment reports,
// candidate actions, timer firings, and the completions of in-flight
// collaborator calls. Between dispatching a collaborator call and receiving
// its completion event the loop keeps processing other events, so handlers
// never assume the world stood still while a call was pending.

type event interface{ isEvent() }

type tickEvent struct{}
type envEvent struct{ kind EnvEventKind }
type manualSubmitEvent struct{}
type lockdownResultEvent struct{ err error }
type probeDueEvent struct{}
type probeResultEvent struct {
	compliant bool
	err       error
}
type checkpointDueEvent struct{}
type checkpointResultEvent struct{ err error }
type reportResultEvent struct {
	reason string
	count  int
	err    error
}
type cooldownClearEvent struct{}
type submitResultEvent struct {
	trigger  SubmissionTrigger
	reason   string
	attempt  int
	snapshot map[uuid.UUID]string
	err      error
}

func (tickEvent) isEvent()             {}
func (envEvent) isEvent()              {}
func (manualSubmitEvent) isEvent()     {}
func (lockdownResultEvent) isEvent()   {}
func (probeDueEvent) isEvent()         {}
func (probeResultEvent) isEvent()      {}
func (checkpointDueEvent) isEvent()    {}
func (checkpointResultEvent) isEvent() {}
func (reportResultEvent) isEvent()     {}
func (cooldownClearEvent) isEvent()    {}
func (submitResultEvent) isEvent()     {}

// Monitor is the proctored session state machine. It owns the ExamSession
// aggregate and is the only writer of its status, warning count and
// countdown.
type Monitor struct {
	cfg     Config
	sess    *model.ExamSession
	surface Surface
	journal Recorder
	sched   Scheduler
	log     zerolog.Logger

	clock       *clock
	enforcer    *enforcer
	tracker     *tracker
	controller  *controller
	checkpoints *checkpointLoop

	events  chan event
	stopped chan struct{} // closed when the loop exits; unblocks late posts
	done    chan struct{} // closed after teardown completes

	started  bool
	finished bool
}

// New wires a Monitor. Call Start to begin the session.
func New(cfg Config, deps Deps) *Monitor {
	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = TickerScheduler{}
	}

	m := &Monitor{
		cfg:     cfg.withDefaults(),
		sess:    deps.Session,
		surface: deps.Surface,
		journal: deps.Recorder,
		sched:   deps.Scheduler,
		log:     deps.Logger.With().Str("component", "monitor").Logger(),
		events:  make(chan event, 64),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}

	m.clock = newClock(m)
	m.enforcer = newEnforcer(m)
	m.tracker = newTracker(m, deps.Reporter)
	m.controller = newController(m, deps.Submitter)
	m.checkpoints = newCheckpointLoop(m, deps.Checkpointer)
	return m
}

// Session exposes the aggregate for read-only views (bridge state endpoint).
func (m *Monitor) Session() *model.ExamSession { return m.sess }

// Done is closed once the loop has exited and teardown has run.
func (m *Monitor) Done() <-chan struct{} { return m.done }

// Start transitions the session to IN_PROGRESS, requests lockdown and starts
// all periodic timers, then launches the event loop. The ctx cancels the
// session (navigation away, agent shutdown); cleanup runs unconditionally.
func (m *Monitor) Start(ctx context.Context) error {
	if m.started {
		return errors.New("monitor already started")
	}

	if m.sess.QuestionCount() == 0 {
		// Terminal "no questions" view; neither clock nor lockdown start.
		m.surface.NotifySubmissionError("Ujian ini tidak memiliki pertanyaan. Hubungi pengawas ujian.", true)
		close(m.stopped)
		close(m.done)
		return ErrNoQuestions
	}

	if err := m.sess.Begin(); err != nil {
		return err
	}
	m.started = true

	m.journal.Record(JournalSessionStarted, "")
	m.enforcer.requestLockdown()
	m.enforcer.startProbe()
	m.clock.start()
	m.checkpoints.start()

	go m.run(ctx)
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer m.teardown()
	defer close(m.stopped)

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Session context cancelled, tearing down")
			return
		case ev := <-m.events:
			m.handle(ev)
			if m.finished {
				return
			}
		}
	}
}

// handle applies one event. It runs on the single loop goroutine, which is
// what makes the guard-and-set in the submission controller atomic with
// respect to every other status read.
func (m *Monitor) handle(ev event) {
	switch ev := ev.(type) {
	case tickEvent:
		m.clock.tick()
	case envEvent:
		m.enforcer.handleEnvEvent(ev.kind)
	case lockdownResultEvent:
		m.enforcer.handleLockdownResult(ev.err)
	case probeDueEvent:
		m.enforcer.probe()
	case probeResultEvent:
		m.enforcer.handleProbeResult(ev.compliant, ev.err)
	case manualSubmitEvent:
		m.controller.submitManual()
	case checkpointDueEvent:
		m.checkpoints.snapshot()
	case checkpointResultEvent:
		m.checkpoints.handleResult(ev.err)
	case reportResultEvent:
		m.tracker.handleReportResult(ev.reason, ev.count, ev.err)
	case cooldownClearEvent:
		m.tracker.clearGuards()
	case submitResultEvent:
		m.controller.handleResult(ev)
	}
}

// teardown cancels every periodic timer and leaves lockdown. It runs
// unconditionally when the loop exits, even with collaborator calls still in
// flight.
func (m *Monitor) teardown() {
	m.clock.stop()
	m.checkpoints.stop()
	m.enforcer.stopProbe()
	m.tracker.stopCooldown()
	m.enforcer.exitLockdown()
	m.journal.Record(JournalSessionClosed, string(m.sess.Status()))
}

// post queues an event for the loop. Events arriving after the loop has
// stopped are dropped; the session is already torn down by then.
func (m *Monitor) post(ev event) {
	select {
	case <-m.stopped:
	case m.events <- ev:
	}
}

// dispatch runs a collaborator call off the loop. These are the only
// suspension points of the state machine.
func (m *Monitor) dispatch(fn func()) {
	go fn()
}

func (m *Monitor) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.cfg.CallTimeout)
}

// ─── Candidate-facing API (called from the bridge) ─────────────────

// SelectAnswer records the candidate's option choice. Selections are only
// accepted while the session is in progress.
func (m *Monitor) SelectAnswer(questionID uuid.UUID, optionKey string) error {
	if m.sess.Status() != model.SessionStatusInProgress {
		return model.ErrInvalidTransition
	}
	return m.sess.SelectAnswer(questionID, optionKey)
}

// RequestSubmit queues a manual finalization attempt.
func (m *Monitor) RequestSubmit() {
	m.post(manualSubmitEvent{})
}

// ReportEnvironment queues an environment change or suppressed restricted
// action reported by the surface.
func (m *Monitor) ReportEnvironment(kind EnvEventKind) {
	m.post(envEvent{kind: kind})
}

// Journal event kinds.
const (
	JournalSessionStarted    = "session_started"
	JournalSessionClosed     = "session_closed"
	JournalLockdownEntered   = "lockdown_entered"
	JournalLockdownFailed    = "lockdown_failed"
	JournalLockdownExited    = "lockdown_exited"
	JournalViolationRaised   = "violation_raised"
	JournalViolationRecorded = "violation_recorded"
	JournalCheckpointSaved   = "checkpoint_saved"
	JournalCheckpointFailed  = "checkpoint_failed"
	JournalSubmitAttempt     = "submit_attempt"
	JournalSubmitSucceeded   = "submit_succeeded"
	JournalSubmitFailed      = "submit_failed"
)
