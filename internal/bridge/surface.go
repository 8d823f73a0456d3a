package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stemsi/exstem-agent/internal/session"
)

// ErrNoSurface means no exam surface holds the stream right now.
var ErrNoSurface = errors.New("no exam surface connected")

// SurfaceHub implements session.Surface over the WebSocket stream. A single
// surface connection is active at a time; a reconnect replaces the previous
// one. A disconnected surface answers every compliance probe as
// non-compliant, so a candidate killing the UI still accumulates violations.
type SurfaceHub struct {
	log zerolog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	send       chan interface{}
	lockdownCh chan error
	probeCh    chan bool

	connectOnce sync.Once
	connected   chan struct{}
}

func NewSurfaceHub(log zerolog.Logger) *SurfaceHub {
	return &SurfaceHub{
		log:       log.With().Str("component", "surface_hub").Logger(),
		connected: make(chan struct{}),
	}
}

// attach installs a new surface connection and starts its write pump,
// replacing any previous connection.
func (h *SurfaceHub) attach(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conn != nil {
		h.conn.Close()
		close(h.send)
	}
	h.conn = conn
	send := make(chan interface{}, 32)
	h.send = send
	h.mu.Unlock()

	h.connectOnce.Do(func() { close(h.connected) })

	go func() {
		for msg := range send {
			if err := writeTyped(conn, msg); err != nil {
				h.log.Debug().Err(err).Msg("Surface write failed")
				return
			}
		}
	}()
}

// detach drops the connection if it is still the active one.
func (h *SurfaceHub) detach(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == conn {
		h.conn = nil
		close(h.send)
		h.send = nil
	}
}

// WaitConnected blocks until a surface has connected once or ctx expires.
func (h *SurfaceHub) WaitConnected(ctx context.Context) error {
	select {
	case <-h.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// push queues a message for the surface. Best effort: dropped when the
// surface is gone or its queue is full. The mutex is held across the send;
// attach and detach close the queue under the same mutex, so the send can
// never hit a closed channel.
func (h *SurfaceHub) push(v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.send == nil {
		return
	}
	select {
	case h.send <- v:
	default:
		h.log.Warn().Msg("Surface send queue full, dropping push")
	}
}

// ─── session.Surface ────────────────────────────────────────────────

// EnterLockdown commands the surface into full-screen lockdown and waits for
// its verdict.
func (h *SurfaceHub) EnterLockdown(ctx context.Context) error {
	h.mu.Lock()
	if h.conn == nil {
		h.mu.Unlock()
		return ErrNoSurface
	}
	ch := make(chan error, 1)
	h.lockdownCh = ch
	h.mu.Unlock()

	h.push(LockdownPush{Event: EventLockdown, Command: "enter"})

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitLockdown asks the surface to leave full-screen mode. Fire and forget:
// exiting twice, or with no surface attached, is not an error.
func (h *SurfaceHub) ExitLockdown(ctx context.Context) error {
	h.push(LockdownPush{Event: EventLockdown, Command: "exit"})
	return nil
}

// Compliant probes the surface's lockdown state. No connection means
// non-compliant.
func (h *SurfaceHub) Compliant(ctx context.Context) (bool, error) {
	h.mu.Lock()
	if h.conn == nil {
		h.mu.Unlock()
		return false, nil
	}
	ch := make(chan bool, 1)
	h.probeCh = ch
	h.mu.Unlock()

	h.push(ProbePush{Event: EventProbe})

	select {
	case ok := <-ch:
		return ok, nil
	case <-ctx.Done():
		// An unanswered probe is treated as non-compliance, not an error.
		return false, nil
	}
}

func (h *SurfaceHub) Tick(timeLeftSeconds int) {
	h.push(TickPush{Event: EventTick, TimeLeftSeconds: timeLeftSeconds})
}

func (h *SurfaceHub) NotifyWarning(ack model.WarningAck) {
	h.push(WarningPush{Event: EventWarning, Warning: ack})
}

func (h *SurfaceHub) NotifySubmissionError(message string, fatal bool) {
	h.push(SubmitErrorPush{Event: EventSubmitError, Message: message, Fatal: fatal})
}

func (h *SurfaceHub) Redirect(outcome session.Outcome) {
	h.push(RedirectPush{Event: EventRedirect, Outcome: outcome})
}

// ─── Reply resolution (called by the stream read loop) ──────────────

func (h *SurfaceHub) resolveLockdown(ok bool, errMsg string) {
	h.mu.Lock()
	ch := h.lockdownCh
	h.lockdownCh = nil
	h.mu.Unlock()
	if ch == nil {
		return
	}
	if ok {
		ch <- nil
		return
	}
	if errMsg == "" {
		errMsg = "surface refused lockdown"
	}
	ch <- errors.New(errMsg)
}

func (h *SurfaceHub) resolveProbe(compliant bool) {
	h.mu.Lock()
	ch := h.probeCh
	h.probeCh = nil
	h.mu.Unlock()
	if ch == nil {
		return
	}
	ch <- compliant
}

var _ session.Surface = (*SurfaceHub)(nil)
