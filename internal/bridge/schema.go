package bridge

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stemsi/exstem-agent/internal/session"
)

// ─── Actions (Surface → Agent) ──────────────────────────────────────

type Action string

const (
	// ActionEnv reports an environment change or a suppressed restricted
	// action (kind carries the session.EnvEventKind).
	ActionEnv Action = "env"
	// ActionAnswer records an option selection.
	ActionAnswer Action = "answer"
	// ActionSubmit is the candidate's manual submit.
	ActionSubmit Action = "submit"
	// ActionLockdownResult answers a lockdown enter command.
	ActionLockdownResult Action = "lockdown_result"
	// ActionProbeResult answers a compliance probe.
	ActionProbeResult Action = "probe_result"
	ActionPing        Action = "ping"
)

// RequestPayload is the single inbound message shape; fields are used
// depending on Action.
type RequestPayload struct {
	Action Action `json:"action"`
	Kind   string `json:"kind,omitempty"`
	QID    string `json:"q_id,omitempty"`
	Key    string `json:"key,omitempty"`
	OK     bool   `json:"ok,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ─── Events (Agent → Surface) ───────────────────────────────────────

type Event string

const (
	EventTick        Event = "tick"
	EventWarning     Event = "warning"
	EventLockdown    Event = "lockdown"
	EventProbe       Event = "probe"
	EventRedirect    Event = "redirect"
	EventSubmitError Event = "submit_error"
	EventError       Event = "error"
	EventPong        Event = "pong"
)

type TickPush struct {
	Event           Event `json:"event"`
	TimeLeftSeconds int   `json:"time_left_seconds"`
}

type WarningPush struct {
	Event   Event            `json:"event"`
	Warning model.WarningAck `json:"warning"`
}

// LockdownPush commands the surface to enter or exit lockdown.
type LockdownPush struct {
	Event   Event  `json:"event"`
	Command string `json:"command"` // "enter" or "exit"
}

type ProbePush struct {
	Event Event `json:"event"`
}

type RedirectPush struct {
	Event   Event           `json:"event"`
	Outcome session.Outcome `json:"outcome"`
}

type SubmitErrorPush struct {
	Event   Event  `json:"event"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

type ErrorPush struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongPush struct {
	Event Event `json:"event"`
}

// writeTyped sends a strongly-typed push over the WebSocket.
func writeTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// readRequest reads and decodes one inbound message. It sets a read deadline.
func readRequest(conn *websocket.Conn, v *RequestPayload) error {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return conn.ReadJSON(v)
}
