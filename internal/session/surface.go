package session

import (
	"context"

	"github.com/stemsi/exstem-agent/internal/model"
)

// SubmissionTrigger tags the origin of a finalization attempt. All three
// entry points funnel into the one SubmissionController path.
type SubmissionTrigger string

const (
	TriggerManual             SubmissionTrigger = "MANUAL"
	TriggerViolationThreshold SubmissionTrigger = "VIOLATION_THRESHOLD"
	TriggerTimeExpiry         SubmissionTrigger = "TIME_EXPIRY"
)

// Outcome is handed to the surface's navigation mechanism when the session
// reaches a terminal state.
type Outcome struct {
	Trigger       SubmissionTrigger `json:"trigger"`
	AutoSubmitted bool              `json:"auto_submitted"`
	Reason        string            `json:"reason"`
}

// EnvEventKind classifies environment change notifications and suppressed
// restricted actions reported by the exam surface.
type EnvEventKind string

const (
	EnvFullscreenExit     EnvEventKind = "fullscreen_exit"
	EnvVisibilityLost     EnvEventKind = "visibility_lost"
	EnvFocusLost          EnvEventKind = "focus_lost"
	EnvContextMenu        EnvEventKind = "context_menu"
	EnvReloadShortcut     EnvEventKind = "reload_shortcut"
	EnvFullscreenShortcut EnvEventKind = "fullscreen_shortcut"
	EnvTabShortcut        EnvEventKind = "tab_shortcut"
)

// Surface is the exam viewing surface the monitor controls: it enters and
// leaves lockdown on command, answers compliance probes, and renders the
// candidate-visible notifications. EnterLockdown and Compliant may block and
// are always called off the event loop; the notification methods must return
// promptly and never fail the session.
type Surface interface {
	EnterLockdown(ctx context.Context) error
	ExitLockdown(ctx context.Context) error
	Compliant(ctx context.Context) (bool, error)

	Tick(timeLeftSeconds int)
	NotifyWarning(ack model.WarningAck)
	// NotifySubmissionError surfaces a failed finalization. fatal=false means
	// the candidate may retry manually; fatal=true directs them to an
	// administrator.
	NotifySubmissionError(message string, fatal bool)
	Redirect(outcome Outcome)
}
