package notifications

import "fmt"

// ActionInvoked is the body of the ActionInvoked signal.
type ActionInvoked struct {
	// ID is the notification on which the action was invoked.
	ID uint32
	// ActionKey identifies the invoked action.
	ActionKey uint32
}

// NotificationClosed is the body of the NotificationClosed signal.
type NotificationClosed struct {
	// ID is the notification that was closed.
	ID uint32
	// Reason says why the notification was closed.
	Reason CloseReason
}

// CloseReason is the reason code carried by NotificationClosed.
type CloseReason uint32

const (
	ReasonExpired   CloseReason = 1
	ReasonDismissed CloseReason = 2
	ReasonClosed    CloseReason = 3
	ReasonUndefined CloseReason = 4
)

func (r CloseReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonDismissed:
		return "dismissed"
	case ReasonClosed:
		return "closed"
	case ReasonUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("CloseReason(%d)", uint32(r))
	}
}
