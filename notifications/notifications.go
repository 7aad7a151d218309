// Package notifications provides an interface to the Freedesktop
// notifications API.
//
// This corresponds to the org.freedesktop.Notifications service on
// the session bus.
package notifications

import (
	"context"

	"github.com/danderson/notify/bus"
	"github.com/godbus/dbus/v5"
)

const (
	// ServiceName is the well-known bus name of the notification
	// service.
	ServiceName = "org.freedesktop.Notifications"
	// ObjectPath is the object implementing InterfaceName.
	ObjectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	// InterfaceName is the DBus interface of the notification
	// service.
	InterfaceName = "org.freedesktop.Notifications"
)

// Wire declarations of the org.freedesktop.Notifications interface.
var (
	MethodCloseNotification    = bus.Method{Name: "CloseNotification", In: "u"}
	MethodGetCapabilities      = bus.Method{Name: "GetCapabilities", Out: "as"}
	MethodGetServerInformation = bus.Method{Name: "GetServerInformation", Out: "ssss"}
	MethodNotify               = bus.Method{Name: "Notify", In: "susssasa{sv}i", Out: "u"}

	SignalActionInvoked      = bus.Signal{Name: "ActionInvoked", Body: "uu"}
	SignalNotificationClosed = bus.Signal{Name: "NotificationClosed", Body: "uu"}
)

// Notifications is the client side of the notifications API.
type Notifications interface {
	// CloseNotification asks the service to withdraw a previously
	// shown notification.
	CloseNotification(ctx context.Context, id uint32) error
	// GetCapabilities returns the optional features supported by
	// the service.
	GetCapabilities(ctx context.Context) ([]string, error)
	// GetServerInformation returns static metadata about the
	// service.
	GetServerInformation(ctx context.Context) (ServerInformation, error)
	// Notify shows a notification and returns its ID.
	Notify(ctx context.Context, req NotifyRequest) (uint32, error)

	// ActionInvoked returns a stream of actions activated by the
	// user on shown notifications.
	ActionInvoked(ctx context.Context) (*bus.Watcher[ActionInvoked], error)
	// NotificationClosed returns a stream of notifications that
	// were dismissed, expired or closed.
	NotificationClosed(ctx context.Context) (*bus.Watcher[NotificationClosed], error)
}

// Expiry timeouts with special meaning in [NotifyRequest].
const (
	// ExpireDefault lets the service pick the expiry timeout.
	ExpireDefault int32 = -1
	// ExpireNever makes the notification persist until dismissed.
	ExpireNever int32 = 0
)

// NotifyRequest is the argument tuple of Notify.
type NotifyRequest struct {
	// AppName is the human readable name of the sending
	// application.
	AppName string
	// ReplacesID is the ID of a notification to replace
	// atomically, or 0 to create a new notification.
	ReplacesID uint32
	// AppIcon is a freedesktop icon name or a file:// URI.
	AppIcon string
	// Summary is a single line overview of the notification.
	Summary string
	// Body is the detailed notification text. It may contain
	// markup if the service has the "body-markup" capability.
	Body string
	// Actions is a flat list of action key and label pairs:
	// key1, label1, key2, label2...
	Actions []string
	// Hints are optional presentation hints, see [EncodeHints].
	Hints Hints
	// ExpireTimeout is the display duration in milliseconds, or
	// one of ExpireDefault and ExpireNever.
	ExpireTimeout int32
}

// args returns the request's wire argument tuple.
func (r NotifyRequest) args() ([]any, error) {
	actions := r.Actions
	if actions == nil {
		actions = []string{}
	}
	hints, err := r.Hints.Variants()
	if err != nil {
		return nil, err
	}
	return []any{
		r.AppName,
		r.ReplacesID,
		r.AppIcon,
		r.Summary,
		r.Body,
		actions,
		hints,
		r.ExpireTimeout,
	}, nil
}

// ServerInformation is the reply to GetServerInformation.
type ServerInformation struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// Freedesktop is the Notifications implementation offered under the
// well-known name org.freedesktop.Notifications.
//
// A Freedesktop is a lightweight handle, safe to copy and to use
// concurrently.
type Freedesktop struct{ iface bus.Interface }

var _ Notifications = Freedesktop{}

// New returns an interface to the notification service reached
// through f. If f is nil, New uses [bus.Default].
func New(f bus.Facility) Freedesktop {
	if f == nil {
		f = bus.Default()
	}
	obj := bus.NewPeer(f, ServiceName).Object(ObjectPath)
	return Bind(obj.Interface(InterfaceName))
}

// Bind returns a Freedesktop on the given interface, for services
// that offer the notifications API under a different name or path.
func Bind(iface bus.Interface) Freedesktop {
	return Freedesktop{iface: iface}
}

// Interface returns the bus interface the handle is bound to.
func (n Freedesktop) Interface() bus.Interface { return n.iface }

func (n Freedesktop) CloseNotification(ctx context.Context, id uint32) error {
	return n.iface.Call(ctx, MethodCloseNotification, []any{id})
}

func (n Freedesktop) GetCapabilities(ctx context.Context) ([]string, error) {
	var caps []string
	if err := n.iface.Call(ctx, MethodGetCapabilities, nil, &caps); err != nil {
		return nil, err
	}
	return caps, nil
}

// Capabilities reports the parsed capabilities of the notification
// service.
func (n Freedesktop) Capabilities(ctx context.Context) (Capabilities, error) {
	cs, err := n.GetCapabilities(ctx)
	if err != nil {
		return Capabilities{}, err
	}
	return ParseCapabilities(cs), nil
}

func (n Freedesktop) GetServerInformation(ctx context.Context) (ServerInformation, error) {
	var info ServerInformation
	err := n.iface.Call(ctx, MethodGetServerInformation, nil, &info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	if err != nil {
		return ServerInformation{}, err
	}
	return info, nil
}

func (n Freedesktop) Notify(ctx context.Context, req NotifyRequest) (uint32, error) {
	args, err := req.args()
	if err != nil {
		return 0, bus.MarshalError{
			Member:    n.iface.Name() + "." + MethodNotify.Name,
			Direction: bus.Request,
			Want:      MethodNotify.In,
			Err:       err,
		}
	}
	var id uint32
	if err := n.iface.Call(ctx, MethodNotify, args, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (n Freedesktop) ActionInvoked(ctx context.Context) (*bus.Watcher[ActionInvoked], error) {
	return bus.Watch[ActionInvoked](ctx, n.iface, SignalActionInvoked)
}

func (n Freedesktop) NotificationClosed(ctx context.Context) (*bus.Watcher[NotificationClosed], error) {
	return bus.Watch[NotificationClosed](ctx, n.iface, SignalNotificationClosed)
}
