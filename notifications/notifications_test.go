package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danderson/notify/bus"
	"github.com/danderson/notify/bus/bustest"
	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/kr/pretty"
)

// fakeService is a scripted notification service on a bustest.Fake.
type fakeService struct {
	*bustest.Fake

	mu     sync.Mutex
	lastID uint32
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	s := &fakeService{Fake: bustest.NewFake()}
	s.handle("Notify", func(ctx context.Context, args []any) ([]any, error) {
		if id := args[1].(uint32); id != 0 {
			return []any{id}, nil
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastID++
		return []any{s.lastID}, nil
	})
	s.handle("GetCapabilities", func(ctx context.Context, args []any) ([]any, error) {
		return []any{[]string{"actions", "body", "icon-multi", "x-custom"}}, nil
	})
	s.handle("GetServerInformation", func(ctx context.Context, args []any) ([]any, error) {
		return []any{"fake", "example.org", "1.0", "1.2"}, nil
	})
	s.handle("CloseNotification", func(ctx context.Context, args []any) ([]any, error) {
		s.Emit(ObjectPath, InterfaceName, "NotificationClosed", args[0].(uint32), uint32(ReasonClosed))
		return nil, nil
	})
	return s
}

func (s *fakeService) handle(method string, h bustest.Handler) {
	s.Handle(ObjectPath, InterfaceName, method, h)
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	panic("unreachable")
}

func waitClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return
			}
			t.Fatalf("got unexpected event %# v", pretty.Formatter(v))
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for channel close")
		}
	}
}

func TestNotify(t *testing.T) {
	svc := newFakeService(t)
	n := New(svc)
	ctx := context.Background()

	req := NotifyRequest{
		AppName:       "test",
		AppIcon:       "dialog-information",
		Summary:       "hello",
		Body:          "world",
		Actions:       []string{"default", "Open"},
		Hints:         EncodeHints(Category("email"), Position(10, 20)),
		ExpireTimeout: ExpireDefault,
	}
	id, err := n.Notify(ctx, req)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if id == 0 {
		t.Fatal("Notify returned id 0 for a new notification")
	}

	calls := svc.Calls()
	if len(calls) != 1 {
		t.Fatalf("service got %d calls, want 1", len(calls))
	}
	c := calls[0]
	if c.Destination != ServiceName || c.Path != ObjectPath || c.Interface != InterfaceName || c.Method.Name != "Notify" {
		t.Errorf("call went to %s %s %s, want %s %s %s.Notify", c.Destination, c.Path, c, ServiceName, ObjectPath, InterfaceName)
	}
	if got := dbus.SignatureOf(c.Args...).String(); got != "susssasa{sv}i" {
		t.Errorf("Notify argument signature is %q, want %q", got, "susssasa{sv}i")
	}
	if len(c.Args) != 8 {
		t.Fatalf("Notify sent %d arguments, want 8", len(c.Args))
	}
	hints := c.Args[6].(map[string]dbus.Variant)
	gotHints := map[string]any{}
	for k, v := range hints {
		gotHints[k] = v.Value()
	}
	wantHints := map[string]any{"category": "email", "x": int32(10), "y": int32(20)}
	if diff := cmp.Diff(gotHints, wantHints); diff != "" {
		t.Errorf("wire hints diff (-got+want):\n%s", diff)
	}
	if got := c.Args[7].(int32); got != -1 {
		t.Errorf("expire timeout is %d, want -1", got)
	}

	id2, err := n.Notify(ctx, NotifyRequest{Summary: "again"})
	if err != nil {
		t.Fatalf("second Notify: %v", err)
	}
	if id2 == id {
		t.Errorf("second notification reused id %d", id)
	}
	if got := svc.Calls()[1].Args[5].([]string); got == nil {
		t.Error("nil actions sent as nil slice, want empty")
	}
}

func TestNotifyReplaces(t *testing.T) {
	svc := newFakeService(t)
	id, err := New(svc).Notify(context.Background(), NotifyRequest{ReplacesID: 42, Summary: "updated"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if id != 42 {
		t.Errorf("replacing notification got id %d, want 42", id)
	}
}

func TestNotifyBadHints(t *testing.T) {
	tests := map[string]Hints{
		"zero hint":   {HintCategory: {}},
		"wrong type":  {HintCategory: {SigStr, int32(5)}},
		"wrong image": {HintImageData: {SigImage, "not an image"}},
		"unsendable":  {HintX: {SigInt, func() {}}},
	}
	for name, hints := range tests {
		t.Run(name, func(t *testing.T) {
			svc := newFakeService(t)
			id, err := New(svc).Notify(context.Background(), NotifyRequest{Summary: "x", Hints: hints})
			var me bus.MarshalError
			if !errors.As(err, &me) {
				t.Fatalf("Notify error is %v, want MarshalError", err)
			}
			if me.Direction != bus.Request || me.Member != "org.freedesktop.Notifications.Notify" || me.Err == nil {
				t.Errorf("got MarshalError %+v", me)
			}
			if id != 0 {
				t.Errorf("failed Notify returned id %d", id)
			}
			if n := len(svc.Calls()); n != 0 {
				t.Errorf("malformed Notify reached the service (%d calls)", n)
			}
		})
	}
}

func TestCapabilities(t *testing.T) {
	n := New(newFakeService(t))
	ctx := context.Background()

	raw, err := n.GetCapabilities(ctx)
	if err != nil {
		t.Fatalf("GetCapabilities: %v", err)
	}
	if diff := cmp.Diff(raw, []string{"actions", "body", "icon-multi", "x-custom"}); diff != "" {
		t.Errorf("GetCapabilities diff (-got+want):\n%s", diff)
	}

	caps, err := n.Capabilities(ctx)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	want := Capabilities{
		Actions:       true,
		Body:          true,
		Icon:          true,
		IconAnimation: true,
		Unknown:       []string{"x-custom"},
	}
	if diff := cmp.Diff(caps, want); diff != "" {
		t.Errorf("Capabilities diff (-got+want):\n%s", diff)
	}
}

func TestGetServerInformation(t *testing.T) {
	info, err := New(newFakeService(t)).GetServerInformation(context.Background())
	if err != nil {
		t.Fatalf("GetServerInformation: %v", err)
	}
	want := ServerInformation{Name: "fake", Vendor: "example.org", Version: "1.0", SpecVersion: "1.2"}
	if diff := cmp.Diff(info, want); diff != "" {
		t.Errorf("GetServerInformation diff (-got+want):\n%s", diff)
	}
}

func TestCloseNotification(t *testing.T) {
	svc := newFakeService(t)
	n := New(svc)
	ctx := context.Background()

	w, err := n.NotificationClosed(ctx)
	if err != nil {
		t.Fatalf("NotificationClosed: %v", err)
	}
	defer w.Close()

	id, err := n.Notify(ctx, NotifyRequest{Summary: "bye"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := n.CloseNotification(ctx, id); err != nil {
		t.Fatalf("CloseNotification: %v", err)
	}
	got := recv(t, w.Chan())
	want := NotificationClosed{ID: id, Reason: ReasonClosed}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRemoteErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("error reply", func(t *testing.T) {
		svc := newFakeService(t)
		svc.handle("Notify", func(context.Context, []any) ([]any, error) {
			return nil, bus.CallError{Name: "org.freedesktop.Notifications.Error.Busy", Detail: "try later"}
		})
		id, err := New(svc).Notify(ctx, NotifyRequest{Summary: "x"})
		var ce bus.CallError
		if !errors.As(err, &ce) {
			t.Fatalf("Notify error is %v, want CallError", err)
		}
		if ce.Name != "org.freedesktop.Notifications.Error.Busy" || ce.Detail != "try later" {
			t.Errorf("got CallError %+v", ce)
		}
		if id != 0 {
			t.Errorf("failed Notify returned id %d", id)
		}
	})

	t.Run("no such object", func(t *testing.T) {
		_, err := New(bustest.NewFake()).GetCapabilities(ctx)
		var ce bus.CallError
		if !errors.As(err, &ce) {
			t.Fatalf("GetCapabilities error is %v, want CallError", err)
		}
		if ce.Name != "org.freedesktop.DBus.Error.UnknownMethod" {
			t.Errorf("got error name %q", ce.Name)
		}
	})

	t.Run("reply type mismatch", func(t *testing.T) {
		svc := newFakeService(t)
		svc.handle("Notify", func(context.Context, []any) ([]any, error) {
			return []any{int32(5)}, nil
		})
		id, err := New(svc).Notify(ctx, NotifyRequest{Summary: "x"})
		var me bus.MarshalError
		if !errors.As(err, &me) {
			t.Fatalf("Notify error is %v, want MarshalError", err)
		}
		if me.Direction != bus.Reply || me.Want != "u" || me.Got != "i" {
			t.Errorf("got MarshalError %+v", me)
		}
		if id != 0 {
			t.Errorf("failed Notify returned id %d", id)
		}
	})

	t.Run("server information arity", func(t *testing.T) {
		svc := newFakeService(t)
		svc.handle("GetServerInformation", func(context.Context, []any) ([]any, error) {
			return []any{"only", "three", "fields"}, nil
		})
		_, err := New(svc).GetServerInformation(ctx)
		var me bus.MarshalError
		if !errors.As(err, &me) {
			t.Fatalf("GetServerInformation error is %v, want MarshalError", err)
		}
	})
}

func TestCancel(t *testing.T) {
	svc := newFakeService(t)
	started := make(chan struct{})
	svc.handle("GetCapabilities", func(ctx context.Context, args []any) ([]any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	n := New(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := n.GetCapabilities(ctx)
		errc <- err
	}()
	<-started
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("canceled call returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("canceled call did not return")
	}

	if _, err := n.GetServerInformation(context.Background()); err != nil {
		t.Fatalf("call after cancellation failed: %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	svc := newFakeService(t)
	n := New(svc)
	ctx := context.Background()

	actions, err := n.ActionInvoked(ctx)
	if err != nil {
		t.Fatalf("ActionInvoked: %v", err)
	}
	closed, err := n.NotificationClosed(ctx)
	if err != nil {
		t.Fatalf("NotificationClosed: %v", err)
	}
	defer closed.Close()

	svc.Emit(ObjectPath, InterfaceName, "ActionInvoked", uint32(1), uint32(7))
	if got, want := recv(t, actions.Chan()), (ActionInvoked{ID: 1, ActionKey: 7}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	if err := actions.Close(); err != nil {
		t.Fatalf("closing ActionInvoked watcher: %v", err)
	}
	if got := svc.Subscribers(); got != 1 {
		t.Errorf("%d subscribers after close, want 1", got)
	}

	svc.Emit(ObjectPath, InterfaceName, "ActionInvoked", uint32(2), uint32(8))
	svc.Emit(ObjectPath, InterfaceName, "NotificationClosed", uint32(2), uint32(ReasonDismissed))

	waitClosed(t, actions.Chan())
	if got, want := recv(t, closed.Chan()), (NotificationClosed{ID: 2, Reason: ReasonDismissed}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUnsubscribeOnCancel(t *testing.T) {
	svc := newFakeService(t)
	ctx, cancel := context.WithCancel(context.Background())
	w, err := New(svc).ActionInvoked(ctx)
	if err != nil {
		t.Fatalf("ActionInvoked: %v", err)
	}
	defer w.Close()

	cancel()
	waitClosed(t, w.Chan())
	deadline := time.Now().Add(5 * time.Second)
	for svc.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%d subscribers after cancel, want 0", svc.Subscribers())
		}
		time.Sleep(time.Millisecond)
	}
	for i := range uint32(100) {
		svc.Emit(ObjectPath, InterfaceName, "ActionInvoked", i, uint32(0))
	}
}

func TestSignalFiltering(t *testing.T) {
	svc := newFakeService(t)
	n := New(svc)
	ctx := context.Background()

	// Emitted before anyone listens, never observed.
	svc.Emit(ObjectPath, InterfaceName, "ActionInvoked", uint32(100), uint32(0))

	w, err := n.ActionInvoked(ctx)
	if err != nil {
		t.Fatalf("ActionInvoked: %v", err)
	}
	defer w.Close()

	svc.Emit(ObjectPath, InterfaceName, "ActionInvoked", uint32(1), "default")
	svc.Emit("/some/other/object", InterfaceName, "ActionInvoked", uint32(2), uint32(0))
	svc.Emit(ObjectPath, "org.example.Other", "ActionInvoked", uint32(3), uint32(0))
	svc.Emit(ObjectPath, InterfaceName, "ActionInvoked", uint32(4), uint32(9))

	if got, want := recv(t, w.Chan()), (ActionInvoked{ID: 4, ActionKey: 9}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := w.Dropped(); got != 1 {
		t.Errorf("watcher dropped %d signals, want 1 (the malformed one)", got)
	}
}

func TestNewDefault(t *testing.T) {
	n := New(nil)
	iface := n.Interface()
	if iface.Facility() != bus.Default() {
		t.Errorf("New(nil) uses facility %T, want bus.Default()", iface.Facility())
	}
	if iface.Peer().Name() != ServiceName || iface.Object().Path() != ObjectPath || iface.Name() != InterfaceName {
		t.Errorf("New(nil) bound to %s", iface)
	}
}

func TestDeclarations(t *testing.T) {
	for _, m := range []bus.Method{MethodCloseNotification, MethodGetCapabilities, MethodGetServerInformation, MethodNotify} {
		if err := m.Valid(); err != nil {
			t.Errorf("invalid method declaration: %v", err)
		}
	}
	for _, s := range []bus.Signal{SignalActionInvoked, SignalNotificationClosed} {
		if err := s.Valid(); err != nil {
			t.Errorf("invalid signal declaration: %v", err)
		}
	}
}
