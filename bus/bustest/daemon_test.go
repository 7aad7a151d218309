package bustest_test

import (
	"context"
	"slices"
	"testing"

	"github.com/danderson/notify/bus"
	"github.com/danderson/notify/bus/bustest"
)

func TestBus(t *testing.T) {
	b := bustest.New(t)
	conn := b.MustConn(t)
	if conn.LocalName() == "" {
		t.Error("connection has no unique name")
	}

	var names []string
	iface := conn.Peer("org.freedesktop.DBus").Object("/org/freedesktop/DBus").Interface("org.freedesktop.DBus")
	err := iface.Call(context.Background(), bus.Method{Name: "ListNames", Out: "as"}, nil, &names)
	if err != nil {
		t.Fatalf("ListNames on test bus: %v", err)
	}
	if !slices.Contains(names, conn.LocalName()) {
		t.Errorf("ListNames = %v, missing own name %q", names, conn.LocalName())
	}
}
