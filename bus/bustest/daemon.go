// Package bustest provides helpers for testing code built on package
// bus: an in-memory [Fake] facility, and an isolated dbus-daemon
// instance for integration tests.
package bustest

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/danderson/notify/bus"
)

//go:embed bus.config
var busConfig string

// Available reports whether dbus-daemon is available for testing
// against a real bus.
func Available() bool {
	_, err := exec.LookPath("dbus-daemon")
	return err == nil
}

// Bus is an isolated DBus instance for tests.
type Bus struct {
	cmd  *exec.Cmd
	sock string

	stop    chan struct{}
	stopped chan struct{}
}

// New launches a DBus instance dedicated to the calling test. The
// instance is shut down when the test completes.
//
// If [Available] is false, New calls t.Skip to skip the calling test.
func New(t *testing.T) *Bus {
	t.Helper()
	if !Available() {
		t.Skip("dbus-daemon not available, cannot run test bus")
	}
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "bus.config")
	if err := os.WriteFile(cfgPath, []byte(busConfig), 0600); err != nil {
		t.Fatalf("writing bus config: %v", err)
	}

	ret := &Bus{
		sock:    filepath.Join(tmp, "bus.sock"),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	ret.cmd = exec.Command("dbus-daemon", "--config-file="+cfgPath, "--nofork", "--nopidfile", "--nosyslog", "--address="+ret.Address())
	ret.cmd.Stdout = os.Stdout
	ret.cmd.Stderr = os.Stderr
	if err := ret.cmd.Start(); err != nil {
		t.Fatalf("starting bus: %v", err)
	}
	t.Cleanup(ret.close)

	go func() {
		defer close(ret.stopped)
		err := ret.cmd.Wait()
		select {
		case <-ret.stop:
		default:
			panic(fmt.Errorf("bus stopped prematurely: %w", err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for ctx.Err() == nil {
		_, err := os.Stat(ret.sock)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("waiting for bus socket: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := ctx.Err(); err != nil {
		t.Fatalf("bus failed to start: %v", err)
	}
	return ret
}

func (b *Bus) close() {
	close(b.stop)
	b.cmd.Process.Kill()
	select {
	case <-b.stopped:
	case <-time.After(10 * time.Second):
		log.Print("timed out waiting for bus to stop")
	}
}

// Address returns the bus's DBus address.
func (b *Bus) Address() string {
	return "unix:path=" + b.sock
}

// MustConn returns a connection to the bus, closed when the test
// completes. It causes an immediate test failure with t.Fatal if it
// is unable to connect.
func (b *Bus) MustConn(t *testing.T) *bus.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ret, err := bus.Dial(ctx, b.Address())
	if err != nil {
		t.Fatalf("connecting to test bus: %v", err)
	}
	t.Cleanup(func() { ret.Close() })
	return ret
}
