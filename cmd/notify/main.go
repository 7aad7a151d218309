// Command notify sends and observes desktop notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/taskgroup"
	"github.com/danderson/notify/bus"
	"github.com/danderson/notify/notifications"
	"github.com/kr/pretty"
	"github.com/rs/zerolog"
)

var globalArgs struct {
	UseSystemBus bool   `flag:"system,Connect to the system bus instead of the session bus"`
	Verbose      bool   `flag:"v,Log debug output to stderr"`
	ConfigPath   string `flag:"config,Config file path (default $XDG_CONFIG_HOME/notify/config.toml)"`
}

var infoArgs struct {
	Raw bool `flag:"raw,Dump the raw reply"`
}

func main() {
	root := &command.C{
		Name:     "notify",
		Usage:    "command args...",
		Help:     "Send and observe desktop notifications over DBus.",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:     "send",
				Usage:    "send [flags] summary [body...]",
				Help:     sendHelp,
				SetFlags: command.Flags(flax.MustBind, &sendArgs),
				Run:      command.Adapt(runSend),
			},
			{
				Name:  "close",
				Usage: "close id",
				Help:  "Close a notification.",
				Run:   command.Adapt(runClose),
			},
			{
				Name:  "capabilities",
				Usage: "capabilities",
				Help:  "List the notification service's capabilities.",
				Run:   command.Adapt(runCapabilities),
			},
			{
				Name:     "info",
				Usage:    "info",
				Help:     "Show the notification service's identity.",
				SetFlags: command.Flags(flax.MustBind, &infoArgs),
				Run:      command.Adapt(runInfo),
			},
			{
				Name:  "listen",
				Usage: "listen",
				Help:  "Print action and close events until interrupted.",
				Run:   command.Adapt(runListen),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

// session is the state shared by every subcommand.
type session struct {
	ctx  context.Context
	cfg  config
	conn *bus.Conn
	n    notifications.Freedesktop
}

func (s *session) Close() error { return s.conn.Close() }

func openSession(env *command.Env) (*session, error) {
	log := newLogger(os.Stderr, globalArgs.Verbose)
	ctx := log.WithContext(env.Context())

	cfg, err := loadConfig(globalArgs.ConfigPath)
	if err != nil {
		return nil, err
	}

	var conn *bus.Conn
	if globalArgs.UseSystemBus {
		conn, err = bus.SystemBus(ctx)
	} else {
		conn, err = bus.SessionBus(ctx)
	}
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("name", conn.LocalName()).Msg("connected to bus")

	return &session{
		ctx:  ctx,
		cfg:  cfg,
		conn: conn,
		n:    notifications.New(conn),
	}, nil
}

func runClose(env *command.Env, idStr string) error {
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid notification ID %q", idStr)
	}
	s, err := openSession(env)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.n.CloseNotification(s.ctx, uint32(id)); err != nil {
		return fmt.Errorf("closing notification %d: %w", id, err)
	}
	return nil
}

func runCapabilities(env *command.Env) error {
	s, err := openSession(env)
	if err != nil {
		return err
	}
	defer s.Close()

	caps, err := s.n.GetCapabilities(s.ctx)
	if err != nil {
		return fmt.Errorf("getting capabilities: %w", err)
	}
	slices.Sort(caps)
	for _, c := range caps {
		fmt.Println(c)
	}
	if unknown := notifications.ParseCapabilities(caps).Unknown; len(unknown) > 0 {
		zerolog.Ctx(s.ctx).Debug().Strs("capabilities", unknown).Msg("service reports unrecognized capabilities")
	}
	return nil
}

func runInfo(env *command.Env) error {
	s, err := openSession(env)
	if err != nil {
		return err
	}
	defer s.Close()

	info, err := s.n.GetServerInformation(s.ctx)
	if err != nil {
		return fmt.Errorf("getting server information: %w", err)
	}
	if infoArgs.Raw {
		fmt.Printf("%# v\n", pretty.Formatter(info))
		return nil
	}
	fmt.Printf("%s %s (%s), protocol version %s\n", info.Name, info.Version, info.Vendor, info.SpecVersion)
	return nil
}

func runListen(env *command.Env) error {
	s, err := openSession(env)
	if err != nil {
		return err
	}
	defer s.Close()

	actions, err := s.n.ActionInvoked(s.ctx)
	if err != nil {
		return fmt.Errorf("watching actions: %w", err)
	}
	defer actions.Close()
	closed, err := s.n.NotificationClosed(s.ctx)
	if err != nil {
		return fmt.Errorf("watching closes: %w", err)
	}
	defer closed.Close()

	out := make(chan string)
	g := taskgroup.New(nil)
	g.Go(func() error {
		for ev := range actions.Chan() {
			out <- fmt.Sprintf("action %d on notification %d", ev.ActionKey, ev.ID)
		}
		return nil
	})
	g.Go(func() error {
		for ev := range closed.Chan() {
			out <- fmt.Sprintf("notification %d closed: %s", ev.ID, ev.Reason)
		}
		return nil
	})
	go func() {
		g.Wait()
		close(out)
	}()

	fmt.Println("Listening for notification events...")
	for msg := range out {
		fmt.Println(msg)
	}
	if d := actions.Dropped() + closed.Dropped(); d > 0 {
		fmt.Printf("%d events lost\n", d)
	}
	if err := s.ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// splitActions parses a comma-separated list of key=label pairs into
// the flat key, label list Notify expects.
func splitActions(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var ret []string
	for _, a := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid action %q, want key=label", a)
		}
		ret = append(ret, k, v)
	}
	return ret, nil
}
