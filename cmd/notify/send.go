package main

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"

	"github.com/creachadair/command"
	"github.com/danderson/notify/bus"
	"github.com/danderson/notify/notifications"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const sendHelp = `Send a notification and print its ID.

Actions are given as a comma-separated list of key=label pairs. With
--wait, notify waits until one of the notification's actions is
invoked or the notification is closed, and prints which.

--urgency is checked for validity but is not yet sent to the
notification service, so it has no visible effect.

Unset flags fall back to the values in the config file.`

var sendArgs sendFlags

type sendFlags struct {
	App           string `flag:"app,Application name"`
	Icon          string `flag:"icon,Application icon name or file:// URI"`
	Actions       string `flag:"actions,Comma-separated key=label actions"`
	Timeout       string `flag:"timeout,Display duration: a Go duration, 'default' or 'never'"`
	Replaces      int    `flag:"replaces,ID of a notification to replace"`
	Category      string `flag:"category,Notification category, e.g. email.arrived"`
	DesktopEntry  string `flag:"desktop-entry,Desktop entry name of the sending application"`
	ImagePath     string `flag:"image-path,Image to show, as an icon name or file:// URI"`
	ImageFile     string `flag:"image-file,Image file to send inline as image-data"`
	SoundFile     string `flag:"sound-file,Sound file to play"`
	SoundName     string `flag:"sound-name,Themed sound name to play"`
	SuppressSound bool   `flag:"suppress-sound,Ask the service not to play any sound"`
	Resident      bool   `flag:"resident,Keep the notification after an action is invoked"`
	Transient     bool   `flag:"transient,Bypass the service's persistence"`
	ActionIcons   bool   `flag:"action-icons,Show action keys as icon names"`
	Position      string `flag:"position,Screen position as x,y"`
	Urgency       string `flag:"urgency,Urgency: low, normal or critical (validated, not yet sent)"`
	Wait          bool   `flag:"wait,Wait for an action or close and print it"`
}

func runSend(env *command.Env, summary string, body ...string) error {
	s, err := openSession(env)
	if err != nil {
		return err
	}
	defer s.Close()

	req, err := sendArgs.request(s.cfg, summary, strings.Join(body, " "))
	if err != nil {
		return err
	}

	var (
		actions *bus.Watcher[notifications.ActionInvoked]
		closed  *bus.Watcher[notifications.NotificationClosed]
	)
	if sendArgs.Wait {
		// Subscribe first, the notification can close before Notify
		// returns.
		if actions, err = s.n.ActionInvoked(s.ctx); err != nil {
			return fmt.Errorf("watching actions: %w", err)
		}
		defer actions.Close()
		if closed, err = s.n.NotificationClosed(s.ctx); err != nil {
			return fmt.Errorf("watching closes: %w", err)
		}
		defer closed.Close()
	}

	id, err := s.n.Notify(s.ctx, req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	fmt.Println(id)
	if !sendArgs.Wait {
		return nil
	}

	for {
		select {
		case ev, ok := <-actions.Chan():
			if !ok {
				return errStreamEnded
			}
			if ev.ID == id {
				fmt.Printf("action %d\n", ev.ActionKey)
				return nil
			}
		case ev, ok := <-closed.Chan():
			if !ok {
				return errStreamEnded
			}
			if ev.ID == id {
				fmt.Printf("closed: %s\n", ev.Reason)
				return nil
			}
		}
	}
}

var errStreamEnded = errors.New("stopped waiting before the notification closed")

// request builds the Notify request described by the flags, falling
// back to cfg for unset values.
func (f sendFlags) request(cfg config, summary, body string) (notifications.NotifyRequest, error) {
	ret := notifications.NotifyRequest{
		AppName: cmp.Or(f.App, cfg.AppName),
		AppIcon: cmp.Or(f.Icon, cfg.AppIcon),
		Summary: summary,
		Body:    body,
	}

	if f.Replaces < 0 || int64(f.Replaces) > int64(^uint32(0)) {
		return ret, fmt.Errorf("invalid --replaces ID %d", f.Replaces)
	}
	ret.ReplacesID = uint32(f.Replaces)

	timeout, err := parseTimeout(cmp.Or(f.Timeout, cfg.Timeout))
	if err != nil {
		return ret, err
	}
	ret.ExpireTimeout = timeout

	if ret.Actions, err = splitActions(f.Actions); err != nil {
		return ret, err
	}

	var opts []notifications.HintOption
	if c := cmp.Or(f.Category, cfg.Category); c != "" {
		opts = append(opts, notifications.Category(c))
	}
	if d := cmp.Or(f.DesktopEntry, cfg.DesktopEntry); d != "" {
		opts = append(opts, notifications.DesktopEntry(d))
	}
	if f.ImagePath != "" {
		opts = append(opts, notifications.ImagePath(f.ImagePath))
	}
	if f.ImageFile != "" {
		img, err := readImage(f.ImageFile)
		if err != nil {
			return ret, err
		}
		opts = append(opts, notifications.Image(notifications.ImageFromImage(img, cfg.ImageMaxSide)))
	}
	if f.SoundFile != "" {
		opts = append(opts, notifications.SoundFile(f.SoundFile))
	}
	if f.SoundName != "" {
		opts = append(opts, notifications.SoundName(f.SoundName))
	}
	if f.SuppressSound {
		opts = append(opts, notifications.SuppressSound(true))
	}
	if f.Resident {
		opts = append(opts, notifications.Resident(true))
	}
	if f.Transient {
		opts = append(opts, notifications.Transient(true))
	}
	if f.ActionIcons {
		opts = append(opts, notifications.ActionIcons(true))
	}
	if f.Position != "" {
		x, y, err := parsePosition(f.Position)
		if err != nil {
			return ret, err
		}
		opts = append(opts, notifications.Position(x, y))
	}
	if f.Urgency != "" {
		u, err := parseUrgency(f.Urgency)
		if err != nil {
			return ret, err
		}
		opts = append(opts, notifications.WithUrgency(u))
	}
	ret.Hints = notifications.EncodeHints(opts...)
	return ret, nil
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

func parsePosition(s string) (x, y int32, err error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid position %q, want x,y", s)
	}
	xv, err := strconv.ParseInt(strings.TrimSpace(xs), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid position %q: %w", s, err)
	}
	yv, err := strconv.ParseInt(strings.TrimSpace(ys), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid position %q: %w", s, err)
	}
	return int32(xv), int32(yv), nil
}

func parseUrgency(s string) (notifications.Urgency, error) {
	switch strings.ToLower(s) {
	case "low":
		return notifications.UrgencyLow, nil
	case "normal":
		return notifications.UrgencyNormal, nil
	case "critical":
		return notifications.UrgencyCritical, nil
	default:
		return 0, fmt.Errorf("unknown urgency %q", s)
	}
}
