package notifications

// Capabilities enumerates the optional capabilities of a notification
// service, as reported by GetCapabilities.
//
// GNOME Shell reports actions, body, body-markup, icon-static,
// persistence and sound. Plasma adds body-hyperlinks, body-images and
// its own extensions. Few services report action-icons or icon-multi.
type Capabilities struct {
	// Actions ("actions") reports whether the service displays the
	// actions of a NotifyRequest. The service announces the user's
	// choice with ActionInvoked.
	Actions bool
	// ActionIcons ("action-icons") reports whether action keys are
	// interpreted as icon names when the [ActionIcons] hint is set.
	ActionIcons bool
	// Body ("body") reports whether the body text is shown at all.
	// Services without it show only the summary.
	Body bool
	// BodyLinks ("body-hyperlinks") reports whether <a href> in the
	// body becomes a clickable link.
	BodyLinks bool
	// BodyImages ("body-images") reports whether <img> in the body
	// is rendered.
	BodyImages bool
	// BodyMarkup ("body-markup") reports whether the body is parsed
	// as the protocol's small HTML subset. Without it, tags are
	// shown literally.
	BodyMarkup bool
	// Icon ("icon-static" or "icon-multi") reports whether
	// AppIcon and image hints are shown.
	Icon bool
	// IconAnimation ("icon-multi") reports whether multi-frame
	// icons are animated instead of showing their first frame.
	IconAnimation bool
	// Persistence ("persistence") reports whether notifications are
	// kept, for example in a history tray, until the user dismisses
	// them.
	Persistence bool
	// Sound ("sound") reports whether the sound-file, sound-name and
	// suppress-sound hints are honoured.
	Sound bool

	// Inhibitions ("inhibitions") reports support for Plasma's
	// Inhibit method, which silences notifications for a while.
	// It is not part of the freedesktop protocol.
	Inhibitions bool
	// InlineReply ("inline-reply") reports support for Plasma's
	// text reply field and its NotificationReplied signal. It is
	// not part of the freedesktop protocol.
	InlineReply bool
	// ContextURLs ("x-kde-urls") reports whether Plasma's x-kde-urls
	// hint is used to offer file actions or link previews.
	ContextURLs bool
	// DisplayAppName ("x-kde-display-appname") reports whether the
	// x-kde-display-appname hint can override the name shown for
	// the sender.
	DisplayAppName bool
	// DisplayOriginName ("x-kde-origin-name") reports whether a
	// secondary origin, such as a chat contact or a website, can be
	// shown with the x-kde-origin-name hint.
	DisplayOriginName bool

	// Unknown collects the capability strings that aren't known to
	// this package, in the order the service reported them.
	Unknown []string
}

var capabilityFlags = map[string]func(*Capabilities){
	"actions":         func(c *Capabilities) { c.Actions = true },
	"action-icons":    func(c *Capabilities) { c.ActionIcons = true },
	"body":            func(c *Capabilities) { c.Body = true },
	"body-hyperlinks": func(c *Capabilities) { c.BodyLinks = true },
	"body-images":     func(c *Capabilities) { c.BodyImages = true },
	"body-markup":     func(c *Capabilities) { c.BodyMarkup = true },
	"icon-static":     func(c *Capabilities) { c.Icon = true },
	"icon-multi":      func(c *Capabilities) { c.Icon, c.IconAnimation = true, true },
	"persistence":     func(c *Capabilities) { c.Persistence = true },
	"sound":           func(c *Capabilities) { c.Sound = true },

	"inhibitions":           func(c *Capabilities) { c.Inhibitions = true },
	"inline-reply":          func(c *Capabilities) { c.InlineReply = true },
	"x-kde-urls":            func(c *Capabilities) { c.ContextURLs = true },
	"x-kde-display-appname": func(c *Capabilities) { c.DisplayAppName = true },
	"x-kde-origin-name":     func(c *Capabilities) { c.DisplayOriginName = true },
}

// ParseCapabilities interprets the reply of GetCapabilities.
func ParseCapabilities(cs []string) Capabilities {
	var caps Capabilities
	for _, c := range cs {
		if set, ok := capabilityFlags[c]; ok {
			set(&caps)
		} else {
			caps.Unknown = append(caps.Unknown, c)
		}
	}
	return caps
}
