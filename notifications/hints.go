package notifications

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/godbus/dbus/v5"
)

// Hint keys defined by the Desktop Notifications protocol.
const (
	HintActionIcons   = "action-icons"
	HintCategory      = "category"
	HintDesktopEntry  = "desktop-entry"
	HintImageData     = "image-data"
	HintImagePath     = "image-path"
	HintResident      = "resident"
	HintSoundFile     = "sound-file"
	HintSoundName     = "sound-name"
	HintSuppressSound = "suppress-sound"
	HintTransient     = "is_transient"
	HintX             = "x"
	HintY             = "y"
)

// Type signatures a Hint may carry.
const (
	SigBool  = "b"
	SigInt   = "i"
	SigStr   = "s"
	SigImage = "iiibiiay"
)

// Hint is a single type-tagged hint value.
//
// Hints are built with [BoolHint], [IntHint], [StringHint] and
// [ImageHint], which keep Signature consistent with the Go type of
// Value.
type Hint struct {
	// Signature is the hint's type tag: SigBool, SigInt, SigStr or
	// SigImage.
	Signature string
	// Value is a bool, int32, string or ImageData, according to
	// Signature.
	Value any
}

func BoolHint(v bool) Hint { return Hint{SigBool, v} }
func IntHint(v int32) Hint { return Hint{SigInt, v} }
func StringHint(v string) Hint { return Hint{SigStr, v} }
func ImageHint(v ImageData) Hint { return Hint{SigImage, v} }

// ImageData is raw inline image data, as carried by the image-data
// hint.
type ImageData struct {
	Width         int32
	Height        int32
	RowStride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

// Hints maps hint keys to their values.
type Hints map[string]Hint

// Variants returns the hints in their wire form, the a{sv} argument
// of Notify. Image data is encoded as a (iiibiiay) struct.
//
// Variants fails if a hint's value does not have the type its
// Signature names, including the zero Hint.
func (h Hints) Variants() (map[string]dbus.Variant, error) {
	ret := make(map[string]dbus.Variant, len(h))
	for _, k := range slices.Sorted(maps.Keys(h)) {
		v, err := h[k].variant()
		if err != nil {
			return nil, fmt.Errorf("hint %q: %w", k, err)
		}
		ret[k] = v
	}
	return ret, nil
}

// wireSignature is the signature of the variant carrying h.
func (h Hint) wireSignature() string {
	if h.Signature == SigImage {
		return "(" + SigImage + ")"
	}
	return h.Signature
}

func (h Hint) variant() (ret dbus.Variant, err error) {
	if h.Value == nil {
		return dbus.Variant{}, errors.New("hint has no value")
	}
	defer func() {
		if r := recover(); r != nil {
			ret = dbus.Variant{}
			err = fmt.Errorf("value of type %T cannot be sent: %v", h.Value, r)
		}
	}()
	v := dbus.MakeVariant(h.Value)
	if got, want := v.Signature().String(), h.wireSignature(); got != want {
		return dbus.Variant{}, fmt.Errorf("value has signature %q, want %q", got, want)
	}
	return v, nil
}

// Urgency is a notification's urgency level.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// PathLike is a filesystem path: a string, or any type whose
// underlying type is string.
type PathLike interface{ ~string }

// A HintOption sets one attribute in [EncodeHints].
type HintOption func(Hints)

// EncodeHints returns the hints described by opts. Each option
// inserts the entry for its attribute, so omitted attributes are
// absent from the result. With no options, EncodeHints returns an
// empty map.
//
// Values are not range checked, the notification service decides
// what it accepts.
func EncodeHints(opts ...HintOption) Hints {
	ret := Hints{}
	for _, o := range opts {
		o(ret)
	}
	return ret
}

// ActionIcons asks the service to interpret action keys as icon
// names.
func ActionIcons(v bool) HintOption {
	return func(h Hints) { h[HintActionIcons] = BoolHint(v) }
}

// Category sets the notification type, for example "email.arrived".
func Category(v string) HintOption {
	return func(h Hints) { h[HintCategory] = StringHint(v) }
}

// DesktopEntry sets the desktop entry name of the sending
// application, without the ".desktop" suffix.
func DesktopEntry(v string) HintOption {
	return func(h Hints) { h[HintDesktopEntry] = StringHint(v) }
}

// Image attaches raw image data to the notification.
func Image(v ImageData) HintOption {
	return func(h Hints) { h[HintImageData] = ImageHint(v) }
}

// ImagePath attaches an image by file path or icon name.
func ImagePath[P PathLike](p P) HintOption {
	return func(h Hints) { h[HintImagePath] = StringHint(string(p)) }
}

// Resident keeps the notification around after an action is
// invoked.
func Resident(v bool) HintOption {
	return func(h Hints) { h[HintResident] = BoolHint(v) }
}

// SoundFile plays the sound file at p when the notification pops up.
func SoundFile[P PathLike](p P) HintOption {
	return func(h Hints) { h[HintSoundFile] = StringHint(string(p)) }
}

// SoundName plays a named sound from the freedesktop sound theme.
func SoundName(v string) HintOption {
	return func(h Hints) { h[HintSoundName] = StringHint(v) }
}

// SuppressSound asks the service not to play any sound.
func SuppressSound(v bool) HintOption {
	return func(h Hints) { h[HintSuppressSound] = BoolHint(v) }
}

// Transient asks the service to bypass its persistence store.
func Transient(v bool) HintOption {
	return func(h Hints) { h[HintTransient] = BoolHint(v) }
}

// Position asks the service to point the notification at screen
// coordinates x, y. It always sets both the x and y hints.
func Position(x, y int32) HintOption {
	return func(h Hints) {
		h[HintX] = IntHint(x)
		h[HintY] = IntHint(y)
	}
}

// WithUrgency is accepted for symmetry with the other attributes but
// currently adds no hint.
//
// TODO: emit the "urgency" hint (signature "y") once callers have
// been audited for relying on its absence.
func WithUrgency(u Urgency) HintOption {
	return func(Hints) {}
}
