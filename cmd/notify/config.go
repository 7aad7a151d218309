package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/danderson/notify/notifications"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const configFile = "notify/config.toml"

// config holds the defaults for values that the send command's flags
// leave unset.
type config struct {
	AppName      string `koanf:"app_name"`
	AppIcon      string `koanf:"app_icon"`
	Timeout      string `koanf:"timeout"` // Go duration, "default" or "never"
	Category     string `koanf:"category"`
	DesktopEntry string `koanf:"desktop_entry"`
	ImageMaxSide int    `koanf:"image_max_side"` // inline images are scaled to fit
}

func defaultConfig() config {
	return config{
		AppName:      "notify",
		Timeout:      "default",
		ImageMaxSide: 256,
	}
}

// loadConfig reads the config file at path. If path is empty, the
// file is looked up in the XDG config directories, and a missing
// file is not an error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		found, err := xdg.SearchConfigFile(configFile)
		if err != nil {
			return cfg, nil
		}
		path = found
	} else if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("config file %s does not exist", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return cfg, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if _, err := parseTimeout(cfg.Timeout); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.ImageMaxSide <= 0 {
		return cfg, fmt.Errorf("%s: image_max_side must be positive, got %d", path, cfg.ImageMaxSide)
	}
	return cfg, nil
}

// parseTimeout converts a timeout setting to Notify's expire_timeout
// in milliseconds.
func parseTimeout(s string) (int32, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return notifications.ExpireDefault, nil
	case "never":
		return notifications.ExpireNever, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	ms := d.Milliseconds()
	if ms <= 0 || ms > 1<<31-1 {
		return 0, fmt.Errorf("timeout %q out of range", s)
	}
	return int32(ms), nil
}
