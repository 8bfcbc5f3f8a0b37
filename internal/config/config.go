// Package config layers flags, MPBAR_* environment variables and an
// optional config file into Settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mpbar/internal/dirs"
	"mpbar/internal/presentation"
	"mpbar/internal/progress"
)

// Keys, matching the persistent flag names with '-' replaced by '_'.
const (
	KeyPresentation  = "presentation"
	KeyDisable       = "disable"
	KeyLogLevel      = "log_level"
	KeyThrottle      = "throttle"
	KeyPlainInterval = "plain_interval"
)

// Settings are the resolved runtime settings.
type Settings struct {
	Presentation  presentation.Mode
	Disabled      bool
	LogLevel      int
	Throttle      time.Duration
	PlainInterval time.Duration
}

// AddFlags registers the persistent flags that Init binds.
func AddFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.String("presentation", string(presentation.ModeAuto), "Progress display: auto, tui, plain, none")
	pf.Bool("disable", false, "Disable progress reporting")
	pf.IntP("log-level", "v", 0, "Log verbosity (0-3)")
	pf.Duration("throttle", progress.DefaultInterval, "Minimum gap between two updates of the same task")
	pf.Duration("plain-interval", presentation.DefaultPlainInterval, "Minimum gap between two plain lines of the same task")
}

// Init wires Viper with config paths, env, defaults, and flag bindings.
// A missing config file is not an error.
func Init(root *cobra.Command) error {
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // config.{yaml|yml|json|toml}

	// Environment variables: MPBAR_*
	viper.SetEnvPrefix("MPBAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(KeyPresentation, string(presentation.ModeAuto))
	viper.SetDefault(KeyDisable, false)
	viper.SetDefault(KeyLogLevel, 0)
	viper.SetDefault(KeyThrottle, progress.DefaultInterval)
	viper.SetDefault(KeyPlainInterval, presentation.DefaultPlainInterval)

	pf := root.PersistentFlags()
	for key, flag := range map[string]string{
		KeyPresentation:  "presentation",
		KeyDisable:       "disable",
		KeyLogLevel:      "log-level",
		KeyThrottle:      "throttle",
		KeyPlainInterval: "plain-interval",
	} {
		if f := pf.Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load reads the current Settings.
func Load() (Settings, error) {
	mode, err := presentation.ParseMode(viper.GetString(KeyPresentation))
	if err != nil {
		return Settings{}, err
	}
	s := Settings{
		Presentation:  mode,
		Disabled:      viper.GetBool(KeyDisable),
		LogLevel:      viper.GetInt(KeyLogLevel),
		Throttle:      viper.GetDuration(KeyThrottle),
		PlainInterval: viper.GetDuration(KeyPlainInterval),
	}
	if s.Throttle < 0 {
		return Settings{}, fmt.Errorf("invalid throttle %s: must not be negative", s.Throttle)
	}
	if s.PlainInterval < 0 {
		return Settings{}, fmt.Errorf("invalid plain-interval %s: must not be negative", s.PlainInterval)
	}
	return s, nil
}

// ConfigFile returns the config file in use, or "" when none was found.
func ConfigFile() string {
	return viper.ConfigFileUsed()
}
