package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "mpbar"

// AppName returns the canonical application name for directory paths.
func AppName() string {
	return appName
}

// ConfigDir returns the app's configuration directory.
// - Linux: $XDG_CONFIG_HOME/mpbar or ~/.config/mpbar
// - macOS: ~/Library/Application Support/mpbar
// - Windows: %AppData%/mpbar
func ConfigDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return fromHome("Library", "Application Support", AppName())
	case "linux":
		return fromXDG("XDG_CONFIG_HOME", ".config")
	default:
		cfg, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(cfg, AppName()), nil
	}
}

// CacheDir returns the app's cache directory.
// - Linux: $XDG_CACHE_HOME/mpbar or ~/.cache/mpbar
// - macOS: ~/Library/Caches/mpbar
// - Windows: %LocalAppData%/mpbar
func CacheDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return fromHome("Library", "Caches", AppName())
	case "linux":
		return fromXDG("XDG_CACHE_HOME", ".cache")
	default:
		c, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(c, AppName()), nil
	}
}

// RuntimeDir returns the directory holding relay sockets.
// - Linux: $XDG_RUNTIME_DIR/mpbar when set
// - otherwise: CacheDir()/run
func RuntimeDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
			return filepath.Join(xdg, AppName()), nil
		}
	}
	c, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(c, "run"), nil
}

func fromHome(elem ...string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{home}, elem...)...), nil
}

func fromXDG(env, fallback string) (string, error) {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, AppName()), nil
	}
	return fromHome(fallback, AppName())
}

// Ensure creates the directory if it doesn't exist. Directories are private
// to the user since they hold sockets.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o700)
}
