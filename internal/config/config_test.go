package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpbar/internal/presentation"
	"mpbar/internal/progress"
)

func newRoot(t *testing.T, cfg string, args ...string) *cobra.Command {
	t.Helper()
	if cfg != "" && runtime.GOOS != "linux" {
		t.Skip("config dir only follows XDG_CONFIG_HOME on linux")
	}
	viper.Reset()
	t.Cleanup(viper.Reset)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "cfg"))
	if cfg != "" {
		dir := filepath.Join(home, "cfg", "mpbar")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644))
	}

	root := &cobra.Command{Use: "mpbar"}
	AddFlags(root)
	require.NoError(t, root.PersistentFlags().Parse(args))
	require.NoError(t, Init(root))
	return root
}

func TestLoad_Defaults(t *testing.T) {
	newRoot(t, "")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Settings{
		Presentation:  presentation.ModeAuto,
		Throttle:      progress.DefaultInterval,
		PlainInterval: presentation.DefaultPlainInterval,
	}, s)
	assert.Empty(t, ConfigFile())
}

func TestLoad_Precedence(t *testing.T) {
	cfg := "presentation: plain\nthrottle: 250ms\nlog_level: 1\n"

	t.Run("file", func(t *testing.T) {
		newRoot(t, cfg)
		s, err := Load()
		require.NoError(t, err)
		assert.Equal(t, presentation.ModePlain, s.Presentation)
		assert.Equal(t, 250*time.Millisecond, s.Throttle)
		assert.Equal(t, 1, s.LogLevel)
		assert.NotEmpty(t, ConfigFile())
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("MPBAR_PRESENTATION", "none")
		t.Setenv("MPBAR_DISABLE", "true")
		newRoot(t, cfg)
		s, err := Load()
		require.NoError(t, err)
		assert.Equal(t, presentation.ModeNone, s.Presentation)
		assert.True(t, s.Disabled)
		assert.Equal(t, 250*time.Millisecond, s.Throttle)
	})

	t.Run("flag over env", func(t *testing.T) {
		t.Setenv("MPBAR_PRESENTATION", "none")
		newRoot(t, cfg, "--presentation=tui", "--plain-interval=5s", "-v", "3")
		s, err := Load()
		require.NoError(t, err)
		assert.Equal(t, presentation.ModeTUI, s.Presentation)
		assert.Equal(t, 5*time.Second, s.PlainInterval)
		assert.Equal(t, 3, s.LogLevel)
	})
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"presentation", []string{"--presentation=fancy"}},
		{"throttle", []string{"--throttle=-1s"}},
		{"plain interval", []string{"--plain-interval=-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newRoot(t, "", tt.args...)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestInit_BrokenConfigFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config dir only follows XDG_CONFIG_HOME on linux")
	}
	viper.Reset()
	t.Cleanup(viper.Reset)
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	dir := filepath.Join(home, "mpbar")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("presentation: [unterminated"), 0o644))

	root := &cobra.Command{Use: "mpbar"}
	AddFlags(root)
	assert.Error(t, Init(root))
}
