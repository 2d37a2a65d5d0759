package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlink/fieldlink-go/pkg/config"
	"github.com/fieldlink/fieldlink-go/pkg/transport"
)

// testEnv returns an environment with default configuration and a silent
// logger.
func testEnv() *Env {
	return &Env{
		Config: config.Default(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want Target
	}{
		{"192.168.1.20", Target{Address: "192.168.1.20:9760"}},
		{"tcp:192.168.1.20:5025", Target{Address: "192.168.1.20:5025"}},
		{"bench.local", Target{Address: "bench.local:9760"}},
		{"serial:/dev/ttyUSB0", Target{Serial: true, Address: "/dev/ttyUSB0"}},
		{"/dev/ttyACM0", Target{Serial: true, Address: "/dev/ttyACM0"}},
		{"com3", Target{Serial: true, Address: "com3"}},
		{"  10.0.0.1  ", Target{Address: "10.0.0.1:9760"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in, 9760)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseTarget("  ", 9760)
	assert.Error(t, err)

	assert.Equal(t, "serial:/dev/ttyACM0", Target{Serial: true, Address: "/dev/ttyACM0"}.String())
	assert.Equal(t, "tcp:10.0.0.1:9760", Target{Address: "10.0.0.1:9760"}.String())
}

func TestNewEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fieldlink.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("link:\n  tcp_port: 5025\nlogging:\n  level: warn\n"), 0o644))

	t.Run("config values", func(t *testing.T) {
		env, err := NewEnv(cfgPath, "", "", io.Discard)
		require.NoError(t, err)
		defer env.Close()

		assert.Equal(t, 5025, env.Config.Link.TCPPort)
		assert.False(t, env.Logger.Enabled(t.Context(), slog.LevelInfo))
		assert.True(t, env.Logger.Enabled(t.Context(), slog.LevelWarn))
		assert.Nil(t, env.Protocol)
	})

	t.Run("flags override", func(t *testing.T) {
		capture := filepath.Join(dir, "session.flog")
		env, err := NewEnv(cfgPath, "debug", capture, io.Discard)
		require.NoError(t, err)

		assert.True(t, env.Logger.Enabled(t.Context(), slog.LevelDebug))
		require.NotNil(t, env.Protocol)
		require.NoError(t, env.Close())
		assert.FileExists(t, capture)
		assert.NoError(t, env.Close())
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := NewEnv(cfgPath, "loud", "", io.Discard)
		assert.Error(t, err)
	})
}

func TestLinkConfig(t *testing.T) {
	env := testEnv()

	lc := env.LinkConfig(Target{Serial: true, Address: "/dev/ttyACM0"}, transport.ModeText)
	assert.Equal(t, "SERIAL", lc.Transport)
	assert.Equal(t, "/dev/ttyACM0", lc.RemoteAddr)
	assert.Equal(t, transport.ModeText, lc.Mode)
	assert.Equal(t, env.Config.Link.Debounce, lc.Debounce)
	assert.Equal(t, env.Config.Link.PollInterval, lc.Producer.PollInterval)

	lc = env.LinkConfig(Target{Address: "10.0.0.1:9760"}, transport.ModeProtobuf)
	assert.Equal(t, "TCP", lc.Transport)
}
