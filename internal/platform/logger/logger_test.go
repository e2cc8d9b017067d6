package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nulzo/model-bridge/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevelOf(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelOf("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, levelOf("warn"))
	assert.Equal(t, zapcore.InfoLevel, levelOf("bogus"))
	assert.Equal(t, zapcore.InfoLevel, levelOf(""))
}

func TestNew_WritesToConfiguredOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")

	l, _, err := New(Config{Level: "info", Format: "json", Outputs: []string{path}})
	require.NoError(t, err)
	l.Info("mailbox cycle", zap.String("trigger", "event"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"mailbox cycle"`)
	assert.Contains(t, string(data), `"trigger":"event"`)
}

func TestColorWanted(t *testing.T) {
	t.Setenv("LOG_COLOR", "false")
	assert.False(t, colorWanted())

	t.Setenv("LOG_COLOR", "1")
	assert.True(t, colorWanted())

	t.Setenv("NO_COLOR", "")
	assert.False(t, colorWanted())
}

func TestNew_JSON(t *testing.T) {
	l, level, err := New(Config{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.Equal(t, zapcore.WarnLevel, level.Level())
}

func TestNew_ColoredConsoleRegistersOnce(t *testing.T) {
	for range 2 {
		_, _, err := New(Config{Level: "info", Format: "console", EnableColor: true})
		require.NoError(t, err)
	}
}

func TestColoredConsoleEncoder_HighlightsFields(t *testing.T) {
	cli.SetEnabled(true)
	enc := NewColoredConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	buf, err := enc.EncodeEntry(
		zapcore.Entry{Level: zapcore.InfoLevel, Time: time.Unix(0, 0), Message: "dispatch"},
		[]zapcore.Field{zap.String("provider", "claude")},
	)
	require.NoError(t, err)
	line := buf.String()

	assert.True(t, strings.Contains(line, "dispatch"))
	assert.Contains(t, line, cli.Blue+`"provider"`)
}

func TestSetLevel_AdjustsGlobalLogger(t *testing.T) {
	Initialize(Config{Level: "info", Format: "json"})
	t.Cleanup(func() { SetLevel("info") })

	assert.False(t, Get().Core().Enabled(zapcore.DebugLevel))

	SetLevel("debug")
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))
}
