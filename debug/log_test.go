package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledWritesNothing(t *testing.T) {
	Disable()
	require.False(t, Enabled())
	Log("bridge", "dropped %d", 1)
	Warn("bridge", "dropped")
}

func TestWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	t.Cleanup(Disable)

	Log("bridge", "sent %d notes", 3)
	Warn("api", "request failed", "status", 400)

	out := buf.String()
	require.Contains(t, out, "sent 3 notes")
	require.Contains(t, out, "cat=bridge")
	require.Contains(t, out, "request failed")
	require.Contains(t, out, "status=400")
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	t.Cleanup(Disable)

	for i := 0; i < 7; i++ {
		LogEvery(3, "clock", "late pulse")
	}
	require.Equal(t, 2, strings.Count(buf.String(), "late pulse"))
	require.Contains(t, buf.String(), "count=6")
}

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	require.NoError(t, Enable(path))
	Log("manager", "hello")
	Disable()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "Debug logging started")
	require.Contains(t, string(data), "hello")
}
