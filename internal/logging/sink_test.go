package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkWritesFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	var console bytes.Buffer

	s, err := Open(Config{Path: path, Console: true, ConsoleWriter: &console})
	require.NoError(t, err)
	defer s.Close()

	s.Logger().Info("hello", "k", "v")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, console.String(), "msg=hello")
}

func TestSinkConsoleToggle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	var console bytes.Buffer

	s, err := Open(Config{Path: path, Console: true, ConsoleWriter: &console})
	require.NoError(t, err)
	defer s.Close()

	s.SetConsole(false)
	assert.False(t, s.ConsoleEnabled())
	s.Logger().Info("quiet")
	assert.NotContains(t, console.String(), "quiet")

	s.SetConsole(true)
	s.Logger().Info("loud")
	assert.Contains(t, console.String(), "loud")

	data, _ := os.ReadFile(path)
	assert.Contains(t, string(data), "quiet", "file output is unaffected by the console toggle")
}

func TestSinkVerbosity(t *testing.T) {
	var console bytes.Buffer
	s, err := Open(Config{Console: true, ConsoleWriter: &console})
	require.NoError(t, err)

	s.Logger().Debug("hidden")
	assert.NotContains(t, console.String(), "hidden")

	s.SetVerbose(true)
	assert.True(t, s.Verbose())
	s.Logger().Debug("shown")
	assert.Contains(t, console.String(), "shown")
}

func TestSinkClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	s, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer s.Close()

	s.Logger().Info("before")
	require.Greater(t, s.Size(), int64(0))

	require.NoError(t, s.Clear())
	assert.Zero(t, s.Size())

	s.Logger().Info("after")
	data, _ := os.ReadFile(path)
	assert.NotContains(t, string(data), "before")
	assert.Contains(t, string(data), "after")
}

func TestSinkJSONFormat(t *testing.T) {
	var console bytes.Buffer
	s, err := Open(Config{Format: FormatJSON, Console: true, ConsoleWriter: &console})
	require.NoError(t, err)

	s.Logger().Info("structured")
	assert.True(t, strings.HasPrefix(console.String(), "{"))
	assert.Contains(t, console.String(), `"msg":"structured"`)
}

func TestRotateLogIfNeeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	var b strings.Builder
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	require.NoError(t, rotateLogIfNeeded(path, 1024))

	lines := readLastNLines(path, 5000)
	require.Len(t, lines, keepOnRotate)
	assert.Equal(t, "line 1999", lines[len(lines)-1])
	assert.Equal(t, "line 1000", lines[0])
}

func TestSinkCloseFallsBackToConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	var console bytes.Buffer
	s, err := Open(Config{Path: path, Console: true, ConsoleWriter: &console})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	s.Logger().Info("late")
	assert.Contains(t, console.String(), "late")
}
