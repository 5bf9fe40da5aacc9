package utils

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	_, err = ResolvePath("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	got, err := ResolvePath("~/.solvesync/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".solvesync", "data"), got)

	got, err = ResolvePath("./a/../b")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "b", filepath.Base(got))

	// only a leading ~ segment is expanded
	got, err = ResolvePath("~foo")
	require.NoError(t, err)
	assert.Equal(t, "~foo", filepath.Base(got))
}

func TestEnsureDir(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")

	require.NoError(t, EnsureDir(nested))
	require.NoError(t, EnsureDir(nested))
	require.NoError(t, EnsureParent(filepath.Join(root, "c", "file.db")))
	assert.DirExists(t, filepath.Join(root, "c"))

	file := filepath.Join(root, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.Error(t, EnsureDir(file))
	assert.True(t, FileExists(file))
	assert.False(t, FileExists(nested))
	assert.False(t, FileExists(filepath.Join(root, "missing")))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "*****", MaskSecret(""))
	assert.Equal(t, "*****", MaskSecret("abcd"))
	assert.Equal(t, "abcd*****", MaskSecret("abcdef0123"))
}

func TestTokenHex(t *testing.T) {
	a, b := TokenHex(), TokenHex()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}

func TestLogInterceptor(t *testing.T) {
	var out bytes.Buffer
	li := NewLogInterceptor(&out)
	li.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	n, err := li.Write([]byte("first\nsec"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, "line=1 time=2024-05-01T10:00:00Z first\n", out.String())

	_, err = li.Write([]byte("ond\r\n"))
	require.NoError(t, err)
	_, err = li.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, li.Close())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "line=2 "))
	assert.True(t, strings.HasSuffix(lines[1], " second"))
	assert.True(t, strings.HasSuffix(lines[2], " tail"))

	require.NoError(t, li.Close())
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 3)
}

func TestMultiLogHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	h := NewMultiLogHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("component", "sync").WithGroup("run")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	logger.Debug("drain", "count", 2)
	logger.Warn("offline", "count", 0)

	assert.Contains(t, debug.String(), "msg=drain")
	assert.Contains(t, debug.String(), "component=sync run.count=2")
	assert.Contains(t, debug.String(), "msg=offline")
	assert.NotContains(t, warn.String(), "msg=drain")
	assert.Contains(t, warn.String(), "msg=offline")
}
