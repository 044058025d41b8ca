package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedFileWriter_WriteAndFlush(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "test.log")
	writer, err := NewBufferedFileWriter(logPath, WithFlushInterval(0))
	require.NoError(t, err)
	defer func() { _ = writer.Close() }()

	line := "item approved\n"
	n, err := writer.Write([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, len(line), n)
	assert.Positive(t, writer.Buffered())

	require.NoError(t, writer.Flush())
	assert.Equal(t, 0, writer.Buffered())

	content, err := os.ReadFile(logPath) //nolint:gosec // t.TempDir path
	require.NoError(t, err)
	assert.Equal(t, line, string(content))
}

func TestBufferedFileWriter_BackgroundFlush(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "autoflush.log")
	writer, err := NewBufferedFileWriter(logPath, WithFlushInterval(20*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = writer.Close() }()

	_, err = writer.Write([]byte("rating stored\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return writer.Buffered() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBufferedFileWriter_CloseSyncsAndRejectsWrites(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "close.log")
	writer, err := NewBufferedFileWriter(logPath)
	require.NoError(t, err)

	_, err = writer.Write([]byte("before close\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close(), "second close is a no-op")

	content, err := os.ReadFile(logPath) //nolint:gosec // t.TempDir path
	require.NoError(t, err)
	assert.Equal(t, "before close\n", string(content))

	_, err = writer.Write([]byte("after close"))
	assert.Error(t, err)
}

func TestBufferedFileWriter_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "concurrent.log")
	writer, err := NewBufferedFileWriter(logPath, WithBufferSize(1024))
	require.NoError(t, err)

	const goroutines, writes = 8, 50
	var wg sync.WaitGroup
	for range goroutines {
		wg.Go(func() {
			for range writes {
				_, err := writer.Write([]byte("line\n"))
				assert.NoError(t, err)
			}
		})
	}
	wg.Wait()
	require.NoError(t, writer.Close())

	content, err := os.ReadFile(logPath) //nolint:gosec // t.TempDir path
	require.NoError(t, err)
	assert.Equal(t, goroutines*writes, strings.Count(string(content), "\n"))
}

func TestBufferedFileWriter_Appends(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "append.log")
	for _, line := range []string{"first\n", "second\n"} {
		w, err := NewBufferedFileWriter(logPath)
		require.NoError(t, err)
		_, err = w.Write([]byte(line))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	content, err := os.ReadFile(logPath) //nolint:gosec // t.TempDir path
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(content))
}

func TestNewBufferedFileWriter_InvalidPath(t *testing.T) {
	t.Parallel()

	_, err := NewBufferedFileWriter("/nonexistent/path/test.log")
	assert.Error(t, err)
}
