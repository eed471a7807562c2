package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func TestObjectPath(t *testing.T) {
	p := ObjectPath("ticket-1", "../../etc/passwd")
	assert.True(t, strings.HasPrefix(p, "tickets/ticket-1/"))
	assert.True(t, strings.HasSuffix(p, "/passwd"))

	first := ObjectPath("ticket-1", "report.pdf")
	assert.NotEqual(t, first, ObjectPath("ticket-1", "report.pdf"), "each upload gets its own path")
	assert.True(t, strings.HasPrefix(ObjectPath("ticket-2", "report.pdf"), "tickets/ticket-2/"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "my_screenshot.png", SanitizeFileName("C:\\Users\\me\\my screenshot.png"))
	assert.Equal(t, "file", SanitizeFileName(".."))
	assert.Equal(t, "file", SanitizeFileName("???"))
}

func TestFilesystemStoreUpload(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root, "http://localhost:8080/files/", 1024)
	require.NoError(t, err)

	obj, err := store.Upload(context.Background(), "tickets/t1/ab/log file.txt", bytes.NewReader([]byte("hello")), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "text/plain", obj.ContentType)
	sum := blake3.Sum256([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(sum[:]), obj.Digest)
	assert.Equal(t, "http://localhost:8080/files/tickets/t1/ab/log%20file.txt", obj.URL)

	content, err := os.ReadFile(filepath.Join(root, "tickets", "t1", "ab", "log file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	require.NoError(t, store.Delete(context.Background(), obj.Path))
	require.NoError(t, store.Delete(context.Background(), obj.Path), "deleting twice is fine")
}

func TestFilesystemStoreRejectsOversizedUpload(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root, "http://x/files", 4)
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "tickets/t1/big.bin", bytes.NewReader([]byte("12345")), "application/octet-stream")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, statErr := os.Stat(filepath.Join(root, "tickets", "t1", "big.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFilesystemStoreStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root, "http://x/files", 0)
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "../escape.txt", bytes.NewReader([]byte("x")), "text/plain")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, statErr)
}

func TestUploadHonoursCancelledContext(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir(), "http://x/files", 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Upload(ctx, "tickets/t1/a.txt", bytes.NewReader(nil), "text/plain")
	assert.ErrorIs(t, err, context.Canceled)
}
