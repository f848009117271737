package walog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	l, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, l.Append(SetEntry("a", "1")))
	require.NoError(t, l.Append(SetEntry("b", "2")))
	require.NoError(t, l.Append(DeleteEntry("a")))
	require.NoError(t, l.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	entries, err := l2.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, KindSet, entries[0].Kind)
	require.Equal(t, KindDelete, entries[2].Kind)
}

func TestLogDiscardsPartialTrailingRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(SetEntry("a", "1")))
	require.NoError(t, l.Close())

	// Simulate a crash mid-write: append a truncated JSON line with no
	// trailing newline.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"kind":"set","key":"b","valu`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	entries, err := l2.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1, "partial trailing record must be discarded")
}

func TestLogTruncate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(SetEntry("a", "1")))
	require.NoError(t, l.Truncate())

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWriteAtomicAndReadIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	found, err := ReadIfExists(path, &map[string]string{})
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, WriteAtomic(path, map[string]string{"a": "1"}))

	var out map[string]string
	found, err = ReadIfExists(path, &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", out["a"])

	// No .tmp file should be left behind.
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}
