package snapshotter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/stretchr/testify/require"
)

func TestSnapshotterPersistsIndexOnTick(t *testing.T) {
	dir := t.TempDir()
	store, err := kv.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set("k", "hello world"))

	s := New(store, 5*time.Millisecond)
	go s.Run()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "indexes.json"))
		return err == nil
	}, time.Second, 5*time.Millisecond)

	s.Stop()
}

func TestDefaultIntervalUsedWhenZero(t *testing.T) {
	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	s := New(store, 0)
	require.Equal(t, DefaultInterval, s.interval)
}
