package kv

import (
	"path/filepath"
	"testing"

	"github.com/ppriyankuu/kvstore/internal/walog"
	"github.com/stretchr/testify/require"
)

func TestSetGetDeleteRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("a", "1"))
	v, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)

	existed, err := s.Delete("a")
	require.NoError(t, err)
	require.True(t, existed)

	_, ok = s.Get("a")
	require.False(t, ok)
}

func TestBulkSetAppliesAllPairs(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.BulkSet([]walog.KV{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "2"},
	}))

	va, _ := s.Get("a")
	vb, _ := s.Get("b")
	require.Equal(t, "1", va)
	require.Equal(t, "2", vb)
}

func TestRecoveryReplaysLogOnReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k1", "v1"))
	require.NoError(t, s.Set("k2", "v2"))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v1, ok := s2.Get("k1")
	require.True(t, ok)
	require.Equal(t, "v1", v1)
	v2, ok := s2.Get("k2")
	require.True(t, ok)
	require.Equal(t, "v2", v2)

	results := s2.Index().FullTextSearch("v1", 10)
	require.NotEmpty(t, results)
}

func TestSnapshotTruncatesLogButPreservesState(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Snapshot())
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, ok := s2.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestSaveIndexesRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "hello world"))
	require.NoError(t, s.SaveIndexes())
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	require.Equal(t, s.Index().Snapshot(), s2.Index().Snapshot())
}

func TestApplyEntryPersistsLikeALocalWrite(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.ApplyEntry(walog.SetEntry("k", "v")))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, ok := s2.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestOpenCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()
}
