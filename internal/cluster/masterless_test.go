package cluster

import (
	"testing"

	"github.com/ppriyankuu/kvstore/internal/dispatch"
	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/ppriyankuu/kvstore/internal/walog"
	"github.com/stretchr/testify/require"
)

func newTestMasterlessNode(t *testing.T, selfID string) *MasterlessNode {
	t.Helper()
	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := NewMembership(Peer{ID: selfID}, nil)
	return NewMasterlessNode(Peer{ID: selfID}, m, store)
}

func TestMasterlessWriteAppliesLocallyAndQueues(t *testing.T) {
	n := newTestMasterlessNode(t, "n1")

	ok, redirectTo, err := n.Set("k", "v")
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, redirectTo)

	v, found := n.store.Get("k")
	require.True(t, found)
	require.Equal(t, "v", v)

	n.queueMu.Lock()
	require.Len(t, n.queue, 1)
	n.queueMu.Unlock()
}

func TestHandleReplicateAppliesNonConcurrentWrite(t *testing.T) {
	n := newTestMasterlessNode(t, "n1")

	resp := n.handleReplicate(dispatch.Request{
		Command:     dispatch.CmdReplicate,
		Entry:       &walog.Entry{Kind: walog.KindSet, Key: "k", Value: "v"},
		VectorClock: map[string]uint64{"n2": 1},
		SourceNode:  "n2",
	})
	require.Equal(t, dispatch.StatusOK, resp.Status)

	v, found := n.store.Get("k")
	require.True(t, found)
	require.Equal(t, "v", v)
}

func TestHandleReplicateDedupesAlreadyAppliedWrite(t *testing.T) {
	n := newTestMasterlessNode(t, "n1")

	req := dispatch.Request{
		Command:     dispatch.CmdReplicate,
		Entry:       &walog.Entry{Kind: walog.KindSet, Key: "k", Value: "v1"},
		VectorClock: map[string]uint64{"n2": 1},
		SourceNode:  "n2",
	}
	n.handleReplicate(req)

	// A stale re-delivery of the same (or earlier) component from n2 must
	// not re-apply.
	stale := dispatch.Request{
		Command:     dispatch.CmdReplicate,
		Entry:       &walog.Entry{Kind: walog.KindSet, Key: "k", Value: "v2"},
		VectorClock: map[string]uint64{"n2": 1},
		SourceNode:  "n2",
	}
	n.handleReplicate(stale)

	v, _ := n.store.Get("k")
	require.Equal(t, "v1", v)
}

func TestHandleReplicateConcurrentWriteRecordsConflictAndAppliesByNodeIDTiebreak(t *testing.T) {
	// n1 has made one local write (clock {n1:1}); an incoming write from n2
	// with clock {n2:1} is concurrent. n2 > n1 lexically, so the incoming
	// write should win and be applied.
	n := newTestMasterlessNode(t, "n1")
	n.store.Set("k", "local")
	n.clock = VectorClock{"n1": 1}

	resp := n.handleReplicate(dispatch.Request{
		Command:     dispatch.CmdReplicate,
		Entry:       &walog.Entry{Kind: walog.KindSet, Key: "k", Value: "remote"},
		VectorClock: map[string]uint64{"n2": 1},
		SourceNode:  "n2",
	})
	require.Equal(t, dispatch.StatusOK, resp.Status)

	v, _ := n.store.Get("k")
	require.Equal(t, "remote", v)

	n.conflictMu.Lock()
	require.Len(t, n.conflicts, 1)
	n.conflictMu.Unlock()
}

func TestHandleReplicateConcurrentWriteLosesToLowerSourceID(t *testing.T) {
	// n2 has made a local write; incoming from n1 is concurrent but n1 < n2,
	// so the local value should win and the incoming write is discarded.
	n := newTestMasterlessNode(t, "n2")
	n.store.Set("k", "local")
	n.clock = VectorClock{"n2": 1}

	n.handleReplicate(dispatch.Request{
		Command:     dispatch.CmdReplicate,
		Entry:       &walog.Entry{Kind: walog.KindSet, Key: "k", Value: "remote"},
		VectorClock: map[string]uint64{"n1": 1},
		SourceNode:  "n1",
	})

	v, _ := n.store.Get("k")
	require.Equal(t, "local", v)
}

func TestHandleGetClockReturnsCurrentSnapshot(t *testing.T) {
	n := newTestMasterlessNode(t, "n1")
	n.stamp()

	resp := n.handleGetClock()
	require.Equal(t, dispatch.StatusOK, resp.Status)
	require.Equal(t, uint64(1), resp.Clock["n1"])
}

func TestHandleGetAllEntriesReturnsFullMapping(t *testing.T) {
	n := newTestMasterlessNode(t, "n1")
	n.store.Set("a", "1")
	n.store.Set("b", "2")

	resp := n.handleGetAllEntries()
	require.Equal(t, dispatch.StatusOK, resp.Status)
	require.Len(t, resp.Entries, 2)
}
