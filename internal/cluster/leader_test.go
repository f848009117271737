package cluster

import (
	"testing"

	"github.com/ppriyankuu/kvstore/internal/dispatch"
	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/stretchr/testify/require"
)

func newTestLeaderNode(t *testing.T, selfID string, peers []Peer) *LeaderNode {
	t.Helper()
	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := NewMembership(Peer{ID: selfID, Address: "127.0.0.1:0"}, peers)
	return NewLeaderNode(Peer{ID: selfID}, m, store)
}

func TestLeaderNodeStartsAsFollower(t *testing.T) {
	n := newTestLeaderNode(t, "n1", nil)
	role, term, _ := n.CurrentRole()
	require.Equal(t, Follower, role)
	require.Equal(t, uint64(0), term)
}

func TestSingleNodeClusterElectsSelf(t *testing.T) {
	n := newTestLeaderNode(t, "n1", nil)
	n.startElection()
	role, _, leaderID := n.CurrentRole()
	require.Equal(t, Leader, role)
	require.Equal(t, "n1", leaderID)
}

func TestNonLeaderWriteReturnsRedirect(t *testing.T) {
	n := newTestLeaderNode(t, "n1", []Peer{{ID: "n2", Address: "127.0.0.1:1"}})
	ok, redirectTo, err := n.Set("k", "v")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, redirectTo) // no known leader yet
}

func TestLeaderWriteAppliesLocallyAndCommitsAlone(t *testing.T) {
	n := newTestLeaderNode(t, "n1", nil)
	n.startElection()

	ok, redirectTo, err := n.Set("k", "v")
	require.NoError(t, err)
	require.Nil(t, redirectTo)
	require.True(t, ok)

	v, found := n.store.Get("k")
	require.True(t, found)
	require.Equal(t, "v", v)
}

func TestHandleRequestVoteGrantsOncePerTerm(t *testing.T) {
	n := newTestLeaderNode(t, "n1", nil)

	granted := true
	resp := n.handleRequestVote(dispatch.Request{Command: dispatch.CmdRequestVote, Term: 1, CandidateID: "n2"})
	require.Equal(t, &granted, resp.VoteGranted)

	resp2 := n.handleRequestVote(dispatch.Request{Command: dispatch.CmdRequestVote, Term: 1, CandidateID: "n3"})
	require.False(t, *resp2.VoteGranted)
}

func TestHandleAppendEntriesRejectsStaleTerm(t *testing.T) {
	n := newTestLeaderNode(t, "n1", nil)
	n.term = 5

	resp := n.handleAppendEntries(dispatch.Request{Command: dispatch.CmdAppendEntries, Term: 3, LeaderID: "n2"})
	require.Equal(t, dispatch.StatusError, resp.Status)
}

func TestHandleAppendEntriesAdoptsHigherTerm(t *testing.T) {
	n := newTestLeaderNode(t, "n1", nil)
	n.role = Leader

	resp := n.handleAppendEntries(dispatch.Request{Command: dispatch.CmdAppendEntries, Term: 7, LeaderID: "n2"})
	require.Equal(t, dispatch.StatusOK, resp.Status)
	role, term, leaderID := n.CurrentRole()
	require.Equal(t, Follower, role)
	require.Equal(t, uint64(7), term)
	require.Equal(t, "n2", leaderID)
}
