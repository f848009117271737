package cluster

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ppriyankuu/kvstore/internal/dispatch"
	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/ppriyankuu/kvstore/internal/logging"
	"github.com/ppriyankuu/kvstore/internal/metrics"
	"github.com/ppriyankuu/kvstore/internal/walog"
	"golang.org/x/sync/errgroup"
)

// Role is this node's position in the leader election state machine.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "follower"
	}
}

const (
	minElectionTimeout = 1500 * time.Millisecond
	maxElectionTimeout = 3000 * time.Millisecond
)

// LeaderNode runs the leader/quorum replication strategy: exactly one node
// in the cluster is LEADER at a time, writes are only accepted there, and a
// write commits once a majority of the cluster (including self) has
// durably applied it.
type LeaderNode struct {
	mu sync.Mutex

	self       Peer
	membership *Membership
	store      *kv.Store
	transport  Transport

	role           Role
	term           uint64
	votedFor       string
	leaderID       string
	lastHeartbeat  time.Time
	electionTimer  time.Duration

	stopCh chan struct{}
}

// NewLeaderNode constructs a node starting as FOLLOWER with a fresh
// randomized election timeout.
func NewLeaderNode(self Peer, membership *Membership, store *kv.Store) *LeaderNode {
	n := &LeaderNode{
		self:       self,
		membership: membership,
		store:      store,
		role:       Follower,
		stopCh:     make(chan struct{}),
	}
	n.resetElectionTimer()
	n.lastHeartbeat = time.Now()
	return n
}

func (n *LeaderNode) resetElectionTimer() {
	span := maxElectionTimeout - minElectionTimeout
	n.electionTimer = minElectionTimeout + time.Duration(rand.Int64N(int64(span)))
}

// Run drives the election-timeout/heartbeat loop until Stop is called. It
// is meant to run on its own goroutine, one of the two background tasks the
// replication layer owns (the other being, for the masterless strategy,
// the fan-out pump).
func (n *LeaderNode) Run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	log := logging.WithComponent("cluster-leader")

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.mu.Lock()
			role := n.role
			elapsed := time.Since(n.lastHeartbeat)
			timeout := n.electionTimer
			n.mu.Unlock()

			if role == Leader {
				n.sendHeartbeats()
				continue
			}
			if elapsed > timeout {
				log.Info().Str("node", n.self.ID).Msg("election timeout, starting election")
				n.startElection()
			}
		}
	}
}

// Stop ends the election/heartbeat loop.
func (n *LeaderNode) Stop() {
	close(n.stopCh)
}

// startElection transitions to CANDIDATE, votes for self, and fans out
// request_vote to every peer in parallel; a majority of granted votes
// (including the candidate's own) promotes it to LEADER.
func (n *LeaderNode) startElection() {
	n.mu.Lock()
	n.role = Candidate
	n.term++
	n.votedFor = n.self.ID
	term := n.term
	n.resetElectionTimer()
	n.lastHeartbeat = time.Now()
	n.mu.Unlock()

	metrics.RaftElectionsTotal.Inc()
	metrics.RaftTerm.Set(float64(term))

	peers := n.membership.Peers()
	votes := 1 // self

	var mu sync.Mutex
	var g errgroup.Group
	for _, p := range peers {
		p := p
		g.Go(func() error {
			resp, err := n.transport.Call(p, dispatch.Request{
				Command:     dispatch.CmdRequestVote,
				Term:        term,
				CandidateID: n.self.ID,
			}, RPCDeadline)
			if err != nil {
				return nil // unreachable peer: tolerated, not a fatal error
			}
			mu.Lock()
			defer mu.Unlock()
			if resp.VoteGranted != nil && *resp.VoteGranted {
				votes++
			}
			return nil
		})
	}
	_ = g.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.term != term || n.role != Candidate {
		return // a higher term arrived while we were campaigning
	}
	if votes >= n.membership.Majority() {
		n.role = Leader
		n.leaderID = n.self.ID
		metrics.RaftIsLeader.Set(1)
		logging.WithComponent("cluster-leader").Info().Str("node", n.self.ID).Uint64("term", term).Msg("elected leader")
	}
}

// sendHeartbeats fans append_entries (with no entry, a pure heartbeat) out
// to every peer to keep the cluster from starting a needless election.
func (n *LeaderNode) sendHeartbeats() {
	n.mu.Lock()
	term := n.term
	n.mu.Unlock()

	for _, p := range n.membership.Peers() {
		p := p
		go func() {
			_, _ = n.transport.Call(p, dispatch.Request{
				Command:  dispatch.CmdAppendEntries,
				Term:     term,
				LeaderID: n.self.ID,
			}, RPCDeadline)
		}()
	}
}

// Set applies key=value if and only if this node is LEADER; otherwise it
// returns ok=false with redirectTo set to the known leader's id. When no
// leader is known yet, redirectTo is nil, and the dispatcher answers with
// success=false rather than a redirect response.
func (n *LeaderNode) Set(key, value string) (bool, *string, error) {
	return n.write(walog.SetEntry(key, value))
}

// Delete applies a delete if this node is LEADER.
func (n *LeaderNode) Delete(key string) (existed bool, ok bool, redirectTo *string, err error) {
	_, existedBefore := n.store.Get(key)
	ok, redirectTo, err = n.write(walog.DeleteEntry(key))
	return existedBefore, ok, redirectTo, err
}

// BulkSet applies a bulk_set if this node is LEADER.
func (n *LeaderNode) BulkSet(items []walog.KV) (bool, *string, error) {
	return n.write(walog.BulkSetEntry(items))
}

// write is the leader-only write path: apply locally (durable, through the
// store's own log+map+index transition), then fan out replicate to every
// peer in parallel and wait for a majority (including self) before
// reporting success.
func (n *LeaderNode) write(entry walog.Entry) (bool, *string, error) {
	n.mu.Lock()
	role := n.role
	term := n.term
	leaderID := n.leaderID
	n.mu.Unlock()

	if role != Leader {
		if leaderID == "" {
			return false, nil, nil
		}
		return false, &leaderID, nil
	}

	timer := metrics.NewTimer()
	if err := n.store.ApplyEntry(entry); err != nil {
		return false, nil, err
	}
	defer timer.ObserveDuration(metrics.RaftQuorumWriteDuration)

	acks := 1 // self
	required := n.membership.Majority()
	peers := n.membership.Peers()

	var mu sync.Mutex
	var g errgroup.Group
	for _, p := range peers {
		p := p
		g.Go(func() error {
			resp, err := n.transport.Call(p, dispatch.Request{
				Command: dispatch.CmdReplicate,
				Term:    term,
				Entry:   &entry,
			}, RPCDeadline)
			if err != nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if resp.Status == dispatch.StatusOK {
				acks++
			}
			return nil
		})
	}
	_ = g.Wait()

	return acks >= required, nil, nil
}

// HandlePeer answers the leader strategy's slice of the replication
// vocabulary: request_vote, append_entries, replicate.
func (n *LeaderNode) HandlePeer(req dispatch.Request) dispatch.Response {
	switch req.Command {
	case dispatch.CmdRequestVote:
		return n.handleRequestVote(req)
	case dispatch.CmdAppendEntries:
		return n.handleAppendEntries(req)
	case dispatch.CmdReplicate:
		return n.handleReplicate(req)
	default:
		return dispatch.Response{Status: dispatch.StatusError, Error: "unsupported peer command: " + req.Command}
	}
}

func (n *LeaderNode) handleRequestVote(req dispatch.Request) dispatch.Response {
	n.mu.Lock()
	defer n.mu.Unlock()

	granted := false
	if req.Term > n.term {
		n.term = req.Term
		n.role = Follower
		n.votedFor = ""
		metrics.RaftTerm.Set(float64(n.term))
		metrics.RaftIsLeader.Set(0)
	}
	if req.Term == n.term && (n.votedFor == "" || n.votedFor == req.CandidateID) {
		n.votedFor = req.CandidateID
		n.lastHeartbeat = time.Now()
		granted = true
	}
	return dispatch.Response{Status: dispatch.StatusOK, Term: n.term, VoteGranted: &granted}
}

func (n *LeaderNode) handleAppendEntries(req dispatch.Request) dispatch.Response {
	n.mu.Lock()
	defer n.mu.Unlock()

	if req.Term < n.term {
		return dispatch.Response{Status: dispatch.StatusError, Term: n.term, Error: "stale term"}
	}
	n.term = req.Term
	n.role = Follower
	n.leaderID = req.LeaderID
	n.lastHeartbeat = time.Now()
	metrics.RaftTerm.Set(float64(n.term))
	metrics.RaftIsLeader.Set(0)
	return dispatch.Response{Status: dispatch.StatusOK, Term: n.term}
}

func (n *LeaderNode) handleReplicate(req dispatch.Request) dispatch.Response {
	n.mu.Lock()
	if req.Term < n.term {
		n.mu.Unlock()
		return dispatch.Response{Status: dispatch.StatusError, Error: "stale term"}
	}
	n.term = req.Term
	n.role = Follower
	n.lastHeartbeat = time.Now()
	n.mu.Unlock()

	if req.Entry == nil {
		return dispatch.Response{Status: dispatch.StatusError, Error: "missing entry"}
	}
	if err := n.store.ApplyEntry(*req.Entry); err != nil {
		return dispatch.Response{Status: dispatch.StatusError, Error: err.Error()}
	}
	return dispatch.Response{Status: dispatch.StatusOK}
}

// CurrentRole reports this node's role, for the admin surface.
func (n *LeaderNode) CurrentRole() (Role, uint64, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role, n.term, n.leaderID
}

// Status reports this node's election state for the read-only admin surface.
func (n *LeaderNode) Status() map[string]any {
	role, term, leaderID := n.CurrentRole()
	return map[string]any{
		"strategy":  "leader",
		"role":      role.String(),
		"term":      term,
		"leader_id": leaderID,
	}
}
