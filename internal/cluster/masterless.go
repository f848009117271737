package cluster

import (
	"sync"
	"time"

	"github.com/ppriyankuu/kvstore/internal/dispatch"
	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/ppriyankuu/kvstore/internal/logging"
	"github.com/ppriyankuu/kvstore/internal/metrics"
	"github.com/ppriyankuu/kvstore/internal/walog"
)

// fanOutCadence is how often the replication queue is drained and pushed to
// peers.
const fanOutCadence = 10 * time.Millisecond

// queuedWrite is one not-yet-delivered replicated write.
type queuedWrite struct {
	entry  walog.Entry
	clock  VectorClock
	source string
}

// MasterlessNode runs the masterless multi-writer replication strategy:
// every node accepts every write locally and propagates it to peers
// asynchronously, detecting and recording true concurrent-write conflicts
// via vector clocks instead of electing a single writer.
type MasterlessNode struct {
	self       Peer
	membership *Membership
	store      *kv.Store
	transport  Transport

	clockMu sync.Mutex
	clock   VectorClock
	// lastApplied is, per source node id, the highest component of that
	// source's clock already applied locally — the dedupe guard for the
	// inbound replicate handler.
	lastApplied map[string]uint64

	queueMu sync.Mutex
	queue   []queuedWrite

	conflictMu sync.Mutex
	conflicts  []dispatch.ConflictRecord

	stopCh chan struct{}
}

// NewMasterlessNode constructs a node with an empty vector clock.
func NewMasterlessNode(self Peer, membership *Membership, store *kv.Store) *MasterlessNode {
	return &MasterlessNode{
		self:        self,
		membership:  membership,
		store:       store,
		clock:       VectorClock{},
		lastApplied: make(map[string]uint64),
		stopCh:      make(chan struct{}),
	}
}

// Run drives the fan-out pump: the masterless strategy's one background
// task, waking at fanOutCadence to drain and deliver the replication queue.
func (n *MasterlessNode) Run() {
	ticker := time.NewTicker(fanOutCadence)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.drainAndFanOut()
		}
	}
}

// Stop ends the fan-out pump.
func (n *MasterlessNode) Stop() {
	close(n.stopCh)
}

// stamp acquires the clock lock, increments this node's own component, and
// returns a snapshot — lock order here is clock-only, released before the
// caller applies the write (master mutex lives inside kv.Store and is never
// held at the same time as the clock lock).
func (n *MasterlessNode) stamp() VectorClock {
	n.clockMu.Lock()
	defer n.clockMu.Unlock()
	n.clock.Increment(n.self.ID)
	return n.clock.Copy()
}

func (n *MasterlessNode) enqueue(w queuedWrite) {
	n.queueMu.Lock()
	defer n.queueMu.Unlock()
	n.queue = append(n.queue, w)
	metrics.ReplicationQueueDepth.Set(float64(len(n.queue)))
}

// Set applies key=value locally and unconditionally, then queues it for
// async fan-out.
func (n *MasterlessNode) Set(key, value string) (bool, *string, error) {
	return n.write(walog.SetEntry(key, value))
}

// Delete applies a delete locally and unconditionally.
func (n *MasterlessNode) Delete(key string) (existed bool, ok bool, redirectTo *string, err error) {
	_, existedBefore := n.store.Get(key)
	ok, redirectTo, err = n.write(walog.DeleteEntry(key))
	return existedBefore, ok, redirectTo, err
}

// BulkSet applies a bulk_set locally and unconditionally.
func (n *MasterlessNode) BulkSet(items []walog.KV) (bool, *string, error) {
	return n.write(walog.BulkSetEntry(items))
}

// write is the masterless per-write procedure: stamp the clock, apply
// durably, enqueue for fan-out, ack. There is no redirect in this strategy
// — every node accepts every write.
func (n *MasterlessNode) write(entry walog.Entry) (bool, *string, error) {
	clock := n.stamp()

	if err := n.store.ApplyEntry(entry); err != nil {
		return false, nil, err
	}

	n.enqueue(queuedWrite{entry: entry, clock: clock, source: n.self.ID})
	return true, nil, nil
}

// drainAndFanOut atomically drains the queue and fires each record at every
// peer. Delivery is fire-and-forget: an unreachable peer is tolerated and
// simply catches up later via anti-entropy.
func (n *MasterlessNode) drainAndFanOut() {
	n.queueMu.Lock()
	batch := n.queue
	n.queue = nil
	n.queueMu.Unlock()
	metrics.ReplicationQueueDepth.Set(0)

	if len(batch) == 0 {
		return
	}

	peers := n.membership.Peers()
	for _, w := range batch {
		entry := w.entry
		for _, p := range peers {
			p := p
			go func() {
				_, _ = n.transport.Call(p, dispatch.Request{
					Command:     dispatch.CmdReplicate,
					Entry:       &entry,
					VectorClock: w.clock,
					SourceNode:  w.source,
				}, RPCDeadline)
			}()
		}
	}
}

// HandlePeer answers the masterless strategy's slice of the replication
// vocabulary: replicate, get_all_entries, get_clock, get_conflicts.
func (n *MasterlessNode) HandlePeer(req dispatch.Request) dispatch.Response {
	switch req.Command {
	case dispatch.CmdReplicate:
		return n.handleReplicate(req)
	case dispatch.CmdGetAllEntries:
		return n.handleGetAllEntries()
	case dispatch.CmdGetClock:
		return n.handleGetClock()
	case dispatch.CmdGetConflicts:
		return n.handleGetConflicts()
	default:
		return dispatch.Response{Status: dispatch.StatusError, Error: "unsupported peer command: " + req.Command}
	}
}

// handleReplicate is the inbound replicate handler: dedupe against the
// source's last-applied component, detect true concurrency against the
// local clock, resolve concurrent writes by node-id tiebreak, and merge
// clocks.
func (n *MasterlessNode) handleReplicate(req dispatch.Request) dispatch.Response {
	if req.Entry == nil {
		return dispatch.Response{Status: dispatch.StatusError, Error: "missing entry"}
	}
	incoming := VectorClock(req.VectorClock)
	source := req.SourceNode

	n.clockMu.Lock()

	if incoming[source] <= n.lastApplied[source] {
		n.clockMu.Unlock()
		return dispatch.Response{Status: dispatch.StatusOK} // already applied
	}

	rel := incoming.Compare(n.clock)
	apply := true
	resolution := "applied"
	if rel == Concurrent {
		apply = source >= n.self.ID
		if apply {
			resolution = "applied (local id lower, remote wins tiebreak)"
		} else {
			resolution = "discarded (local id wins tiebreak)"
		}
		metrics.ConflictsTotal.Inc()
		n.recordConflict(source, *req.Entry, n.clock.Copy(), incoming.Copy(), resolution)
	}

	n.clock = n.clock.Merge(incoming)
	n.lastApplied[source] = incoming[source]
	n.clockMu.Unlock()

	if apply {
		if err := n.store.ApplyEntry(*req.Entry); err != nil {
			return dispatch.Response{Status: dispatch.StatusError, Error: err.Error()}
		}
	}
	return dispatch.Response{Status: dispatch.StatusOK}
}

func (n *MasterlessNode) recordConflict(source string, entry walog.Entry, local, incoming VectorClock, resolution string) {
	n.conflictMu.Lock()
	defer n.conflictMu.Unlock()
	n.conflicts = append(n.conflicts, dispatch.ConflictRecord{
		ID:            dispatch.NewConflictID(),
		Time:          time.Now().UnixNano(),
		Source:        source,
		Entry:         entry,
		LocalClock:    local,
		IncomingClock: incoming,
		Resolution:    resolution,
	})
	logging.WithComponent("cluster-masterless").Warn().
		Str("key", entry.Key).Str("resolution", resolution).Msg("concurrent write conflict")
}

// handleGetAllEntries reconstructs the full current mapping as a list of
// set entries, for a peer bootstrapping via anti-entropy. Each entry is
// tagged with this node's id as source and a synthetic, strictly increasing
// component of this node's own clock — distinct per entry so the puller's
// lastApplied dedupe guard (keyed on source's component alone) does not
// mistake one entry for a duplicate of the one before it. The rest of the
// returned clock is this node's current full clock snapshot, which is what
// actually drives the puller's concurrency detection against its own state.
func (n *MasterlessNode) handleGetAllEntries() dispatch.Response {
	n.clockMu.Lock()
	base := n.clock.Copy()
	n.clockMu.Unlock()

	keys := n.store.Keys()
	records := make([]dispatch.ReplicatedRecord, 0, len(keys))
	seq := uint64(0)
	for _, key := range keys {
		v, ok := n.store.Get(key)
		if !ok {
			continue
		}
		seq++
		clock := base.Copy()
		clock[n.self.ID] = seq
		records = append(records, dispatch.ReplicatedRecord{
			Entry:  walog.SetEntry(key, v),
			Clock:  map[string]uint64(clock),
			Source: n.self.ID,
		})
	}
	return dispatch.Response{Status: dispatch.StatusOK, Entries: records}
}

func (n *MasterlessNode) handleGetClock() dispatch.Response {
	n.clockMu.Lock()
	defer n.clockMu.Unlock()
	return dispatch.Response{Status: dispatch.StatusOK, Clock: n.clock.Copy()}
}

func (n *MasterlessNode) handleGetConflicts() dispatch.Response {
	n.conflictMu.Lock()
	defer n.conflictMu.Unlock()
	out := make([]dispatch.ConflictRecord, len(n.conflicts))
	copy(out, n.conflicts)
	return dispatch.Response{Status: dispatch.StatusOK, Conflicts: out}
}

// Bootstrap runs startup anti-entropy: ask every peer for its full state
// (best-effort, short timeout) and feed each returned record through
// handleReplicate — the exact same dedupe, concurrency-detection, LWW
// tiebreak, and clock-merge path a live push goes through — so a pulled
// record that conflicts with a fresher local write is resolved and logged
// instead of silently clobbering it.
func (n *MasterlessNode) Bootstrap() {
	log := logging.WithComponent("cluster-masterless")
	for _, p := range n.membership.Peers() {
		resp, err := n.transport.Call(p, dispatch.Request{Command: dispatch.CmdGetAllEntries}, LongRPCDeadline)
		if err != nil {
			log.Warn().Str("peer", p.ID).Err(err).Msg("anti-entropy pull failed")
			continue
		}
		for _, rec := range resp.Entries {
			entry := rec.Entry
			result := n.handleReplicate(dispatch.Request{
				Command:     dispatch.CmdReplicate,
				Entry:       &entry,
				VectorClock: rec.Clock,
				SourceNode:  rec.Source,
			})
			if result.Status == dispatch.StatusError {
				log.Warn().Str("peer", p.ID).Str("key", entry.Key).Str("error", result.Error).Msg("anti-entropy apply failed")
			}
		}
	}
}

// Status reports this node's clock and conflict counts for the read-only
// admin surface.
func (n *MasterlessNode) Status() map[string]any {
	n.clockMu.Lock()
	clock := n.clock.Copy()
	n.clockMu.Unlock()

	n.conflictMu.Lock()
	conflicts := len(n.conflicts)
	n.conflictMu.Unlock()

	n.queueMu.Lock()
	queued := len(n.queue)
	n.queueMu.Unlock()

	return map[string]any{
		"strategy":        "masterless",
		"clock":           clock,
		"conflicts_total": conflicts,
		"queue_depth":     queued,
	}
}
