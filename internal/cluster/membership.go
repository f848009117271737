// Package cluster implements both replication strategies over one shared
// transport: a leader/quorum Raft-like election protocol, and a masterless
// vector-clock multi-writer protocol. Both strategies replicate the entire
// mapping to every node — there is no partitioning or consistent-hash
// sharding here, unlike a Dynamo-style ring. Every node holds a full copy.
package cluster

import "sync"

// Peer is one other node in the cluster: its id and dial address.
type Peer struct {
	ID      string
	Address string
}

// Membership is a flat, full-replication peer registry — every node knows
// every other node's id and address, with no ownership ranges to compute.
type Membership struct {
	mu    sync.RWMutex
	self  Peer
	peers map[string]Peer
}

// NewMembership builds a registry seeded with self and the given peers.
func NewMembership(self Peer, peers []Peer) *Membership {
	m := &Membership{
		self:  self,
		peers: make(map[string]Peer, len(peers)),
	}
	for _, p := range peers {
		if p.ID == self.ID {
			continue
		}
		m.peers[p.ID] = p
	}
	return m
}

// Self returns this node's own identity.
func (m *Membership) Self() Peer { return m.self }

// Peers returns every other known node, in no particular order.
func (m *Membership) Peers() []Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}
	return out
}

// Count returns the full cluster size, self included — used to compute
// majority quorums.
func (m *Membership) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers) + 1
}

// Get looks up a peer by id.
func (m *Membership) Get(id string) (Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[id]
	return p, ok
}

// Join adds or updates a peer's address.
func (m *Membership) Join(p Peer) {
	if p.ID == m.self.ID {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[p.ID] = p
}

// Leave removes a peer from the registry.
func (m *Membership) Leave(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, id)
}

// Majority returns the smallest count that is a strict majority of the
// full cluster size.
func (m *Membership) Majority() int {
	return m.Count()/2 + 1
}
