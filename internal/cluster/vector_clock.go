package cluster

import "maps"

// ClockRelation is how two vector clocks relate to each other under the
// happens-before partial order.
type ClockRelation int

const (
	Before ClockRelation = iota
	After
	Equal
	Concurrent
)

// VectorClock maps node id to that node's logical write counter. Node ids
// are kept as plain strings everywhere — on the wire, as map keys, and in
// the conflict log — so there is exactly one representation and no chance
// of a stringified-vs-numeric "ghost" component.
//
// The type carries no lock of its own: every caller in this package
// serializes access externally (MasterlessNode.clockMu), consistent with
// the package's master → clock → queue lock order. Increment is therefore
// never safe to call concurrently on the same VectorClock value without
// that external lock held.
type VectorClock map[string]uint64

// Increment bumps nodeID's own counter and returns the updated value, so a
// caller already holding the clock lock can stamp and read the new
// component in the same call instead of a separate map lookup.
// MasterlessNode.stamp ignores the returned value and takes a full Copy
// instead.
func (vc VectorClock) Increment(nodeID string) uint64 {
	vc[nodeID]++
	return vc[nodeID]
}

// Compare determines how vc relates to other.
func (vc VectorClock) Compare(other VectorClock) ClockRelation {
	vcDominates := false
	otherDominates := false

	for node, cnt := range vc {
		if cnt > other[node] {
			vcDominates = true
		} else if cnt < other[node] {
			otherDominates = true
		}
	}
	for node, cnt := range other {
		if _, ok := vc[node]; !ok && cnt > 0 {
			otherDominates = true
		}
	}

	switch {
	case !vcDominates && !otherDominates:
		return Equal
	case vcDominates && !otherDominates:
		return After
	case !vcDominates && otherDominates:
		return Before
	default:
		return Concurrent
	}
}

// Merge returns the componentwise-max combination of vc and other. It does
// not resolve conflicts, only combines version history.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	merged := vc.Copy()
	for node, cnt := range other {
		if cnt > merged[node] {
			merged[node] = cnt
		}
	}
	return merged
}

// Copy returns a deep copy, since maps are reference types in Go.
func (vc VectorClock) Copy() VectorClock {
	c := make(VectorClock, len(vc))
	maps.Copy(c, vc)
	return c
}
