package dispatch

import "github.com/ppriyankuu/kvstore/internal/walog"

// Writer is implemented by whichever replication strategy a node runs. It
// decides whether a write is accepted locally at all (the leader strategy
// refuses on non-leader nodes; the masterless strategy always accepts) and
// is responsible for fanning the write out to peers after applying it
// durably.
type Writer interface {
	// Set, Delete and BulkSet apply the mutation if this node's role
	// permits it. ok is false when the local log append failed (err is
	// then set), when the leader strategy's non-leader node refuses the
	// write, or when a leader's write did not reach a majority (it has
	// already been applied locally in that case). redirect is non-nil
	// only for the leader strategy's non-leader rejection, and only when
	// that node knows a leader; with no known leader it is nil.
	Set(key, value string) (ok bool, redirectTo *string, err error)
	Delete(key string) (existed bool, ok bool, redirectTo *string, err error)
	BulkSet(items []walog.KV) (ok bool, redirectTo *string, err error)
}

// PeerHandler answers the replication vocabulary. Its concrete shape is
// strategy-specific (leader election RPCs vs. masterless clock/replicate
// RPCs); the dispatcher only needs to hand it a decoded Request and get a
// Response back.
type PeerHandler interface {
	HandlePeer(req Request) Response
}
