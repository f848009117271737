// Package dispatch implements the node's single wire protocol: TCP,
// newline-terminated UTF-8 JSON objects in both directions, no other
// framing. One dispatcher serves two coexisting command vocabularies —
// client (set/get/delete/bulk_set/full_text_search/phrase_search/
// semantic_search/save_indexes) and peer (request_vote/append_entries/
// replicate/get_all_entries/get_clock/get_conflicts) — on the same
// listener and the same per-connection line loop.
package dispatch

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/ppriyankuu/kvstore/internal/walog"
)

// Command vocabulary, both client and peer, on one wire.
const (
	CmdSet             = "set"
	CmdGet             = "get"
	CmdDelete          = "delete"
	CmdBulkSet         = "bulk_set"
	CmdFullTextSearch  = "full_text_search"
	CmdPhraseSearch    = "phrase_search"
	CmdSemanticSearch  = "semantic_search"
	CmdSaveIndexes     = "save_indexes"
	CmdRequestVote     = "request_vote"
	CmdAppendEntries   = "append_entries"
	CmdReplicate       = "replicate"
	CmdGetAllEntries   = "get_all_entries"
	CmdGetClock        = "get_clock"
	CmdGetConflicts    = "get_conflicts"
)

// Status values used in Response.Status.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusRedirect = "redirect"
)

// Request is the single envelope decoded from one newline-delimited JSON
// record. Only the fields relevant to Command are populated by the sender;
// the rest are zero values.
type Request struct {
	Command string `json:"command"`

	// client vocabulary
	Key    string     `json:"key,omitempty"`
	Value  string      `json:"value,omitempty"`
	Items  []walog.KV  `json:"items,omitempty"`
	Query  string      `json:"query,omitempty"`
	TopK   int         `json:"top_k,omitempty"`
	Phrase string      `json:"phrase,omitempty"`

	// peer vocabulary
	Term        uint64            `json:"term,omitempty"`
	CandidateID string            `json:"candidate_id,omitempty"`
	LeaderID    string            `json:"leader_id,omitempty"`
	Entry       *walog.Entry      `json:"entry,omitempty"`
	VectorClock map[string]uint64 `json:"vector_clock,omitempty"`
	SourceNode  string            `json:"source_node,omitempty"`
}

// ScoredHit is one (key, score) pair. It marshals as a two-element JSON
// array — [key, score] — per the wire contract for full_text_search and
// semantic_search, not as an object.
type ScoredHit struct {
	Key   string
	Score float64
}

func (h ScoredHit) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{h.Key, h.Score})
}

// ConflictRecord is one masterless-strategy conflict log entry, exposed
// verbatim via get_conflicts.
type ConflictRecord struct {
	ID            string            `json:"id"`
	Time          int64             `json:"time"`
	Source        string            `json:"source"`
	Entry         walog.Entry       `json:"entry"`
	LocalClock    map[string]uint64 `json:"local_clock"`
	IncomingClock map[string]uint64 `json:"incoming_clock"`
	Resolution    string            `json:"resolution"`
}

// NewConflictID mints a unique id for one conflict log entry.
func NewConflictID() string { return uuid.New().String() }

// ReplicatedRecord pairs one log entry with the vector clock and source
// node id it should be attributed to when applied. get_all_entries returns
// these instead of bare entries so a bootstrapping node's anti-entropy pull
// can be replayed through the same replicate path (dedupe, concurrency
// detection, LWW tiebreak, clock merge) as a live push, rather than being
// applied blind.
type ReplicatedRecord struct {
	Entry  walog.Entry       `json:"entry"`
	Clock  map[string]uint64 `json:"clock"`
	Source string            `json:"source"`
}

// Response is the single envelope encoded back to the peer. Fields not
// meaningful for a given response are omitted from the wire.
type Response struct {
	Status      string             `json:"status"`
	Success     *bool              `json:"success,omitempty"`
	Value       *string            `json:"value,omitempty"`
	Results     any                `json:"results,omitempty"`
	Error       string             `json:"error,omitempty"`
	LeaderID    *string            `json:"leader_id,omitempty"`
	VoteGranted *bool              `json:"vote_granted,omitempty"`
	Term        uint64             `json:"term,omitempty"`
	Entries     []ReplicatedRecord `json:"entries,omitempty"`
	Clock       map[string]uint64  `json:"clock,omitempty"`
	Conflicts   []ConflictRecord   `json:"conflicts,omitempty"`
}

func ok() Response { return Response{Status: StatusOK} }

func okSuccess(success bool) Response {
	return Response{Status: StatusOK, Success: &success}
}

func errResponse(msg string) Response {
	return Response{Status: StatusError, Error: msg}
}

func redirect(leaderID *string) Response {
	return Response{Status: StatusRedirect, LeaderID: leaderID}
}
