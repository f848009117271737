// Package tcpclient is a thin Go SDK over the node's raw TCP, newline-JSON
// wire protocol (see internal/dispatch). Each call opens a connection,
// writes one request line, reads one response line, and closes — no
// connection pooling or retries, those belong to internal/cluster's
// Transport for peer-to-peer traffic, not to an interactive CLI client.
package tcpclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ppriyankuu/kvstore/internal/dispatch"
	"github.com/ppriyankuu/kvstore/internal/walog"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Client talks to exactly one node over its key-value TCP port.
type Client struct {
	addr    string
	timeout time.Duration
}

// New builds a Client dialing addr with the given per-call timeout.
func New(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout}
}

func (c *Client) call(req dispatch.Request) (dispatch.Response, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return dispatch.Response{}, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	line, err := json.Marshal(req)
	if err != nil {
		return dispatch.Response{}, err
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return dispatch.Response{}, fmt.Errorf("write: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return dispatch.Response{}, fmt.Errorf("read: %w", err)
		}
		return dispatch.Response{}, fmt.Errorf("read: connection closed with no response")
	}

	var resp dispatch.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return dispatch.Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == dispatch.StatusError {
		return resp, fmt.Errorf("server error: %s", resp.Error)
	}
	if resp.Status == dispatch.StatusOK && resp.Success != nil && !*resp.Success {
		return resp, fmt.Errorf("server reported the request was not applied")
	}
	return resp, nil
}

// Set stores key=value. redirectTo is non-nil when the node the client
// dialed is not currently accepting writes and knows the leader (leader
// strategy only); a write the node reports as not applied (success=false)
// returns an error.
func (c *Client) Set(key, value string) (redirectTo *string, err error) {
	resp, err := c.call(dispatch.Request{Command: dispatch.CmdSet, Key: key, Value: value})
	if err != nil {
		return nil, err
	}
	return resp.LeaderID, nil
}

// Get retrieves key, returning ErrNotFound if it has no value.
func (c *Client) Get(key string) (string, error) {
	resp, err := c.call(dispatch.Request{Command: dispatch.CmdGet, Key: key})
	if err != nil {
		return "", err
	}
	if resp.Value == nil {
		return "", ErrNotFound
	}
	return *resp.Value, nil
}

// Delete removes key.
func (c *Client) Delete(key string) (redirectTo *string, err error) {
	resp, err := c.call(dispatch.Request{Command: dispatch.CmdDelete, Key: key})
	if err != nil {
		return nil, err
	}
	return resp.LeaderID, nil
}

// BulkSet stores every pair in items in one request.
func (c *Client) BulkSet(items []walog.KV) (redirectTo *string, err error) {
	resp, err := c.call(dispatch.Request{Command: dispatch.CmdBulkSet, Items: items})
	if err != nil {
		return nil, err
	}
	return resp.LeaderID, nil
}

// FullTextSearch runs the inverted-index TF-IDF query, returning the top-k
// (key, score) hits.
func (c *Client) FullTextSearch(query string, topK int) ([]dispatch.ScoredHit, error) {
	return c.search(dispatch.CmdFullTextSearch, dispatch.Request{Command: dispatch.CmdFullTextSearch, Query: query, TopK: topK})
}

// PhraseSearch runs the exact-phrase query. Unlike full-text and semantic
// search, the wire contract returns phrase_search results as a plain list
// of keys (no score — a substring match is binary), so this does not go
// through the score-pair search() helper; each key comes back with a zero
// score. The server returns every match; topK > 0 trims the list here.
func (c *Client) PhraseSearch(phrase string, topK int) ([]dispatch.ScoredHit, error) {
	resp, err := c.call(dispatch.Request{Command: dispatch.CmdPhraseSearch, Phrase: phrase, TopK: topK})
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(resp.Results)
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("decode phrase_search results: %w", err)
	}
	hits := make([]dispatch.ScoredHit, 0, len(keys))
	for _, k := range keys {
		hits = append(hits, dispatch.ScoredHit{Key: k})
	}
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// SemanticSearch runs the hashed-trigram similarity query.
func (c *Client) SemanticSearch(query string, topK int) ([]dispatch.ScoredHit, error) {
	return c.search(dispatch.CmdSemanticSearch, dispatch.Request{Command: dispatch.CmdSemanticSearch, Query: query, TopK: topK})
}

func (c *Client) search(cmd string, req dispatch.Request) ([]dispatch.ScoredHit, error) {
	resp, err := c.call(req)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(resp.Results)
	if err != nil {
		return nil, err
	}
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("decode %s results: %w", cmd, err)
	}
	hits := make([]dispatch.ScoredHit, 0, len(pairs))
	for _, p := range pairs {
		var key string
		var score float64
		if err := json.Unmarshal(p[0], &key); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(p[1], &score); err != nil {
			return nil, err
		}
		hits = append(hits, dispatch.ScoredHit{Key: key, Score: score})
	}
	return hits, nil
}

// SaveIndexes forces an immediate index snapshot on the dialed node.
func (c *Client) SaveIndexes() error {
	_, err := c.call(dispatch.Request{Command: dispatch.CmdSaveIndexes})
	return err
}
