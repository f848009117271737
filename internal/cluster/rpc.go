package cluster

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/ppriyankuu/kvstore/internal/dispatch"
)

// RPCDeadline bounds a single peer round-trip to a short, O(100ms) budget.
// Election/heartbeat RPCs use this directly; anti-entropy and get_* calls
// use LongRPCDeadline instead.
const RPCDeadline = 150 * time.Millisecond

// LongRPCDeadline bounds best-effort bulk calls like startup anti-entropy,
// which can tolerate more slack than a single write's quorum RPC.
const LongRPCDeadline = 2 * time.Second

// Transport sends one request to one peer over the node's single raw-TCP
// newline-JSON wire protocol and returns its response.
type Transport struct{}

// Call dials peer, writes req as one line, and reads back one line as the
// response, all within deadline.
func (Transport) Call(peer Peer, req dispatch.Request, deadline time.Duration) (dispatch.Response, error) {
	conn, err := net.DialTimeout("tcp", peer.Address, deadline)
	if err != nil {
		return dispatch.Response{}, fmt.Errorf("dial %s: %w", peer.ID, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(deadline))

	body, err := json.Marshal(req)
	if err != nil {
		return dispatch.Response{}, err
	}
	if _, err := conn.Write(append(body, '\n')); err != nil {
		return dispatch.Response{}, fmt.Errorf("write to %s: %w", peer.ID, err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return dispatch.Response{}, fmt.Errorf("read from %s: %w", peer.ID, err)
		}
		return dispatch.Response{}, fmt.Errorf("read from %s: connection closed", peer.ID)
	}

	var resp dispatch.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return dispatch.Response{}, fmt.Errorf("decode response from %s: %w", peer.ID, err)
	}
	return resp, nil
}

// CallWithRetry retries Call up to maxAttempts times with exponential
// backoff (100ms, 200ms, 400ms, ...) between attempts, to spread load away
// from a momentarily overloaded peer instead of hammering it in lockstep.
func (t Transport) CallWithRetry(peer Peer, req dispatch.Request, deadline time.Duration, maxAttempts int) (dispatch.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))*100) * time.Millisecond
			time.Sleep(delay)
		}
		resp, err := t.Call(peer, req, deadline)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return dispatch.Response{}, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}
