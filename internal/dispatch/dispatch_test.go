package dispatch

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/ppriyankuu/kvstore/internal/walog"
	"github.com/stretchr/testify/require"
)

// fakeWriter always accepts writes locally, like the masterless strategy.
type fakeWriter struct {
	store *kv.Store
}

func (w *fakeWriter) Set(key, value string) (bool, *string, error) {
	if err := w.store.Set(key, value); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

func (w *fakeWriter) Delete(key string) (bool, bool, *string, error) {
	existed, err := w.store.Delete(key)
	if err != nil {
		return existed, false, nil, err
	}
	return existed, true, nil, nil
}

func (w *fakeWriter) BulkSet(items []walog.KV) (bool, *string, error) {
	if err := w.store.BulkSet(items); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

type fakePeer struct{}

func (fakePeer) HandlePeer(req Request) Response {
	return Response{Status: StatusOK}
}

func startTestServer(t *testing.T) (net.Addr, *kv.Store) {
	t.Helper()
	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := NewServer(store, &fakeWriter{store: store}, fakePeer{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handleConn(conn)
		}
	}()
	t.Cleanup(func() { srv.Close() })

	return ln.Addr(), store
}

func roundTrip(t *testing.T, addr net.Addr, req Request) Response {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	b, err := json.Marshal(req)
	require.NoError(t, err)
	_, err = conn.Write(append(b, '\n'))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())

	var resp Response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	return resp
}

func TestSetThenGet(t *testing.T) {
	addr, _ := startTestServer(t)

	resp := roundTrip(t, addr, Request{Command: CmdSet, Key: "a", Value: "1"})
	require.Equal(t, StatusOK, resp.Status)
	require.True(t, *resp.Success)

	resp = roundTrip(t, addr, Request{Command: CmdGet, Key: "a"})
	require.Equal(t, StatusOK, resp.Status)
	require.Equal(t, "1", *resp.Value)
}

func TestGetMissingKeyReturnsNilValue(t *testing.T) {
	addr, _ := startTestServer(t)
	resp := roundTrip(t, addr, Request{Command: CmdGet, Key: "nope"})
	require.Equal(t, StatusOK, resp.Status)
	require.Nil(t, resp.Value)
}

func TestUnknownCommandReturnsError(t *testing.T) {
	addr, _ := startTestServer(t)
	resp := roundTrip(t, addr, Request{Command: "frobnicate"})
	require.Equal(t, StatusError, resp.Status)
	require.Contains(t, resp.Error, "frobnicate")
}

func TestBulkSetThenSearch(t *testing.T) {
	addr, _ := startTestServer(t)

	resp := roundTrip(t, addr, Request{Command: CmdBulkSet, Items: []walog.KV{
		{Key: "doc1", Value: "python programming language"},
		{Key: "doc2", Value: "javascript web development"},
	}})
	require.Equal(t, StatusOK, resp.Status)
	require.True(t, *resp.Success)

	resp = roundTrip(t, addr, Request{Command: CmdFullTextSearch, Query: "python", TopK: 5})
	require.Equal(t, StatusOK, resp.Status)
	require.NotEmpty(t, resp.Results)
}

func TestPhraseSearch(t *testing.T) {
	addr, _ := startTestServer(t)

	roundTrip(t, addr, Request{Command: CmdSet, Key: "s1", Value: "the lazy dog sleeps"})
	resp := roundTrip(t, addr, Request{Command: CmdPhraseSearch, Phrase: "lazy dog"})
	require.Equal(t, StatusOK, resp.Status)
	require.NotEmpty(t, resp.Results)
}

func TestDeleteThenGet(t *testing.T) {
	addr, _ := startTestServer(t)

	resp := roundTrip(t, addr, Request{Command: CmdSet, Key: "a", Value: "1"})
	require.Equal(t, StatusOK, resp.Status)
	require.True(t, *resp.Success)

	resp = roundTrip(t, addr, Request{Command: CmdDelete, Key: "a"})
	require.Equal(t, StatusOK, resp.Status)
	require.True(t, *resp.Success)

	resp = roundTrip(t, addr, Request{Command: CmdGet, Key: "a"})
	require.Equal(t, StatusOK, resp.Status)
	require.Nil(t, resp.Value)
}

func TestMalformedLineKeepsConnectionOpen(t *testing.T) {
	addr, _ := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json at all\n"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())
	var resp Response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	require.Equal(t, StatusError, resp.Status)

	b, _ := json.Marshal(Request{Command: CmdGet, Key: "x"})
	_, err = conn.Write(append(b, '\n'))
	require.NoError(t, err)
	require.True(t, scanner.Scan())
}

func TestSaveIndexes(t *testing.T) {
	addr, _ := startTestServer(t)
	resp := roundTrip(t, addr, Request{Command: CmdSaveIndexes})
	require.Equal(t, StatusOK, resp.Status)
	require.True(t, *resp.Success)
}

func TestPeerCommandRoutesToPeerHandler(t *testing.T) {
	addr, _ := startTestServer(t)
	resp := roundTrip(t, addr, Request{Command: CmdGetClock})
	require.Equal(t, StatusOK, resp.Status)
}
