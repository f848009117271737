package dispatch

import (
	"net"
	"sync/atomic"

	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/ppriyankuu/kvstore/internal/logging"
)

// Server is the node's single TCP listener. It owns no replication or
// storage logic itself — it decodes one newline-delimited JSON request at a
// time, routes client-vocabulary reads (get/search/save_indexes) straight
// to the local Store, routes client-vocabulary writes through Writer (which
// encodes the active replication strategy's acceptance rule), and routes
// the whole peer vocabulary through PeerHandler.
type Server struct {
	store  *kv.Store
	writer Writer
	peer   PeerHandler

	listener net.Listener
	closing  atomic.Bool
}

// NewServer wires a Server to the local store and the strategy-specific
// write/peer handlers.
func NewServer(store *kv.Store, writer Writer, peer PeerHandler) *Server {
	return &Server{store: store, writer: writer, peer: peer}
}

// Serve binds addr and accepts connections until the listener is closed.
// Each connection is handled on its own goroutine (invariant: the
// dispatcher must serve multiple clients concurrently).
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	log := logging.WithComponent("dispatch")
	log.Info().Str("addr", addr).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			log.Warn().Err(err).Msg("accept failed")
			continue
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections. In-flight connections run to
// completion on their own.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	s.closing.Store(true)
	return s.listener.Close()
}

// Addr reports the bound address, useful when addr passed to Serve used
// port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
