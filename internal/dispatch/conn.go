package dispatch

import (
	"bufio"
	"encoding/json"
	"net"

	"github.com/ppriyankuu/kvstore/internal/logging"
	"github.com/ppriyankuu/kvstore/internal/metrics"
)

const maxLineSize = 16 * 1024 * 1024

// handleConn reads newline-delimited JSON requests off conn until it closes
// or hits an unrecoverable read error, writing one newline-delimited JSON
// response per request in order. A malformed line gets an error response
// and the connection stays open, per the wire contract; the loop ends on a
// socket read error or on a failure to write or flush a response.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	log := logging.WithComponent("dispatch")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	writer := bufio.NewWriter(conn)
	defer writer.Flush()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := s.writeResponse(writer, errResponse("malformed request: "+err.Error())); err != nil {
				log.Warn().Err(err).Msg("write response failed")
				return
			}
			if err := writer.Flush(); err != nil {
				log.Warn().Err(err).Msg("flush failed")
				return
			}
			continue
		}

		resp := s.route(req)
		if err := s.writeResponse(writer, resp); err != nil {
			log.Warn().Err(err).Msg("write response failed")
			return
		}
		if err := writer.Flush(); err != nil {
			log.Warn().Err(err).Msg("flush failed")
			return
		}
	}
}

func (s *Server) writeResponse(w *bufio.Writer, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// route dispatches a decoded request to the right handler by command tag,
// timing the call and recording its outcome.
func (s *Server) route(req Request) Response {
	timer := metrics.NewTimer()
	resp := s.dispatchCommand(req)
	timer.ObserveDurationVec(metrics.RequestDuration, req.Command)
	metrics.RequestsTotal.WithLabelValues(req.Command, resp.Status).Inc()
	return resp
}

func (s *Server) dispatchCommand(req Request) Response {
	switch req.Command {
	case CmdGet:
		return s.handleGet(req)
	case CmdSet:
		return s.handleSet(req)
	case CmdDelete:
		return s.handleDelete(req)
	case CmdBulkSet:
		return s.handleBulkSet(req)
	case CmdFullTextSearch:
		return s.handleFullTextSearch(req)
	case CmdPhraseSearch:
		return s.handlePhraseSearch(req)
	case CmdSemanticSearch:
		return s.handleSemanticSearch(req)
	case CmdSaveIndexes:
		return s.handleSaveIndexes(req)
	case CmdRequestVote, CmdAppendEntries, CmdReplicate, CmdGetAllEntries, CmdGetClock, CmdGetConflicts:
		if s.peer == nil {
			return errResponse("unknown command: " + req.Command)
		}
		return s.peer.HandlePeer(req)
	default:
		return errResponse("unknown command: " + req.Command)
	}
}
