package walog

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
)

// Log is a simple append-only file of newline-delimited JSON records (NDJSON).
//
// Interview explanation:
//
//	WALs are the backbone of crash safety in databases. Because writes are
//	sequential (append-only), they stay fast even on spinning disks. On
//	restart the log is read top to bottom and every entry re-applied,
//	leaving the store in the exact state it was in just before the crash.
//
// A trailing line with no terminating '\n' is the signature of a crash
// mid-write; Entries() discards it rather than failing recovery.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates path if it doesn't exist and positions the file for appending.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Log{file: f}, nil
}

// Append serializes entry as one JSON line and fsyncs before returning.
// fsync (Sync) forces the OS to flush its write buffer to physical media —
// without it a crash could lose the entry even though Write returned nil.
// A failure here is fatal to the node: the write must never be
// acknowledged to the client if it is not yet durable.
func (l *Log) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return err
	}
	return l.file.Sync()
}

// Entries scans the log from the beginning and returns every well-formed
// record. A record that fails to parse — a partial trailing write from a
// crash — silently terminates the scan; anything before it is kept.
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Seek(0, 0); err != nil {
		return nil, err
	}

	var entries []Entry
	scanner := bufio.NewScanner(l.file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			// Partial trailing record from a crash — stop here, discard it.
			break
		}
		entries = append(entries, e)
	}
	if _, err := l.file.Seek(0, 2); err != nil {
		return nil, err
	}
	return entries, nil
}

// Truncate empties the log after a successful snapshot has captured
// everything in it. The engine tolerates a non-empty log containing
// entries older AND newer than the snapshot (set/delete/bulk_set are all
// idempotent on replay), so truncation is an optimization, not a
// correctness requirement.
func (l *Log) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Truncate(0); err != nil {
		return err
	}
	_, err := l.file.Seek(0, 0)
	return err
}

// Close releases the underlying file handle.
func (l *Log) Close() error {
	return l.file.Close()
}
