// Package snapshotter runs the background index-snapshot task: independent
// of the log/mapping snapshot cycle owned by internal/kv, it periodically
// serializes the search index manager to disk via the same atomic-rename
// protocol.
package snapshotter

import (
	"time"

	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/ppriyankuu/kvstore/internal/logging"
)

// DefaultInterval is the default index-snapshot cadence.
const DefaultInterval = 30 * time.Second

// Snapshotter periodically persists a Store's index manager.
type Snapshotter struct {
	store    *kv.Store
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Snapshotter for store, ticking at interval (use
// DefaultInterval if zero).
func New(store *kv.Store, interval time.Duration) *Snapshotter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Snapshotter{
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run ticks until Stop is called, saving the index on every tick. It is
// meant to be launched on its own goroutine.
func (s *Snapshotter) Run() {
	defer close(s.doneCh)

	log := logging.WithComponent("snapshotter")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.store.SaveIndexes(); err != nil {
				log.Warn().Err(err).Msg("index snapshot failed")
			}
		}
	}
}

// Stop ends the ticking loop and blocks until Run has returned.
func (s *Snapshotter) Stop() {
	close(s.stopCh)
	<-s.doneCh
}
