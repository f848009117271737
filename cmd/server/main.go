// cmd/server is the entrypoint for a single key-value store node. Every
// node runs the same binary; the config file's strategy field selects which
// replication protocol it speaks to its peers.
//
// Example — single node, leader/quorum strategy:
//
//	./server serve --config /etc/kvstore/node1.yaml
//
// The node exposes two ports: the raw TCP key-value wire protocol
// (config.Port) and a read-only HTTP admin surface (config.AdminPort)
// serving /healthz, /metrics, /debug/cluster and /debug/keys.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppriyankuu/kvstore/internal/cluster"
	"github.com/ppriyankuu/kvstore/internal/config"
	"github.com/ppriyankuu/kvstore/internal/dispatch"
	"github.com/ppriyankuu/kvstore/internal/httpapi"
	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/ppriyankuu/kvstore/internal/logging"
	"github.com/ppriyankuu/kvstore/internal/snapshotter"
	"github.com/spf13/cobra"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kvstore-server",
	Short:   "Distributed key-value store node",
	Version: Version,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the node's YAML config file (required)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run this node until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return fmt.Errorf("--config is required")
		}
		return runServe(configPath)
	},
}

func runServe(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := logging.Level(cfg.LogLevel)
	logging.Init(logging.Config{Level: logLevel, JSONOutput: cfg.LogJSON})
	log := logging.WithNode(cfg.NodeID)

	store, err := kv.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	self := cluster.Peer{ID: cfg.NodeID, Address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	peers := make([]cluster.Peer, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peers = append(peers, cluster.Peer{ID: p.ID, Address: p.Address})
	}
	membership := cluster.NewMembership(self, peers)

	var (
		writer  dispatch.Writer
		peer    dispatch.PeerHandler
		status  httpapi.ClusterStatus
		stopFn  func()
	)

	switch cfg.Strategy {
	case config.StrategyLeader:
		node := cluster.NewLeaderNode(self, membership, store)
		go node.Run()
		writer, peer, status = node, node, node
		stopFn = node.Stop
	case config.StrategyMasterless:
		node := cluster.NewMasterlessNode(self, membership, store)
		node.Bootstrap()
		go node.Run()
		writer, peer, status = node, node, node
		stopFn = node.Stop
	default:
		return fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}

	snap := snapshotter.New(store, cfg.IndexSnapshotInterval)
	go snap.Run()
	defer snap.Stop()

	server := dispatch.NewServer(store, writer, peer)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Serve(self.Address); err != nil {
			serverErrCh <- err
		}
	}()

	adminHandler := httpapi.NewHandler(store, status, cfg.NodeID)
	adminRouter := httpapi.NewRouter(adminHandler)
	adminAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.AdminPort)
	adminSrv := &http.Server{
		Addr:         adminAddr,
		Handler:      adminRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	log.Info().
		Str("strategy", string(cfg.Strategy)).
		Str("kv_addr", self.Address).
		Str("admin_addr", adminAddr).
		Msg("node started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down")
	case err := <-serverErrCh:
		log.Error().Err(err).Msg("server error, shutting down")
	}

	stopFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("admin server shutdown")
	}
	if err := server.Close(); err != nil {
		log.Warn().Err(err).Msg("dispatch server shutdown")
	}

	if err := store.Snapshot(); err != nil {
		log.Warn().Err(err).Msg("final mapping snapshot failed")
	}
	if err := store.SaveIndexes(); err != nil {
		log.Warn().Err(err).Msg("final index snapshot failed")
	}

	log.Info().Msg("shutdown complete")
	return nil
}
