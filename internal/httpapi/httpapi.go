// Package httpapi is the node's read-only operational window: health
// checks, Prometheus scraping, and cluster-state inspection. It is
// deliberately a second, separate HTTP surface from the key-value wire
// protocol (internal/dispatch), which stays raw TCP + newline-JSON — this
// surface never accepts a set/get/delete and is safe to put behind a
// different network policy than the data path.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ppriyankuu/kvstore/internal/kv"
	"github.com/ppriyankuu/kvstore/internal/metrics"
)

// ClusterStatus is implemented by whichever replication strategy a node
// runs, reporting a small strategy-specific status map.
type ClusterStatus interface {
	Status() map[string]any
}

// Handler holds the dependencies the admin surface reports on.
type Handler struct {
	store   *kv.Store
	cluster ClusterStatus
	nodeID  string
}

// NewHandler builds a Handler for store, reporting cluster's status under
// the given nodeID.
func NewHandler(store *kv.Store, cluster ClusterStatus, nodeID string) *Handler {
	return &Handler{store: store, cluster: cluster, nodeID: nodeID}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/debug/cluster", h.DebugCluster)
	r.GET("/debug/keys", h.DebugKeys)
}

// NewRouter builds a gin.Engine with the node's logging/recovery middleware
// and every route registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(Logger(), Recovery())
	h.Register(r)
	return r
}

// Healthz reports liveness only — it never touches the store or its master
// mutex, so a slow write elsewhere cannot make this endpoint hang.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "node_id": h.nodeID})
}

// DebugCluster reports this node's replication-strategy state.
func (h *Handler) DebugCluster(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"node_id": h.nodeID,
		"status":  h.cluster.Status(),
	})
}

// DebugKeys reports the number of live keys, for a quick operator glance
// without scraping the full Prometheus surface.
func (h *Handler) DebugKeys(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": len(h.store.Keys())})
}
