// Package status exposes a minimal read-only HTTP status server for an
// in-progress run: one GET /healthz reporting each device worker's
// ready/busy state and queue depth, so an operator or monitoring probe can
// see the run is alive without touching the event log file.
//
// Grounded on pkg/api/handler_health.go's health-check shape (an overall
// status string plus a map of named component checks) and
// pkg/api/responses.go's HealthResponse/HealthCheck types, ported from the
// teacher's echo-based server onto gin-gonic/gin per this repo's DOMAIN
// STACK wiring (SPEC_FULL.md), which dedicates gin to this ambient surface.
package status

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/device"
)

const (
	statusHealthy  = "healthy"
	statusAborted  = "aborted"
)

// Check is the reported state of one device worker.
type Check struct {
	Status   string `json:"status"`
	QueueLen int    `json:"queue_len"`
}

// Response is the body GET /healthz returns.
type Response struct {
	Status  string           `json:"status"`
	RunID   string           `json:"run_id"`
	Workers map[string]Check `json:"workers"`
}

// WorkerSet is the minimal view the status server needs from a running
// executor.Runtime, kept as an interface so this package never imports
// internal/executor (which would create an import cycle if the executor
// ever wanted to serve status itself).
type WorkerSet interface {
	Workers() map[command.Resource]*device.Worker
	Aborted() bool
}

// Server serves the read-only status endpoint over plain HTTP.
type Server struct {
	runID   string
	workers WorkerSet
	engine  *gin.Engine
	http    *http.Server
}

// New builds a status Server bound to addr, reporting runID and workers.
func New(addr, runID string, workers WorkerSet) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	s := &Server{runID: runID, workers: workers, engine: engine}
	engine.GET("/healthz", s.healthHandler)
	s.http = &http.Server{Addr: addr, Handler: engine}
	return s
}

// ListenAndServe blocks serving the status endpoint until the server is
// shut down or a listener error occurs.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Close shuts the HTTP listener down.
func (s *Server) Close() error {
	return s.http.Close()
}

func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]Check)
	for resource, w := range s.workers.Workers() {
		st := "ready"
		if !w.IsReady() {
			st = "busy"
		}
		checks[string(resource)] = Check{Status: st, QueueLen: w.QueueLen()}
	}

	overall := statusHealthy
	httpStatus := http.StatusOK
	if s.workers.Aborted() {
		overall = statusAborted
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, Response{Status: overall, RunID: s.runID, Workers: checks})
}
