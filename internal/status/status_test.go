package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/device"
)

type fakeWorkers struct {
	workers map[command.Resource]*device.Worker
	aborted bool
}

func (f fakeWorkers) Workers() map[command.Resource]*device.Worker { return f.workers }
func (f fakeWorkers) Aborted() bool                                { return f.aborted }

func TestHealthzReportsWorkerStatus(t *testing.T) {
	w := device.NewWorker(command.ResourceWash, func(context.Context, command.Command) error { return nil })
	w.Start(context.Background())
	defer w.Stop()

	s := New(":0", "run-1", fakeWorkers{workers: map[command.Resource]*device.Worker{command.ResourceWash: w}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.healthHandler(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "ready", resp.Workers["wash"].Status)
}

func TestHealthzReportsAborted(t *testing.T) {
	s := New(":0", "run-2", fakeWorkers{workers: map[command.Resource]*device.Worker{}, aborted: true})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.healthHandler(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
