package influxdb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// fakeWriter collects points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

// fakePinger reports a fixed health result.
type fakePinger struct {
	healthy bool
	err     error
	closed  bool
}

func (p *fakePinger) Ping(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.healthy, p.err
}

func (p *fakePinger) Close() { p.closed = true }

// testConfig returns a configuration for the local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "graynode-dev-token",
		Org:           "graynode",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func fakeClient() (*Client, *fakeWriter, *fakePinger) {
	w := &fakeWriter{}
	p := &fakePinger{healthy: true}
	return newClient(testConfig(), p, w), w, p
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func fields(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	require.ErrorIs(t, err, ErrDisabled)
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	_, err := Connect(cfg)
	require.ErrorIs(t, err, ErrConnectionFailed)
}

func TestConnect_Live(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION to test against a local InfluxDB")
	}

	client, err := Connect(testConfig())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestBatchSettings(t *testing.T) {
	tests := []struct {
		name      string
		batch     int
		flush     int
		wantBatch int
		wantFlush int
	}{
		{name: "configured", batch: 50, flush: 2, wantBatch: 50, wantFlush: 2},
		{name: "zero", batch: 0, flush: 0, wantBatch: defaultBatchSize, wantFlush: defaultFlushInterval},
		{name: "negative", batch: -1, flush: -5, wantBatch: defaultBatchSize, wantFlush: defaultFlushInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize = tt.batch
			cfg.FlushInterval = tt.flush

			batch, flush := batchSettings(cfg)
			assert.Equal(t, tt.wantBatch, batch)
			assert.Equal(t, tt.wantFlush, flush)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	c, _, p := fakeClient()
	require.NoError(t, c.HealthCheck(context.Background()))

	p.healthy = false
	require.Error(t, c.HealthCheck(context.Background()))

	p.err = errors.New("refused")
	require.ErrorIs(t, c.HealthCheck(context.Background()), p.err)
}

func TestHealthCheck_Cancelled(t *testing.T) {
	c, _, _ := fakeClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, c.HealthCheck(ctx), context.Canceled)
}

func TestClose(t *testing.T) {
	c, w, p := fakeClient()

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
	assert.Equal(t, 1, w.flushes)
	assert.True(t, p.closed)

	require.NoError(t, c.Close(), "second close is a no-op")
	assert.Equal(t, 1, w.flushes)
	require.ErrorIs(t, c.HealthCheck(context.Background()), ErrNotConnected)
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
}

func TestHandleWriteErrors(t *testing.T) {
	c, _, _ := fakeClient()

	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	ch := make(chan error, 1)
	ch <- errors.New("bucket not found")
	close(ch)
	c.handleWriteErrors(ch)

	err := <-got
	require.ErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, err.Error(), "bucket not found")
}

// =============================================================================
// Recorder Tests
// =============================================================================

func TestRecordDispatch(t *testing.T) {
	c, w, _ := fakeClient()

	var rec session.Recorder = c
	rec.RecordDispatch(session.Record{
		Device:   "node-01",
		Topic:    "control/node-01",
		Outcome:  session.OutcomeDispatched,
		Bytes:    42,
		Duration: 1500 * time.Microsecond,
	})

	require.Len(t, w.points, 1)
	p := w.points[0]
	assert.Equal(t, measurementDispatch, p.Name())
	assert.Equal(t, map[string]string{
		"device":  "node-01",
		"topic":   "control/node-01",
		"outcome": "dispatched",
	}, tags(p))

	f := fields(p)
	assert.EqualValues(t, 42, f["bytes"])
	assert.EqualValues(t, 1500, f["duration_us"])
}

func TestRecordDispatch_AfterClose(t *testing.T) {
	c, w, _ := fakeClient()
	require.NoError(t, c.Close())

	c.RecordDispatch(session.Record{Device: "node-01", Outcome: session.OutcomeDropped})
	assert.Empty(t, w.points)
}

func TestWriteStats(t *testing.T) {
	c, w, _ := fakeClient()
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	c.WriteStats("node-01", session.Stats{
		State:         "connected",
		Dispatched:    7,
		Malformed:     2,
		Subscriptions: 3,
	}, at)

	require.Len(t, w.points, 1)
	p := w.points[0]
	assert.Equal(t, measurementSession, p.Name())
	assert.Equal(t, at, p.Time())
	assert.Equal(t, "connected", tags(p)["state"])

	f := fields(p)
	assert.EqualValues(t, 7, f["dispatched"])
	assert.EqualValues(t, 2, f["malformed"])
	assert.EqualValues(t, 3, f["subscriptions"])
}
