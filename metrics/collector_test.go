package metrics_test

import (
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dxvkgo/core/device"
	"github.com/dxvkgo/core/fence"
	"github.com/dxvkgo/core/internal/gpu/gpufake"
	"github.com/dxvkgo/core/metrics"
	"github.com/dxvkgo/core/resource"
)

func fenceCreateInfo() fence.CreateInfo {
	return fence.CreateInfo{InitialValue: 0}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCollectorExportsMemoryAndQueueMetrics(t *testing.T) {
	dev, err := device.New(gpufake.NewDevice(), device.Config{Log: testLogger()})
	require.NoError(t, err)
	t.Cleanup(dev.Close)

	buf, err := dev.CreateBuffer(device.BufferCreateInfo{
		Info:       resource.BufferCreateInfo{Size: 1 << 20, Usage: 1, Exclusive: true},
		Properties: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { dev.DestroyBuffer(buf) })

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(dev))

	gathered, err := reg.Gather()
	require.NoError(t, err)

	var sawAllocated, sawQueueDepth bool
	for _, mf := range gathered {
		switch mf.GetName() {
		case "dxvkcore_memory_allocated_bytes":
			sawAllocated = true
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetGauge().GetValue()
			}
			require.Greater(t, total, float64(0))
		case "dxvkcore_submission_queue_depth":
			sawQueueDepth = true
		}
	}
	require.True(t, sawAllocated, "expected dxvkcore_memory_allocated_bytes to be exported")
	require.True(t, sawQueueDepth, "expected dxvkcore_submission_queue_depth to be exported")
}

func TestCollectorFenceWaitCounters(t *testing.T) {
	dev, err := device.New(gpufake.NewDevice(), device.Config{Log: testLogger()})
	require.NoError(t, err)
	t.Cleanup(dev.Close)

	f, err := dev.CreateFence(fenceCreateInfo())
	require.NoError(t, err)
	t.Cleanup(func() { dev.CloseFence(f) })

	_, err = dev.WaitForFence(f, 0, 0)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(dev))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(""+
		"# HELP dxvkcore_fence_waits_total Total Wait calls served across every fence this device has created.\n"+
		"# TYPE dxvkcore_fence_waits_total counter\n"+
		"dxvkcore_fence_waits_total 1\n",
	), "dxvkcore_fence_waits_total"))
}
