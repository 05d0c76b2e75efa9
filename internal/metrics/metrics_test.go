package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	IncSpawn()
	IncSpawn()
	IncRestart()
	IncAbnormalExit()
	ObserveReadiness(1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(spawns))
	assert.Equal(t, 1.0, testutil.ToFloat64(restarts))
	assert.Equal(t, 1.0, testutil.ToFloat64(abnormalExits))
}

func TestSetStatusIsOneHot(t *testing.T) {
	SetStatus("ready")
	assert.Equal(t, 1.0, testutil.ToFloat64(backendStatus.WithLabelValues("ready")))
	assert.Equal(t, 0.0, testutil.ToFloat64(backendStatus.WithLabelValues("starting")))

	SetStatus("offline")
	assert.Equal(t, 0.0, testutil.ToFloat64(backendStatus.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(backendStatus.WithLabelValues("offline")))
}
