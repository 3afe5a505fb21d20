package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_NoDuplicateCollectorPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { Register(reg) })
}

func TestRequestsTotal_IncrementsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	RequestsTotal.WithLabelValues("/verify", "ok").Inc()

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "facilitator_requests_total" {
			found = true
		}
	}
	assert.True(t, found)
}
