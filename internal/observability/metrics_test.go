package observability_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/amika-agent/internal/observability"
)

func TestMetricsRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := observability.MustNewMetrics(reg)
	second := observability.MustNewMetrics(reg)

	first.IncDispatch(nil)
	second.IncDispatch(errors.New("smtp down"))
	second.AddArmedJobs(3)
	first.AddArmedJobs(-1)
	first.ObserveAgentRun("respondent", "completed", time.Second)

	count, err := testutil.GatherAndCount(reg, "amika_reminders_dispatches_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "amika_reminders_armed_jobs")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.IncTurn("UPDATE")
		m.IncMutation("ADD", nil)
		m.AddArmedJobs(2)
		m.IncRefresh(nil)
	})
}
