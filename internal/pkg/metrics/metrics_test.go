package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.LoginFailed()
	m.LoginFailed()
	m.AccountLocked()
	m.StatusChanged("CLOSED")
	m.Notification("sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loginFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accountLockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusTransitions.WithLabelValues("CLOSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("sent")))
}

func TestSetPipelineResets(t *testing.T) {
	m := New()

	m.SetPipeline(map[string]int64{"DRAFT": 3, "SUBMITTED": 1})
	m.SetPipeline(map[string]int64{"SUBMITTED": 2})

	assert.Equal(t, 1, testutil.CollectAndCount(m.pipelineLoans))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pipelineLoans.WithLabelValues("SUBMITTED")))
}

func TestNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RequestStarted()
		m.RequestFinished("GET", "/", "200", 0.1)
		m.LoginFailed()
		m.SetPipeline(map[string]int64{"DRAFT": 1})
	})
}
