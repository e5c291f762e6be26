package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.PollingCycle()
	r.ImageChecked()
	r.ImageChecked()
	r.NewTagFound()
	r.PollingError()
	r.Reconcile("Deployment", ResultSuccess, 20*time.Millisecond)
	r.Reconcile("Deployment", ResultError, time.Second)
	r.Update("StatefulSet", OutcomeProposed)
	r.UpdateRequestCreated("StatefulSet")
	r.StreamRestart("HelmRelease")
	r.Notification("webhook", "success")
	r.WebhookEvent("distribution", "accepted")

	assert.Equal(t, float64(1), testutil.ToFloat64(r.pollingCycles))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.pollingImagesChecked))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.pollingNewTags))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.pollingErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.reconcileTotal.WithLabelValues("Deployment", ResultError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.updatesTotal.WithLabelValues("StatefulSet", OutcomeProposed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.updateRequestsCreated.WithLabelValues("StatefulSet")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.streamRestarts.WithLabelValues("HelmRelease")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.notifications.WithLabelValues("webhook", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.webhookEvents.WithLabelValues("distribution", "accepted")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.reconcileDuration))
}

func TestRecorder_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder()
	require.NoError(t, r.Register(reg))

	// A second recorder collides with the first.
	assert.Error(t, NewRecorder().Register(reg))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.PollingCycle()
		r.Reconcile("Deployment", ResultSuccess, time.Millisecond)
		r.Notification("log", "success")
	})
}
