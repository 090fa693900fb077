package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(NotificationsTotal.WithLabelValues("ACCEPTED"))
	ObserveRun("ACCEPTED", 12*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationsTotal.WithLabelValues("ACCEPTED")))
}

func TestObserveStage(t *testing.T) {
	before := testutil.ToFloat64(StageResultsTotal.WithLabelValues("fetch", "error"))
	ObserveStage("fetch", "error", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(StageResultsTotal.WithLabelValues("fetch", "error")))
}

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}
