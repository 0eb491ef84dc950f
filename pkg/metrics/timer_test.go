package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

// These exercise Timer against the actual histograms tugtainer wires it
// into (pkg/hostclient's call timing, pkg/engine's check_all timing),
// rather than throwaway test histograms.

func TestTimerObserveDurationVecRecordsAgainstHostClientHistogram(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDurationVec(HostClientCallDuration, "pull_image")

	count := testutil.CollectAndCount(HostClientCallDuration, "tugtainer_host_client_call_duration_seconds")
	assert.Greater(t, count, 0)
}

func TestTimerObserveDurationRecordsAgainstCheckAllHistogram(t *testing.T) {
	var before dto.Metric
	assert.NoError(t, CheckAllDuration.Write(&before))

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(CheckAllDuration)

	var after dto.Metric
	assert.NoError(t, CheckAllDuration.Write(&after))
	assert.Greater(t, after.GetHistogram().GetSampleCount(), before.GetHistogram().GetSampleCount())
	assert.GreaterOrEqual(t, timer.Duration(), 5*time.Millisecond)
}

func TestTimerDurationIsMonotonic(t *testing.T) {
	timer := NewTimer()
	first := timer.Duration()
	time.Sleep(time.Millisecond)
	second := timer.Duration()

	assert.Greater(t, second, first)
}
