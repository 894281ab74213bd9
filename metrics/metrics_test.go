package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/core"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.SessionStarted(core.ModeCode)
	r.SessionStarted(core.ModeNormal)
	r.Turn(core.ModeCode)
	r.Generation(core.ModeCode, 20*time.Millisecond, nil)
	r.Generation(core.ModeCode, time.Second, errors.New("boom"))
	r.PersistenceFailure("append")
	r.SessionEnded(core.EndDismissed)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionsStarted.WithLabelValues("code")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.generationFailures.WithLabelValues("code")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.persistenceFailures.WithLabelValues("append")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionsEnded.WithLabelValues("dismissed")))

	expected := `
# HELP sessionmesh_turns_total Delivered conversation turns, by mode.
# TYPE sessionmesh_turns_total counter
sessionmesh_turns_total{mode="code"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sessionmesh_turns_total"))
}

func TestRecorder_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestRecorder_NilIsNoOp(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SessionStarted(core.ModeNormal)
		r.SessionEnded(core.EndTimedOut)
		r.Turn(core.ModeNormal)
		r.Generation(core.ModeNormal, time.Second, nil)
		r.PersistenceFailure("summary")
	})
}
