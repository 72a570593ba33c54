package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Gauges(t *testing.T) {
	rec := NewRecorder()
	rec.ObservePhase(PhaseComputation, 1500*time.Millisecond)
	rec.ObservePhase(PhaseIO, 250*time.Millisecond)
	rec.SetRun(4, 75)
	rec.AddOutputs(2)

	assert.InDelta(t, 1.5, testutil.ToFloat64(rec.phaseDuration.WithLabelValues(PhaseComputation)), 1e-9)
	assert.InDelta(t, 0.25, testutil.ToFloat64(rec.phaseDuration.WithLabelValues(PhaseIO)), 1e-9)
	assert.Equal(t, 4.0, testutil.ToFloat64(rec.members))
	assert.Equal(t, 75.0, testutil.ToFloat64(rec.imageBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.outputsSaved))
}

func TestRecorder_WriteFile(t *testing.T) {
	rec := NewRecorder()
	rec.ObservePhase(PhaseTotal, 2*time.Second)
	rec.SetRun(2, 12)

	path := filepath.Join(t.TempDir(), "halo.prom")
	require.NoError(t, rec.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `halo_phase_duration_seconds{phase="total"} 2`)
	assert.Contains(t, text, "halo_group_members 2")
	assert.True(t, strings.HasPrefix(text, "# HELP"))
}

func TestRecorder_WriteFileBadPath(t *testing.T) {
	rec := NewRecorder()
	err := rec.WriteFile(filepath.Join(t.TempDir(), "missing", "halo.prom"))
	assert.Error(t, err)
}
