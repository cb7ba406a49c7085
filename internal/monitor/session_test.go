package monitor

import (
	"context"
	"encoding/csv"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bus-monitor/internal/analytics"
	"bus-monitor/internal/config"
	"bus-monitor/internal/frame"
	"bus-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSource replays datagrams, then blocks until ctx is done. If
// cancelWhenEmpty is set it cancels the run context once drained.
type scriptedSource struct {
	datagrams       [][]byte
	cancelWhenEmpty context.CancelFunc
}

func (s *scriptedSource) Receive(ctx context.Context) ([]byte, error) {
	if len(s.datagrams) > 0 {
		d := s.datagrams[0]
		s.datagrams = s.datagrams[1:]
		return d, nil
	}
	if s.cancelWhenEmpty != nil {
		s.cancelWhenEmpty()
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type memoryStore struct {
	mu     sync.Mutex
	alerts []models.AlertEvent
}

func (m *memoryStore) StoreAlert(_ context.Context, a models.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Live.Duration = 300 * time.Millisecond
	cfg.Live.SampleInterval = 0
	return cfg
}

func datagram(voltage uint16, temp uint8) []byte {
	return frame.Encode(frame.NewFrame(frame.DefaultBusID, voltage, temp, frame.StatusOK))
}

func normalStream(rng *rand.Rand, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = datagram(uint16(3190+rng.Intn(21)), uint8(20+rng.Intn(6)))
	}
	return out
}

func readCSV(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestSession_TrainThenDetectVoltageDrop(t *testing.T) {
	cfg := testConfig(t)
	rng := rand.New(rand.NewSource(11))

	var stream [][]byte
	// training: first reading only seeds the delta
	stream = append(stream, normalStream(rng, cfg.Training.Samples+1)...)
	stream = append(stream, []byte{0xAA, 0x0C}) // malformed, skipped
	// live: seed + 30 normal, then a collapsing pack losing 300mV per frame,
	// so every faulty vector is low, falling fast and noisy
	stream = append(stream, normalStream(rng, 31)...)
	faults := make([]float64, 10)
	for i := range faults {
		v := uint16(2900 - 300*i)
		faults[i] = float64(v)
		stream = append(stream, datagram(v, 22))
	}

	store := &memoryStore{}
	sess := NewSession("test", cfg, &scriptedSource{datagrams: stream}, store, zap.NewNop())

	summary, err := sess.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.TrainingDone)
	assert.False(t, summary.Interrupted)
	assert.Equal(t, cfg.Training.Samples, summary.TrainingSamples)
	assert.Equal(t, int64(40), summary.LiveSamples)
	require.Positive(t, summary.Alerts)
	require.NotNil(t, summary.Baseline)
	assert.GreaterOrEqual(t, summary.Baseline.MinVoltage, 3190.0)

	// from the third faulty frame on the window holds at least three outliers
	var faultAlerts []models.AlertEvent
	for _, a := range store.alerts {
		if a.Vector.Voltage < 3000 {
			faultAlerts = append(faultAlerts, a)
		}
	}
	require.GreaterOrEqual(t, len(faultAlerts), len(faults)-2)

	var thirdSeen bool
	for _, a := range faultAlerts {
		if a.Vector.Voltage == faults[2] {
			thirdSeen = true
		}
		assert.Contains(t, a.Reasons, analytics.ReasonSuddenChange)
		assert.Contains(t, a.Reasons, analytics.ReasonVoltageLow)
		assert.Equal(t, "test", a.SessionID)
	}
	assert.True(t, thirdSeen, "no alert by the third faulty frame")

	last := store.alerts[len(store.alerts)-1]
	assert.Equal(t, faults[len(faults)-1], last.Vector.Voltage)
	assert.Equal(t, -300.0, last.Vector.DeltaVoltage)

	training := readCSV(t, filepath.Join(cfg.Output.Dir, cfg.Output.TrainingCSV))
	assert.Len(t, training, cfg.Training.Samples+1)
	assert.Equal(t, []string{"Voltage", "DeltaVoltage", "NoiseStd", "Temperature"}, training[0])

	live := readCSV(t, filepath.Join(cfg.Output.Dir, cfg.Output.LiveCSV))
	assert.Len(t, live, 41)
	assert.Equal(t, "True", live[40][5])

	_, err = os.Stat(filepath.Join(cfg.Output.Dir, cfg.Output.Summary))
	assert.NoError(t, err)

	stats := sess.GetCurrentStats()
	assert.Equal(t, "stopped", stats.Phase)
	assert.Equal(t, summary.Alerts, stats.TotalAlerts)
	assert.Len(t, sess.GetRecentAlerts(1000), int(summary.Alerts))
}

func TestSession_InterruptedTrainingIsDeadEnd(t *testing.T) {
	cfg := testConfig(t)
	rng := rand.New(rand.NewSource(5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &scriptedSource{datagrams: normalStream(rng, 50), cancelWhenEmpty: cancel}

	sess := NewSession("short", cfg, src, nil, zap.NewNop())
	summary, err := sess.Run(ctx)

	assert.ErrorIs(t, err, ErrTrainingIncomplete)
	assert.False(t, summary.TrainingDone)
	assert.Equal(t, 49, summary.TrainingSamples)
	assert.Nil(t, summary.Baseline)

	_, statErr := os.Stat(filepath.Join(cfg.Output.Dir, cfg.Output.TrainingCSV))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, sess.GetRecentAlerts(10))
}

func TestSession_InterruptedLivePersistsLog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Live.Duration = time.Minute
	rng := rand.New(rand.NewSource(8))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := normalStream(rng, cfg.Training.Samples+1+6)
	src := &scriptedSource{datagrams: stream, cancelWhenEmpty: cancel}

	sess := NewSession("ctrl-c", cfg, src, nil, zap.NewNop())

	start := time.Now()
	summary, err := sess.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.True(t, summary.Interrupted)
	assert.Equal(t, int64(5), summary.LiveSamples)

	live := readCSV(t, filepath.Join(cfg.Output.Dir, cfg.Output.LiveCSV))
	assert.Len(t, live, 6)
}

func TestSession_StatsDuringTraining(t *testing.T) {
	cfg := testConfig(t)
	sess := NewSession("idle", cfg, &scriptedSource{}, nil, zap.NewNop())

	stats := sess.GetCurrentStats()
	assert.Equal(t, "training", stats.Phase)
	assert.Equal(t, "idle", stats.SessionID)
	assert.Zero(t, stats.TotalSamples)
	assert.Equal(t, cfg.Alert.Threshold, stats.AlertThreshold)
}
