package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthsync/healthsync/internal/domain"
	"github.com/healthsync/healthsync/internal/scoring"
	"github.com/healthsync/healthsync/internal/store"
)

type captureIngester struct {
	mu      sync.Mutex
	samples []domain.VitalsSample
}

func (c *captureIngester) IngestVitals(_ context.Context, sample domain.VitalsSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, sample)
	return nil
}

func (c *captureIngester) all() []domain.VitalsSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.VitalsSample(nil), c.samples...)
}

type captureNotifier struct {
	mu       sync.Mutex
	patients []string
}

func (c *captureNotifier) CriticalAlert(_ context.Context, patientID string, _ domain.VitalsSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patients = append(c.patients, patientID)
}

type captureBroadcaster struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *captureBroadcaster) Broadcast(event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureBroadcaster) named(name string) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, ev := range c.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func newTestSimulator(t *testing.T) (*Simulator, *captureIngester, *captureNotifier, *captureBroadcaster, *clockwork.FakeClock) {
	t.Helper()
	mem := store.NewMemory()
	clock := clockwork.NewFakeClock()
	require.NoError(t, store.Seed(context.Background(), mem, clock.Now()))

	ingester := &captureIngester{}
	notifier := &captureNotifier{}
	broadcaster := &captureBroadcaster{}
	sim := New(ingester, mem.Patients(), scoring.WithFallback(scoring.NewClient("")), notifier, broadcaster, clock, 3*time.Second, []string{"fallback1"})
	return sim, ingester, notifier, broadcaster, clock
}

func TestSimulator_TickSynthesizesPerPatient(t *testing.T) {
	sim, ingester, _, _, _ := newTestSimulator(t)

	sim.tick(context.Background())

	samples := ingester.all()
	require.Len(t, samples, 3)
	seen := map[string]bool{}
	for _, s := range samples {
		seen[s.PatientID] = true
		assert.GreaterOrEqual(t, s.HeartRate, 60)
		assert.LessOrEqual(t, s.HeartRate, 150)
		assert.GreaterOrEqual(t, s.SpO2, 80)
		assert.LessOrEqual(t, s.SpO2, 100)
		require.NotNil(t, s.RespirationRate)
		assert.LessOrEqual(t, *s.RespirationRate, 40)
		assert.NotEmpty(t, s.Prediction)
		assert.NotEmpty(t, s.Timestamp)
		assert.Regexp(t, `^\d+%$`, s.RecoveryRate)
	}
	assert.Len(t, seen, 3)
}

func TestSimulator_FallbackPatients(t *testing.T) {
	mem := store.NewMemory()
	clock := clockwork.NewFakeClock()
	ingester := &captureIngester{}
	sim := New(ingester, mem.Patients(), scoring.WithFallback(scoring.NewClient("")), &captureNotifier{}, &captureBroadcaster{}, clock, 3*time.Second, []string{"fallback1", "fallback2"})

	sim.tick(context.Background())

	samples := ingester.all()
	require.Len(t, samples, 2)
	assert.Equal(t, "fallback1", samples[0].PatientID)
}

type criticalScorer struct{}

func (criticalScorer) Score(context.Context, domain.VitalsSample) (float64, string, error) {
	return 0.95, scoring.PredictionCritical, nil
}

func TestSimulator_SeriousAlarmPath(t *testing.T) {
	mem := store.NewMemory()
	clock := clockwork.NewFakeClock()
	require.NoError(t, store.Seed(context.Background(), mem, clock.Now()))

	ingester := &captureIngester{}
	notifier := &captureNotifier{}
	broadcaster := &captureBroadcaster{}
	sim := New(ingester, mem.Patients(), criticalScorer{}, notifier, broadcaster, clock, 3*time.Second, nil)

	// Every sample is scored critical; samples with hr > 130 or spO2 < 88
	// must raise an alarm. Tick until at least one lands.
	var alarms []domain.Event
	for i := 0; i < 50 && len(alarms) == 0; i++ {
		sim.tick(context.Background())
		alarms = broadcaster.named(domain.EventSeriousAlarm)
	}
	require.NotEmpty(t, alarms, "critical scores over hard vitals must raise an alarm")

	data := alarms[0].Data.(map[string]any)
	assert.Contains(t, data, "patientId")
	vitals := data["vitals"].(domain.VitalsSample)
	assert.True(t, vitals.IsVerySerious)
	assert.Equal(t, scoring.PredictionCritical, vitals.Prediction)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.NotEmpty(t, notifier.patients)
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	sim, ingester, _, _, clock := newTestSimulator(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(3 * time.Second)

	assert.Eventually(t, func() bool {
		return len(ingester.all()) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop on cancel")
	}
}
