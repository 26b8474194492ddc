// Package simulator synthesizes live vitals for known patients on a fixed
// interval and pushes them through the same ingest path real readings use.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jonboulle/clockwork"

	"github.com/healthsync/healthsync/internal/alerts"
	"github.com/healthsync/healthsync/internal/domain"
	"github.com/healthsync/healthsync/internal/metrics"
	"github.com/healthsync/healthsync/internal/scoring"
)

// Ingester is the slice of the event service the simulator drives.
type Ingester interface {
	IngestVitals(ctx context.Context, sample domain.VitalsSample) error
}

// Simulator generates one vitals sample per known patient per tick.
type Simulator struct {
	ingester    Ingester
	patients    domain.PatientRepository
	scorer      scoring.Scorer
	notifier    alerts.Notifier
	broadcaster domain.Broadcaster
	clock       clockwork.Clock
	interval    time.Duration
	fallbackIDs []string
	faker       *gofakeit.Faker
}

func New(
	ingester Ingester,
	patients domain.PatientRepository,
	scorer scoring.Scorer,
	notifier alerts.Notifier,
	broadcaster domain.Broadcaster,
	clock clockwork.Clock,
	interval time.Duration,
	fallbackIDs []string,
) *Simulator {
	return &Simulator{
		ingester:    ingester,
		patients:    patients,
		scorer:      scorer,
		notifier:    notifier,
		broadcaster: broadcaster,
		clock:       clock,
		interval:    interval,
		fallbackIDs: fallbackIDs,
		faker:       gofakeit.New(0),
	}
}

// Run drives the simulation loop until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	slog.Info("simulator started", "interval", s.interval)
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulator stopped")
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Simulator) tick(ctx context.Context) {
	defer metrics.SimulatorTicksTotal.Inc()

	for _, id := range s.patientIDs(ctx) {
		sample := s.synthesize(id)
		s.rescore(ctx, &sample)

		if err := s.ingester.IngestVitals(ctx, sample); err != nil {
			metrics.SimulatorSamplesTotal.WithLabelValues("error").Inc()
			slog.Warn("simulated sample not ingested", "patient_id", id, "error", err)
			continue
		}
		metrics.SimulatorSamplesTotal.WithLabelValues("ok").Inc()

		if sample.IsVerySerious {
			metrics.SeriousAlarmsTotal.Inc()
			s.broadcaster.Broadcast(domain.NewEvent(domain.EventSeriousAlarm, map[string]any{
				"patientId": id,
				"vitals":    sample,
			}))
			s.notifier.CriticalAlert(ctx, id, sample)
		}
	}
}

// patientIDs lists known patients, falling back to the configured ids when
// the store is empty or unreachable so the stream never goes dark.
func (s *Simulator) patientIDs(ctx context.Context) []string {
	list, err := s.patients.List(ctx)
	if err != nil {
		slog.Warn("patient listing failed, using configured ids", "error", err)
		return s.fallbackIDs
	}
	if len(list) == 0 {
		return s.fallbackIDs
	}
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.PatientID)
	}
	return ids
}

// rescore asks the anomaly service for a fresh score, then recomputes the
// derived fields so label, alarm flag and recovery stay consistent with it.
func (s *Simulator) rescore(ctx context.Context, sample *domain.VitalsSample) {
	score, label, err := s.scorer.Score(ctx, *sample)
	if err != nil {
		slog.Debug("rescoring failed, keeping synthesized score", "patient_id", sample.PatientID, "error", err)
		return
	}
	sample.AnomalyScore = score
	sample.Prediction = label
	sample.IsVerySerious = score > 0.7 && (sample.HeartRate > 130 || sample.SpO2 < 88)
	sample.RecoveryRate = recoveryRate(score, sample.HeartRate, sample.SpO2)
}

// Activity levels reported by the synthesized wearable.
const (
	activitySedentary = "sedentary"
	activityActive    = "active"
	activityExercise  = "exercise"
)

// synthesize produces one bounded-random sample. Distribution: 80% normal,
// 15% moderate, 5% critical, with activity shifting the baselines upward.
func (s *Simulator) synthesize(patientID string) domain.VitalsSample {
	var heartRate, spO2, respiration int
	var score float64

	switch p := s.faker.Float64Range(0, 1); {
	case p < 0.80:
		heartRate = s.faker.Number(60, 90)
		spO2 = s.faker.Number(95, 100)
		respiration = s.faker.Number(12, 20)
		score = s.faker.Float64Range(0, 0.3)
	case p < 0.95:
		heartRate = s.faker.Number(90, 130)
		spO2 = s.faker.Number(90, 100)
		respiration = s.faker.Number(20, 30)
		score = s.faker.Float64Range(0.4, 1.0)
	default:
		heartRate = s.faker.Number(110, 150)
		spO2 = s.faker.Number(80, 90)
		respiration = s.faker.Number(25, 40)
		score = s.faker.Float64Range(0.6, 1.0)
	}

	activity := s.faker.RandomString([]string{activitySedentary, activityActive, activityExercise})
	switch activity {
	case activityActive:
		heartRate += 10
		respiration += 5
	case activityExercise:
		heartRate += 30
		respiration += 10
		spO2 = max(spO2-5, 80)
	}

	heartRate = min(heartRate, 150)
	spO2 = max(spO2, 80)
	respiration = min(respiration, 40)
	temperature := s.faker.Float64Range(36, 38)

	return domain.VitalsSample{
		PatientID:       patientID,
		HeartRate:       heartRate,
		SpO2:            spO2,
		RespirationRate: &respiration,
		Temperature:     &temperature,
		Timestamp:       s.clock.Now().Format(time.RFC3339),
		Prediction:      scoring.Label(score),
		ActivityLevel:   activity,
		RecoveryRate:    recoveryRate(score, heartRate, spO2),
		AnomalyScore:    score,
		IsVerySerious:   score > 0.7 && (heartRate > 130 || spO2 < 88),
	}
}

// recoveryRate estimates recovery capacity from how far the vitals sit from
// a healthy resting baseline, clamped to 0-100%.
func recoveryRate(score float64, heartRate, spO2 int) string {
	rate := 80 - score*100 + float64(spO2-80) + float64(120-heartRate)
	if rate < 0 {
		rate = 0
	}
	if rate > 100 {
		rate = 100
	}
	return fmt.Sprintf("%d%%", int(rate))
}
