package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthsync/healthsync/internal/domain"
)

func TestClient_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/predict", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 140, req["heartRate"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"anomalyScore": 0.85,
			"prediction":   "Critical",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	score, label, err := client.Score(context.Background(), domain.VitalsSample{HeartRate: 140, SpO2: 85})
	require.NoError(t, err)
	assert.Equal(t, 0.85, score)
	assert.Equal(t, PredictionCritical, label)
}

func TestClient_ScoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL).Score(context.Background(), domain.VitalsSample{HeartRate: 80, SpO2: 98})
	assert.Error(t, err)
}

func TestClient_UnconfiguredUsesHeuristic(t *testing.T) {
	score, label, err := NewClient("").Score(context.Background(), domain.VitalsSample{HeartRate: 145, SpO2: 84})
	require.NoError(t, err)
	assert.Equal(t, PredictionCritical, label)
	assert.Greater(t, score, criticalThreshold)
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, domain.VitalsSample) (float64, string, error) {
	return 0, "", errors.New("connection refused")
}

func TestFallback_AbsorbsFailure(t *testing.T) {
	score, label, err := WithFallback(failingScorer{}).Score(context.Background(), domain.VitalsSample{HeartRate: 72, SpO2: 99})
	require.NoError(t, err)
	assert.Equal(t, PredictionNormal, label)
	assert.LessOrEqual(t, score, moderateThreshold)
}

func TestLabelThresholds(t *testing.T) {
	assert.Equal(t, PredictionNormal, Label(0.4))
	assert.Equal(t, PredictionModerate, Label(0.41))
	assert.Equal(t, PredictionModerate, Label(0.7))
	assert.Equal(t, PredictionCritical, Label(0.71))
}
