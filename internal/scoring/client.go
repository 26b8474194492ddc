// Package scoring talks to the anomaly prediction service and falls back
// to a local heuristic when the service is unreachable or unconfigured.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/healthsync/healthsync/internal/domain"
)

// Score label thresholds.
const (
	criticalThreshold = 0.7
	moderateThreshold = 0.4
)

// Prediction labels.
const (
	PredictionNormal   = "Normal"
	PredictionModerate = "Moderate"
	PredictionCritical = "Critical"
)

type predictRequest struct {
	HeartRate       int      `json:"heartRate"`
	SpO2            int      `json:"spO2"`
	RespirationRate *int     `json:"respirationRate,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type predictResponse struct {
	AnomalyScore float64 `json:"anomalyScore"`
	Prediction   string  `json:"prediction"`
}

// Scorer produces an anomaly score and prediction label for a sample.
type Scorer interface {
	Score(ctx context.Context, sample domain.VitalsSample) (float64, string, error)
}

// Client calls POST {baseURL}/predict. A zero base URL makes every call
// fall through to the heuristic.
type Client struct {
	http    *resty.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{
		http:    resty.New().SetTimeout(5 * time.Second),
		baseURL: baseURL,
	}
}

func (c *Client) Score(ctx context.Context, sample domain.VitalsSample) (float64, string, error) {
	if c.baseURL == "" {
		score := HeuristicScore(sample)
		return score, Label(score), nil
	}

	var out predictResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(predictRequest{
			HeartRate:       sample.HeartRate,
			SpO2:            sample.SpO2,
			RespirationRate: sample.RespirationRate,
			Temperature:     sample.Temperature,
		}).
		SetResult(&out).
		Post(c.baseURL + "/predict")
	if err != nil {
		return 0, "", fmt.Errorf("predict request: %w", err)
	}
	if resp.IsError() {
		return 0, "", fmt.Errorf("predict request: status %d", resp.StatusCode())
	}
	if out.Prediction == "" {
		out.Prediction = Label(out.AnomalyScore)
	}
	return out.AnomalyScore, out.Prediction, nil
}

// Fallback wraps a Scorer and absorbs its failures with the local
// heuristic so callers always get a usable score.
type Fallback struct {
	inner Scorer
}

func WithFallback(inner Scorer) *Fallback {
	return &Fallback{inner: inner}
}

func (f *Fallback) Score(ctx context.Context, sample domain.VitalsSample) (float64, string, error) {
	score, label, err := f.inner.Score(ctx, sample)
	if err != nil {
		slog.Debug("anomaly scorer unavailable, using heuristic", "error", err)
		score = HeuristicScore(sample)
		return score, Label(score), nil
	}
	return score, label, nil
}

// Label maps a score to its prediction label.
func Label(score float64) string {
	switch {
	case score > criticalThreshold:
		return PredictionCritical
	case score > moderateThreshold:
		return PredictionModerate
	default:
		return PredictionNormal
	}
}

// HeuristicScore derives a rough anomaly score from how far the vitals sit
// outside their normal resting ranges.
func HeuristicScore(sample domain.VitalsSample) float64 {
	score := 0.0
	switch {
	case sample.HeartRate > 130 || sample.HeartRate < 40:
		score += 0.5
	case sample.HeartRate > 100 || sample.HeartRate < 50:
		score += 0.25
	}
	switch {
	case sample.SpO2 < 88:
		score += 0.5
	case sample.SpO2 < 94:
		score += 0.25
	}
	if sample.RespirationRate != nil {
		if rr := *sample.RespirationRate; rr > 30 || rr < 8 {
			score += 0.2
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}
