package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/healthsync/healthsync/internal/domain"
)

// Notifier delivers a critical alert for a patient. Implementations are
// fire-and-forget: failures are logged, never returned.
type Notifier interface {
	CriticalAlert(ctx context.Context, patientID string, vitals domain.VitalsSample)
}

type notifyRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// HTTPNotifier posts alerts to an external notification service.
type HTTPNotifier struct {
	http      *resty.Client
	baseURL   string
	recipient string
	debouncer Debouncer
}

func NewHTTPNotifier(baseURL, recipient string, debouncer Debouncer) *HTTPNotifier {
	return &HTTPNotifier{
		http:      resty.New().SetTimeout(10 * time.Second),
		baseURL:   baseURL,
		recipient: recipient,
		debouncer: debouncer,
	}
}

func (n *HTTPNotifier) CriticalAlert(ctx context.Context, patientID string, vitals domain.VitalsSample) {
	if !n.debouncer.Allow(ctx, patientID) {
		slog.Debug("critical alert suppressed by cooldown", "patient_id", patientID)
		return
	}

	if n.baseURL == "" {
		slog.Warn("critical alert with no notifier configured",
			"patient_id", patientID, "heart_rate", vitals.HeartRate, "spo2", vitals.SpO2)
		return
	}

	body := fmt.Sprintf(
		"Patient %s is in critical condition. Heart Rate: %d bpm, SpO2: %d%%. Please review immediately.",
		patientID, vitals.HeartRate, vitals.SpO2,
	)
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(notifyRequest{
			Recipient: n.recipient,
			Subject:   "Critical Health Alert",
			Body:      body,
		}).
		Post(n.baseURL + "/notify")
	if err != nil {
		slog.Error("critical alert delivery failed", "patient_id", patientID, "error", err)
		return
	}
	if resp.IsError() {
		slog.Error("critical alert rejected", "patient_id", patientID, "status", resp.StatusCode())
		return
	}
	slog.Info("critical alert sent", "patient_id", patientID, "recipient", n.recipient)
}
