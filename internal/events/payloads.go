package events

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/healthsync/healthsync/internal/domain"
)

// Inbound event names accepted by Dispatch.
const (
	InboundVitalsUpdate     = "vitalsUpdate"
	InboundAddPatient       = "addPatient"
	InboundRemovePatient    = "removePatient"
	InboundCreatePost       = "createPost"
	InboundLikePost         = "likePost"
	InboundCommentPost      = "commentPost"
	InboundCommunityMessage = "communityMessage"
	InboundConnectDoctor    = "connectDoctor"
	InboundDisconnectDoctor = "disconnectDoctor"
)

// VitalsPayload is an inbound vitals update. Required numeric fields are
// pointers: a reading of zero is valid input, so presence and value must
// stay distinguishable.
type VitalsPayload struct {
	PatientID       string   `json:"patientId"`
	HeartRate       *int     `json:"heartRate"`
	SpO2            *int     `json:"spO2"`
	RespirationRate *int     `json:"respirationRate"`
	Temperature     *float64 `json:"temperature"`
	Timestamp       string   `json:"timestamp"`
	Prediction      string   `json:"prediction"`
	ActivityLevel   string   `json:"activityLevel"`
	RecoveryRate    string   `json:"recoveryRate"`
	AnomalyScore    float64  `json:"anomalyScore"`
	IsVerySerious   bool     `json:"isVerySerious"`
}

func (p *VitalsPayload) validate() error {
	if p.PatientID == "" {
		return domain.MissingFieldError("patientId")
	}
	if p.HeartRate == nil {
		return domain.MissingFieldError("heartRate")
	}
	if p.SpO2 == nil {
		return domain.MissingFieldError("spO2")
	}
	return nil
}

func (p *VitalsPayload) toSample(clock clockwork.Clock) domain.VitalsSample {
	ts := p.Timestamp
	if ts == "" {
		ts = clock.Now().Format(time.RFC3339)
	}
	return domain.VitalsSample{
		PatientID:       p.PatientID,
		HeartRate:       *p.HeartRate,
		SpO2:            *p.SpO2,
		RespirationRate: p.RespirationRate,
		Temperature:     p.Temperature,
		Timestamp:       ts,
		Prediction:      p.Prediction,
		ActivityLevel:   p.ActivityLevel,
		RecoveryRate:    p.RecoveryRate,
		AnomalyScore:    p.AnomalyScore,
		IsVerySerious:   p.IsVerySerious,
	}
}

// PatientPayload identifies a patient for add/remove.
type PatientPayload struct {
	PatientID string `json:"patientId"`
}

// CreatePostPayload carries a new post.
type CreatePostPayload struct {
	Author      string   `json:"author"`
	Content     string   `json:"content"`
	ImageURL    string   `json:"imageUrl"`
	SharedTo    []string `json:"sharedTo"`
	CommunityID string   `json:"communityId"`
}

// LikePostPayload likes a post on behalf of a user.
type LikePostPayload struct {
	PostID string `json:"postId"`
	User   string `json:"user"`
}

// CommentPostPayload appends a comment to a post.
type CommentPostPayload struct {
	PostID  string `json:"postId"`
	User    string `json:"user"`
	Comment string `json:"comment"`
}

// CommunityMessagePayload appends a chat message to a community channel.
type CommunityMessagePayload struct {
	CommunityID string `json:"communityId"`
	Channel     string `json:"channel"`
	Message     string `json:"message"`
}

// ConnectionPayload connects or disconnects a doctor.
type ConnectionPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}
