// Package events implements the domain event handlers behind the websocket
// and simulator inputs. Every handler validates its payload, mutates the
// store under a per-entity lock, and broadcasts the resulting event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/healthsync/healthsync/internal/domain"
	"github.com/healthsync/healthsync/internal/metrics"
)

// Service coordinates state mutations and fanout for all domain events.
type Service struct {
	store       domain.Store
	broadcaster domain.Broadcaster
	clock       clockwork.Clock
	locks       *keyedMutex
}

func NewService(store domain.Store, broadcaster domain.Broadcaster, clock clockwork.Clock) *Service {
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		clock:       clock,
		locks:       newKeyedMutex(),
	}
}

// IngestVitals appends a sample to the patient's history and broadcasts it.
// The broadcast happens even when the patient is unknown to the store, so
// dashboards tracking ad-hoc patients still receive live data.
func (s *Service) IngestVitals(ctx context.Context, sample domain.VitalsSample) error {
	release := s.locks.lock("patient:" + sample.PatientID)
	defer release()

	matched, err := s.store.Patients().AppendVitals(ctx, sample.PatientID, sample)
	if err != nil {
		return err
	}
	if !matched {
		slog.Debug("vitals for unknown patient, history not persisted", "patient_id", sample.PatientID)
	}
	s.broadcaster.Broadcast(domain.NewEvent(domain.EventVitalsUpdate, sample))
	return nil
}

// VitalsUpdate handles an inbound vitals reading from a client.
func (s *Service) VitalsUpdate(ctx context.Context, p VitalsPayload) error {
	if err := p.validate(); err != nil {
		return err
	}
	return s.IngestVitals(ctx, p.toSample(s.clock))
}

// AddPatient registers a patient with a baseline sample and announces it.
func (s *Service) AddPatient(ctx context.Context, p PatientPayload) error {
	if p.PatientID == "" {
		return domain.MissingFieldError("patientId")
	}

	release := s.locks.lock("patient:" + p.PatientID)
	defer release()

	baseline := domain.VitalsSample{
		PatientID:     p.PatientID,
		HeartRate:     80,
		SpO2:          98,
		Timestamp:     s.clock.Now().Format(time.RFC3339),
		Prediction:    "Normal",
		ActivityLevel: "Low",
		RecoveryRate:  "85%",
		AnomalyScore:  0.2,
	}
	if err := s.store.Patients().Replace(ctx, p.PatientID, []domain.VitalsSample{baseline}); err != nil {
		return err
	}
	s.broadcaster.Broadcast(domain.NewEvent(domain.EventVitalsUpdate, baseline))
	return nil
}

// RemovePatient deletes a patient and announces the removal. Removing an
// unknown patient still emits the event so clients can drop stale cards.
func (s *Service) RemovePatient(ctx context.Context, p PatientPayload) error {
	if p.PatientID == "" {
		return domain.MissingFieldError("patientId")
	}

	release := s.locks.lock("patient:" + p.PatientID)
	defer release()

	if _, err := s.store.Patients().Delete(ctx, p.PatientID); err != nil {
		return err
	}
	s.broadcaster.Broadcast(domain.NewEvent(domain.EventPatientRemoved, map[string]string{
		"patientId": p.PatientID,
	}))
	return nil
}

// CreatePost stores a new post, projects it into the communities it is
// shared to, and broadcasts the full post.
func (s *Service) CreatePost(ctx context.Context, p CreatePostPayload) error {
	switch {
	case p.Author == "":
		return domain.MissingFieldError("author")
	case p.Content == "":
		return domain.MissingFieldError("content")
	case p.ImageURL == "":
		return domain.MissingFieldError("imageUrl")
	}

	post := domain.Post{
		ID:        "post-" + uuid.NewString(),
		Author:    p.Author,
		Content:   p.Content,
		ImageURL:  p.ImageURL,
		Likes:     map[string]bool{p.Author: false},
		Comments:  []string{},
		Timestamp: s.clock.Now().Format(time.RFC3339),
		SharedTo:  p.SharedTo,
	}
	if err := s.store.Posts().Insert(ctx, post); err != nil {
		return err
	}

	// Project the post into every community it is shared to. Unknown
	// communities are skipped, not fatal: the canonical post already exists.
	seen := make(map[string]struct{})
	targets := p.SharedTo
	if p.CommunityID != "" {
		targets = append(append([]string(nil), targets...), p.CommunityID)
	}
	for _, communityID := range targets {
		if _, ok := seen[communityID]; ok {
			continue
		}
		seen[communityID] = struct{}{}

		key := domain.ParseCommunityID(communityID)
		if err := s.store.Communities().AppendPost(ctx, key, post); err != nil {
			if !domain.IsNotFound(err) {
				return err
			}
			slog.Warn("post targets unknown community", "community_id", communityID)
		}
	}

	s.broadcaster.Broadcast(domain.NewEvent(domain.EventNewPost, post))
	return nil
}

// LikePost records a like. Likes are idempotent per user: a repeat like is
// a silent no-op with no broadcast.
func (s *Service) LikePost(ctx context.Context, p LikePostPayload) error {
	switch {
	case p.PostID == "":
		return domain.MissingFieldError("postId")
	case p.User == "":
		return domain.MissingFieldError("user")
	}

	release := s.locks.lock("post:" + p.PostID)
	defer release()

	changed, err := s.store.Posts().SetLike(ctx, p.PostID, p.User)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.broadcastPostUpdated(ctx, p.PostID)
}

// CommentPost appends a "user: text" comment and broadcasts the new tally.
// Commenting on an unknown post is a silent no-op.
func (s *Service) CommentPost(ctx context.Context, p CommentPostPayload) error {
	switch {
	case p.PostID == "":
		return domain.MissingFieldError("postId")
	case p.User == "":
		return domain.MissingFieldError("user")
	case p.Comment == "":
		return domain.MissingFieldError("comment")
	}

	release := s.locks.lock("post:" + p.PostID)
	defer release()

	line := fmt.Sprintf("%s: %s", p.User, p.Comment)
	matched, err := s.store.Posts().AppendComment(ctx, p.PostID, line)
	if err != nil {
		return err
	}
	if !matched {
		return nil
	}
	return s.broadcastPostUpdated(ctx, p.PostID)
}

func (s *Service) broadcastPostUpdated(ctx context.Context, postID string) error {
	post, err := s.store.Posts().Get(ctx, postID)
	if err != nil {
		return err
	}
	s.broadcaster.Broadcast(domain.NewEvent(domain.EventPostUpdated, map[string]any{
		"postId":   post.ID,
		"likes":    post.LikeCount(),
		"comments": post.Comments,
	}))
	return nil
}

// CommunityMessage appends a chat message to a community channel and fans
// it out. Unknown communities are a silent no-op with no broadcast.
func (s *Service) CommunityMessage(ctx context.Context, p CommunityMessagePayload) error {
	switch {
	case p.CommunityID == "":
		return domain.MissingFieldError("communityId")
	case p.Message == "":
		return domain.MissingFieldError("message")
	}
	if !domain.ValidChannel(p.Channel) {
		return domain.ErrInvalidChannel
	}
	key := domain.ParseCommunityID(p.CommunityID)

	release := s.locks.lock("community:" + p.CommunityID)
	defer release()

	if err := s.store.Communities().AppendMessage(ctx, key, p.Channel, p.Message); err != nil {
		if domain.IsNotFound(err) {
			slog.Warn("message targets unknown community", "community_id", p.CommunityID)
			return nil
		}
		return err
	}
	s.broadcaster.Broadcast(domain.NewEvent(domain.EventCommunityMessage, map[string]string{
		"communityId": p.CommunityID,
		"channel":     p.Channel,
		"message":     p.Message,
	}))
	return nil
}

// ConnectDoctor marks the target doctor connected, announces the new status
// to everyone, and steers the initiating user into the doctor's regional
// community over a targeted event.
func (s *Service) ConnectDoctor(ctx context.Context, p ConnectionPayload) error {
	return s.setDoctorStatus(ctx, p, domain.DoctorConnected)
}

// DisconnectDoctor marks the target doctor disconnected and announces it.
func (s *Service) DisconnectDoctor(ctx context.Context, p ConnectionPayload) error {
	return s.setDoctorStatus(ctx, p, domain.DoctorDisconnected)
}

func (s *Service) setDoctorStatus(ctx context.Context, p ConnectionPayload, status string) error {
	switch {
	case p.From == "":
		return domain.MissingFieldError("from")
	case p.To == "":
		return domain.MissingFieldError("to")
	}

	release := s.locks.lock("doctor:" + p.To)
	defer release()

	region, matched, err := s.store.Doctors().SetStatus(ctx, p.To, status)
	if err != nil {
		return err
	}
	if !matched {
		return domain.NotFoundError("doctor", p.To)
	}

	s.broadcaster.Broadcast(domain.NewEvent(domain.EventConnectionUpdate, map[string]string{
		"from":   p.From,
		"to":     p.To,
		"status": status,
	}))

	if status == domain.DoctorConnected {
		s.broadcaster.Broadcast(domain.TargetedEvent(domain.EventSwitchToPrivateCommunity, p.From, map[string]string{
			"communityId": s.privateCommunityID(ctx, region),
		}))
	}
	return nil
}

// privateCommunityID picks the doctor's regional community, falling back to
// Global when no local community exists for the region.
func (s *Service) privateCommunityID(ctx context.Context, region string) string {
	global := domain.CommunityKey{Type: domain.CommunityTypeGlobal}
	if region == "" {
		return global.ID()
	}
	key := domain.CommunityKey{Type: domain.CommunityTypeLocal, Location: region}
	if _, err := s.store.Communities().Get(ctx, key); err != nil {
		return global.ID()
	}
	return key.ID()
}

// Dispatch routes an inbound wire event to its handler. Handler failures
// never propagate: they are logged, counted, and echoed back as an error
// event so a bad payload cannot take a connection loop down.
func (s *Service) Dispatch(ctx context.Context, name string, data json.RawMessage) {
	err := s.dispatch(ctx, name, data)
	if err == nil {
		metrics.EventsTotal.WithLabelValues(name, "ok").Inc()
		return
	}
	metrics.EventsTotal.WithLabelValues(name, "error").Inc()
	slog.Warn("event handling failed", "event", name, "error", err)
	s.broadcaster.Broadcast(domain.ErrorEvent(name + ": " + err.Error()))
}

func (s *Service) dispatch(ctx context.Context, name string, data json.RawMessage) error {
	switch name {
	case InboundVitalsUpdate:
		var p VitalsPayload
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		return s.VitalsUpdate(ctx, p)
	case InboundAddPatient:
		var p PatientPayload
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		return s.AddPatient(ctx, p)
	case InboundRemovePatient:
		var p PatientPayload
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		return s.RemovePatient(ctx, p)
	case InboundCreatePost:
		var p CreatePostPayload
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		return s.CreatePost(ctx, p)
	case InboundLikePost:
		var p LikePostPayload
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		return s.LikePost(ctx, p)
	case InboundCommentPost:
		var p CommentPostPayload
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		return s.CommentPost(ctx, p)
	case InboundCommunityMessage:
		var p CommunityMessagePayload
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		return s.CommunityMessage(ctx, p)
	case InboundConnectDoctor:
		var p ConnectionPayload
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		return s.ConnectDoctor(ctx, p)
	case InboundDisconnectDoctor:
		var p ConnectionPayload
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		return s.DisconnectDoctor(ctx, p)
	default:
		return domain.ValidationError("unknown event: %s", name)
	}
}

func unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return domain.ValidationError("missing event payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.ValidationError("malformed event payload: %v", err)
	}
	return nil
}
