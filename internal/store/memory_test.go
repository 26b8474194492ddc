package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthsync/healthsync/internal/domain"
)

func sample(patientID string, hr int) domain.VitalsSample {
	return domain.VitalsSample{
		PatientID:  patientID,
		HeartRate:  hr,
		SpO2:       97,
		Timestamp:  "2026-01-02T15:04:05Z",
		Prediction: "Normal",
	}
}

func TestMemory_PatientsAppendOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Patients().Replace(ctx, "p1", []domain.VitalsSample{sample("p1", 70)}))

	for i := 0; i < 5; i++ {
		matched, err := m.Patients().AppendVitals(ctx, "p1", sample("p1", 80+i))
		require.NoError(t, err)
		assert.True(t, matched)
	}

	p, err := m.Patients().Get(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p.Vitals, 6)
	// Earlier samples keep their values.
	assert.Equal(t, 70, p.Vitals[0].HeartRate)
	assert.Equal(t, 84, p.Vitals[5].HeartRate)
}

func TestMemory_AppendVitalsUnknownPatient(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	matched, err := m.Patients().AppendVitals(ctx, "ghost", sample("ghost", 70))
	require.NoError(t, err)
	assert.False(t, matched)

	_, err = m.Patients().Get(ctx, "ghost")
	assert.True(t, domain.IsNotFound(err))
}

func TestMemory_DeletePatientIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Patients().Replace(ctx, "p1", nil))

	deleted, err := m.Patients().Delete(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = m.Patients().Delete(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemory_SetLikeCAS(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Posts().Insert(ctx, domain.Post{
		ID:    "post-a",
		Likes: map[string]bool{"author": false},
	}))

	ok, err := m.Posts().SetLike(ctx, "post-a", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second like from the same user does not land.
	ok, err = m.Posts().SetLike(ctx, "post-a", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	// Missing post is a no-op, not an error.
	ok, err = m.Posts().SetLike(ctx, "nope", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := m.Posts().Get(ctx, "post-a")
	require.NoError(t, err)
	assert.Equal(t, 1, p.LikeCount())
	assert.False(t, p.Likes["author"])
}

func TestMemory_GetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Posts().Insert(ctx, domain.Post{ID: "p", Likes: map[string]bool{}}))

	p1, err := m.Posts().Get(ctx, "p")
	require.NoError(t, err)
	p1.Likes["mallory"] = true
	p1.Comments = append(p1.Comments, "injected")

	p2, err := m.Posts().Get(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, p2.Likes)
	assert.Empty(t, p2.Comments)
}

func TestMemory_CommunityMessages(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	india := "India"
	key := domain.CommunityKey{Type: domain.CommunityTypeLocal, Location: "India"}
	require.NoError(t, m.Communities().Insert(ctx, domain.Community{
		Type: domain.CommunityTypeLocal, Location: &india, Name: "India Community",
		Messages: map[string][]string{"general": {}, "emergencies": {}},
	}))

	require.NoError(t, m.Communities().AppendMessage(ctx, key, "general", "hello"))
	require.NoError(t, m.Communities().AppendMessage(ctx, key, "emergencies", "code blue"))

	c, err := m.Communities().Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, c.Messages["general"])
	assert.Equal(t, []string{"code blue"}, c.Messages["emergencies"])

	err = m.Communities().AppendMessage(ctx, domain.CommunityKey{Type: "Local", Location: "Mars"}, "general", "x")
	assert.True(t, domain.IsNotFound(err))
}

func TestMemory_DoctorSetStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Doctors().InsertGroup(ctx, domain.DoctorGroup{
		Region:  "India",
		Doctors: []domain.Doctor{{Username: "Dr. Kumar", Status: domain.DoctorDisconnected}},
	}))
	require.NoError(t, m.Doctors().InsertGroup(ctx, domain.DoctorGroup{
		Region:  "USA",
		Doctors: []domain.Doctor{{Username: "Dr. Smith", Status: domain.DoctorDisconnected}},
	}))

	region, matched, err := m.Doctors().SetStatus(ctx, "Dr. Smith", domain.DoctorConnected)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, "USA", region)

	groups, err := m.Doctors().Groups(ctx)
	require.NoError(t, err)
	for _, g := range groups {
		for _, d := range g.Doctors {
			if d.Username == "Dr. Smith" {
				assert.Equal(t, domain.DoctorConnected, d.Status)
			} else {
				assert.Equal(t, domain.DoctorDisconnected, d.Status)
			}
		}
	}

	_, matched, err = m.Doctors().SetStatus(ctx, "Dr. Nobody", domain.DoctorConnected)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	require.NoError(t, Seed(ctx, m, now))
	require.NoError(t, Seed(ctx, m, now))

	posts, err := m.Posts().List(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 4)

	communities, err := m.Communities().List(ctx)
	require.NoError(t, err)
	require.Len(t, communities, 2)

	// Posts were projected into the communities they were shared with.
	global, err := m.Communities().Get(ctx, domain.CommunityKey{Type: domain.CommunityTypeGlobal})
	require.NoError(t, err)
	assert.Len(t, global.Posts, 2)

	india, err := m.Communities().Get(ctx, domain.CommunityKey{Type: domain.CommunityTypeLocal, Location: "India"})
	require.NoError(t, err)
	assert.Len(t, india.Posts, 2)

	patients, err := m.Patients().List(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 3)

	groups, err := m.Doctors().Groups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 3)
}
