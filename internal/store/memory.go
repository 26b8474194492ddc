package store

import (
	"context"
	"slices"
	"sync"

	"github.com/healthsync/healthsync/internal/domain"
)

// Memory is an in-memory Store for single-instance/dev mode and tests.
// A single mutex guards all collections; every operation is atomic with
// respect to one document, matching the external store's contract.
type Memory struct {
	mu           sync.RWMutex
	patientOrder []string
	patients     map[string][]domain.VitalsSample
	posts        []domain.Post
	communities  []*domain.Community
	doctors      []*domain.DoctorGroup
}

func NewMemory() *Memory {
	return &Memory{
		patients: make(map[string][]domain.VitalsSample),
	}
}

func (m *Memory) Patients() domain.PatientRepository     { return (*memPatients)(m) }
func (m *Memory) Posts() domain.PostRepository           { return (*memPosts)(m) }
func (m *Memory) Communities() domain.CommunityRepository { return (*memCommunities)(m) }
func (m *Memory) Doctors() domain.DoctorRepository       { return (*memDoctors)(m) }

func (m *Memory) Ping(context.Context) error { return nil }

// --- Patients ---

type memPatients Memory

func (m *memPatients) Get(_ context.Context, patientID string) (*domain.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vitals, ok := m.patients[patientID]
	if !ok {
		return nil, domain.NotFoundError("patient", patientID)
	}
	return &domain.Patient{PatientID: patientID, Vitals: slices.Clone(vitals)}, nil
}

func (m *memPatients) List(context.Context) ([]domain.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Patient, 0, len(m.patientOrder))
	for _, id := range m.patientOrder {
		out = append(out, domain.Patient{PatientID: id, Vitals: slices.Clone(m.patients[id])})
	}
	return out, nil
}

func (m *memPatients) AppendVitals(_ context.Context, patientID string, sample domain.VitalsSample) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[patientID]; !ok {
		return false, nil
	}
	m.patients[patientID] = append(m.patients[patientID], sample)
	return true, nil
}

func (m *memPatients) Replace(_ context.Context, patientID string, vitals []domain.VitalsSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[patientID]; !ok {
		m.patientOrder = append(m.patientOrder, patientID)
	}
	m.patients[patientID] = slices.Clone(vitals)
	return nil
}

func (m *memPatients) Delete(_ context.Context, patientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[patientID]; !ok {
		return false, nil
	}
	delete(m.patients, patientID)
	m.patientOrder = slices.DeleteFunc(m.patientOrder, func(id string) bool { return id == patientID })
	return true, nil
}

// --- Posts ---

type memPosts Memory

func (m *memPosts) Insert(_ context.Context, post domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, clonePost(post))
	return nil
}

func (m *memPosts) Get(_ context.Context, postID string) (*domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.posts {
		if m.posts[i].ID == postID {
			p := clonePost(m.posts[i])
			return &p, nil
		}
	}
	return nil, domain.NotFoundError("post", postID)
}

func (m *memPosts) List(context.Context) ([]domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Post, len(m.posts))
	for i := range m.posts {
		out[i] = clonePost(m.posts[i])
	}
	return out, nil
}

func (m *memPosts) ListSharedTo(_ context.Context, communityID string) ([]domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Post
	for i := range m.posts {
		if slices.Contains(m.posts[i].SharedTo, communityID) {
			out = append(out, clonePost(m.posts[i]))
		}
	}
	return out, nil
}

func (m *memPosts) SetLike(_ context.Context, postID, user string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].ID != postID {
			continue
		}
		if m.posts[i].Likes[user] {
			return false, nil
		}
		if m.posts[i].Likes == nil {
			m.posts[i].Likes = make(map[string]bool)
		}
		m.posts[i].Likes[user] = true
		return true, nil
	}
	return false, nil
}

func (m *memPosts) AppendComment(_ context.Context, postID, comment string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].ID == postID {
			m.posts[i].Comments = append(m.posts[i].Comments, comment)
			return true, nil
		}
	}
	return false, nil
}

// --- Communities ---

type memCommunities Memory

func (m *memCommunities) Insert(_ context.Context, community domain.Community) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cloneCommunity(community)
	m.communities = append(m.communities, &c)
	return nil
}

func (m *memCommunities) Get(_ context.Context, key domain.CommunityKey) (*domain.Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.find(key)
	if c == nil {
		return nil, domain.NotFoundError("community", key.ID())
	}
	out := cloneCommunity(*c)
	return &out, nil
}

func (m *memCommunities) List(context.Context) ([]domain.Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Community, 0, len(m.communities))
	for _, c := range m.communities {
		out = append(out, cloneCommunity(*c))
	}
	return out, nil
}

func (m *memCommunities) AppendPost(_ context.Context, key domain.CommunityKey, post domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(key)
	if c == nil {
		return domain.NotFoundError("community", key.ID())
	}
	c.Posts = append(c.Posts, clonePost(post))
	return nil
}

func (m *memCommunities) AppendMessage(_ context.Context, key domain.CommunityKey, channel, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(key)
	if c == nil {
		return domain.NotFoundError("community", key.ID())
	}
	if c.Messages == nil {
		c.Messages = make(map[string][]string)
	}
	c.Messages[channel] = append(c.Messages[channel], message)
	return nil
}

// find must be called with the lock held.
func (m *memCommunities) find(key domain.CommunityKey) *domain.Community {
	for _, c := range m.communities {
		if c.Key() == key {
			return c
		}
	}
	return nil
}

// --- Doctors ---

type memDoctors Memory

func (m *memDoctors) InsertGroup(_ context.Context, group domain.DoctorGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := domain.DoctorGroup{Region: group.Region, Doctors: slices.Clone(group.Doctors)}
	m.doctors = append(m.doctors, &g)
	return nil
}

func (m *memDoctors) Groups(context.Context) ([]domain.DoctorGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.DoctorGroup, 0, len(m.doctors))
	for _, g := range m.doctors {
		out = append(out, domain.DoctorGroup{Region: g.Region, Doctors: slices.Clone(g.Doctors)})
	}
	return out, nil
}

func (m *memDoctors) SetStatus(_ context.Context, username, status string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.doctors {
		for i := range g.Doctors {
			if g.Doctors[i].Username == username {
				g.Doctors[i].Status = status
				return g.Region, true, nil
			}
		}
	}
	return "", false, nil
}

// --- Copy helpers ---

func clonePost(p domain.Post) domain.Post {
	out := p
	out.Comments = slices.Clone(p.Comments)
	out.SharedTo = slices.Clone(p.SharedTo)
	if p.Likes != nil {
		out.Likes = make(map[string]bool, len(p.Likes))
		for k, v := range p.Likes {
			out.Likes[k] = v
		}
	}
	return out
}

func cloneCommunity(c domain.Community) domain.Community {
	out := c
	out.Members = slices.Clone(c.Members)
	out.Posts = make([]domain.Post, len(c.Posts))
	for i := range c.Posts {
		out.Posts[i] = clonePost(c.Posts[i])
	}
	if c.Messages != nil {
		out.Messages = make(map[string][]string, len(c.Messages))
		for k, v := range c.Messages {
			out.Messages[k] = slices.Clone(v)
		}
	}
	if c.Location != nil {
		loc := *c.Location
		out.Location = &loc
	}
	return out
}
