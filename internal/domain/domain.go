package domain

import (
	"context"
	"strings"
)

// --- Model types ---

// VitalsSample is one timestamped observation of a patient's physiological
// signals plus the derived risk label. RespirationRate and Temperature are
// optional because not every wearable reports them; pointers keep "absent"
// distinguishable from a literal zero.
type VitalsSample struct {
	PatientID       string   `json:"patientId" bson:"patientId"`
	HeartRate       int      `json:"heartRate" bson:"heartRate"`
	SpO2            int      `json:"spO2" bson:"spO2"`
	RespirationRate *int     `json:"respirationRate,omitempty" bson:"respirationRate,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty" bson:"temperature,omitempty"`
	Timestamp       string   `json:"timestamp" bson:"timestamp"`
	Prediction      string   `json:"prediction" bson:"prediction"`
	ActivityLevel   string   `json:"activityLevel" bson:"activityLevel"`
	RecoveryRate    string   `json:"recoveryRate" bson:"recoveryRate"`
	AnomalyScore    float64  `json:"anomalyScore" bson:"anomalyScore"`
	IsVerySerious   bool     `json:"isVerySerious" bson:"isVerySerious"`
}

// Patient holds an append-only, arrival-ordered vitals history.
type Patient struct {
	PatientID string         `json:"patientId" bson:"patientId"`
	Vitals    []VitalsSample `json:"vitals" bson:"vitals"`
}

// Post is the canonical post document. Likes map userID to liked; the
// author is seeded with false so "has seen the post" and "has liked it"
// stay distinguishable.
type Post struct {
	ID        string          `json:"id" bson:"id"`
	Author    string          `json:"author" bson:"author"`
	Content   string          `json:"content" bson:"content"`
	ImageURL  string          `json:"imageUrl" bson:"imageUrl"`
	Likes     map[string]bool `json:"likes" bson:"likes"`
	Comments  []string        `json:"comments" bson:"comments"`
	Timestamp string          `json:"timestamp" bson:"timestamp"`
	SharedTo  []string        `json:"sharedTo" bson:"sharedTo"`
}

// LikeCount counts users whose like flag is set.
func (p *Post) LikeCount() int {
	n := 0
	for _, liked := range p.Likes {
		if liked {
			n++
		}
	}
	return n
}

// Community is a named, possibly location-scoped group with two fixed
// message channels and a post feed projection. Posts is a copy taken at
// share time, not a reference into the canonical post collection.
type Community struct {
	Type     string              `json:"type" bson:"type"`
	Location *string             `json:"location" bson:"location"`
	Name     string              `json:"name" bson:"name"`
	Members  []string            `json:"members" bson:"members"`
	Posts    []Post              `json:"posts" bson:"posts"`
	Messages map[string][]string `json:"messages" bson:"messages"`
}

// Key returns the community's (type, location) identity.
func (c *Community) Key() CommunityKey {
	k := CommunityKey{Type: c.Type}
	if c.Location != nil {
		k.Location = *c.Location
	}
	return k
}

// Doctor is one entry of the region-grouped doctor registry.
type Doctor struct {
	Username        string   `json:"username" bson:"username"`
	ExperienceYears int      `json:"experienceYears" bson:"experienceYears"`
	Specialties     []string `json:"specialties" bson:"specialties"`
	Rating          float64  `json:"rating" bson:"rating"`
	Image           string   `json:"image" bson:"image"`
	Status          string   `json:"status" bson:"status"`
}

// DoctorGroup holds all doctors of one region.
type DoctorGroup struct {
	Region  string   `json:"region" bson:"region"`
	Doctors []Doctor `json:"doctors" bson:"doctors"`
}

// Doctor connection states.
const (
	DoctorConnected    = "Connected"
	DoctorDisconnected = "Disconnected"
)

// --- Community identity ---

// Community types. Global is the single location-less community; every
// other type is parameterized by location (e.g. Local/India).
const (
	CommunityTypeGlobal = "Global"
	CommunityTypeLocal  = "Local"
)

// CommunityKey identifies a community by (type, location). A global
// community has an empty location.
type CommunityKey struct {
	Type     string
	Location string
}

// ID renders the wire identifier: "Global" or "Local_India".
func (k CommunityKey) ID() string {
	if k.Location == "" {
		return k.Type
	}
	return k.Type + "_" + k.Location
}

// ParseCommunityID parses a wire identifier back into a key.
func ParseCommunityID(id string) CommunityKey {
	typ, loc, found := strings.Cut(id, "_")
	if !found {
		return CommunityKey{Type: id}
	}
	return CommunityKey{Type: typ, Location: loc}
}

// --- Channels ---

// The two recognized message channels. Anything else is rejected at the
// event boundary before any state is touched.
const (
	ChannelGeneral     = "general"
	ChannelEmergencies = "emergencies"
)

// ValidChannel reports whether name is a recognized channel.
func ValidChannel(name string) bool {
	return name == ChannelGeneral || name == ChannelEmergencies
}

// --- Repositories ---

// PatientRepository owns the patients collection. AppendVitals and Delete
// report whether a document matched; operating on an unknown patient is a
// no-op, not an error.
type PatientRepository interface {
	Get(ctx context.Context, patientID string) (*Patient, error)
	List(ctx context.Context) ([]Patient, error)
	AppendVitals(ctx context.Context, patientID string, sample VitalsSample) (bool, error)
	Replace(ctx context.Context, patientID string, vitals []VitalsSample) error
	Delete(ctx context.Context, patientID string) (bool, error)
}

// PostRepository owns the canonical post collection. SetLike is a
// compare-and-set: it succeeds only if the post exists and the user has
// not already liked it, making likes idempotent at the store level.
type PostRepository interface {
	Insert(ctx context.Context, post Post) error
	Get(ctx context.Context, postID string) (*Post, error)
	List(ctx context.Context) ([]Post, error)
	ListSharedTo(ctx context.Context, communityID string) ([]Post, error)
	SetLike(ctx context.Context, postID, user string) (bool, error)
	AppendComment(ctx context.Context, postID, comment string) (bool, error)
}

// CommunityRepository owns the community collection, keyed by
// (type, location).
type CommunityRepository interface {
	Insert(ctx context.Context, community Community) error
	Get(ctx context.Context, key CommunityKey) (*Community, error)
	List(ctx context.Context) ([]Community, error)
	AppendPost(ctx context.Context, key CommunityKey, post Post) error
	AppendMessage(ctx context.Context, key CommunityKey, channel, message string) error
}

// DoctorRepository owns the region-grouped doctor registry. SetStatus
// updates the matching doctor across all regions and reports which region
// contained the username.
type DoctorRepository interface {
	InsertGroup(ctx context.Context, group DoctorGroup) error
	Groups(ctx context.Context) ([]DoctorGroup, error)
	SetStatus(ctx context.Context, username, status string) (region string, matched bool, err error)
}

// Store bundles the per-collection repositories backing all persistent
// shared state. Each repository operation is atomic with respect to a
// single document; there are no cross-document transactions.
type Store interface {
	Patients() PatientRepository
	Posts() PostRepository
	Communities() CommunityRepository
	Doctors() DoctorRepository
	Ping(ctx context.Context) error
}
