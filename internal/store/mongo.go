package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/healthsync/healthsync/internal/domain"
	"github.com/healthsync/healthsync/internal/metrics"
)

// opTimeout bounds every store call; a call that exceeds it fails as
// StoreUnavailable instead of blocking the event pipeline.
const opTimeout = 5 * time.Second

const (
	colPatients    = "patients"
	colPosts       = "posts"
	colCommunities = "communities"
	colDoctors     = "doctors"
)

// Mongo is the document-store adapter backed by MongoDB. Each operation
// is atomic for a single document; there are no cross-document
// transactions.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo connects and verifies the deployment is reachable.
func ConnectMongo(ctx context.Context, url, database string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database)}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Patients() domain.PatientRepository      { return &mongoPatients{col: m.db.Collection(colPatients)} }
func (m *Mongo) Posts() domain.PostRepository            { return &mongoPosts{col: m.db.Collection(colPosts)} }
func (m *Mongo) Communities() domain.CommunityRepository { return &mongoCommunities{col: m.db.Collection(colCommunities)} }
func (m *Mongo) Doctors() domain.DoctorRepository        { return &mongoDoctors{col: m.db.Collection(colDoctors)} }

func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := m.client.Ping(ctx, nil); err != nil {
		return domain.StoreUnavailableError(err)
	}
	return nil
}

// storeErr maps driver failures onto the error taxonomy. Anything that is
// not a plain "no document" is treated as the store being unreachable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	metrics.StoreErrorsTotal.Inc()
	return domain.StoreUnavailableError(err)
}

func opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// --- Patients ---

type mongoPatients struct {
	col *mongo.Collection
}

func (r *mongoPatients) Get(ctx context.Context, patientID string) (*domain.Patient, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var p domain.Patient
	err := r.col.FindOne(ctx, bson.M{"patientId": patientID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFoundError("patient", patientID)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &p, nil
}

func (r *mongoPatients) List(ctx context.Context) ([]domain.Patient, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	cursor, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, storeErr(err)
	}
	var out []domain.Patient
	if err := cursor.All(ctx, &out); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (r *mongoPatients) AppendVitals(ctx context.Context, patientID string, sample domain.VitalsSample) (bool, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"patientId": patientID},
		bson.M{"$push": bson.M{"vitals": sample}},
	)
	if err != nil {
		return false, storeErr(err)
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoPatients) Replace(ctx context.Context, patientID string, vitals []domain.VitalsSample) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"patientId": patientID},
		bson.M{"$set": bson.M{"vitals": vitals}},
		options.Update().SetUpsert(true),
	)
	return storeErr(err)
}

func (r *mongoPatients) Delete(ctx context.Context, patientID string) (bool, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"patientId": patientID})
	if err != nil {
		return false, storeErr(err)
	}
	return res.DeletedCount > 0, nil
}

// --- Posts ---

type mongoPosts struct {
	col *mongo.Collection
}

func (r *mongoPosts) Insert(ctx context.Context, post domain.Post) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := r.col.InsertOne(ctx, post)
	return storeErr(err)
}

func (r *mongoPosts) Get(ctx context.Context, postID string) (*domain.Post, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var p domain.Post
	err := r.col.FindOne(ctx, bson.M{"id": postID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFoundError("post", postID)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &p, nil
}

func (r *mongoPosts) List(ctx context.Context) ([]domain.Post, error) {
	return r.findPosts(ctx, bson.M{})
}

func (r *mongoPosts) ListSharedTo(ctx context.Context, communityID string) ([]domain.Post, error) {
	return r.findPosts(ctx, bson.M{"sharedTo": communityID})
}

func (r *mongoPosts) findPosts(ctx context.Context, filter bson.M) ([]domain.Post, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, storeErr(err)
	}
	var out []domain.Post
	if err := cursor.All(ctx, &out); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// SetLike replaces the whole likes map in one document-atomic $set, the
// same update shape the store's documents were written with. Usernames
// can contain dots ("Dr. Kumar"), so a dotted field path is not an
// option. Callers serialize per post; see events.Service.
func (r *mongoPosts) SetLike(ctx context.Context, postID, user string) (bool, error) {
	post, err := r.Get(ctx, postID)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if post.Likes[user] {
		return false, nil
	}

	likes := make(map[string]bool, len(post.Likes)+1)
	for k, v := range post.Likes {
		likes[k] = v
	}
	likes[user] = true

	ctx, cancel := opCtx(ctx)
	defer cancel()
	res, err := r.col.UpdateOne(ctx, bson.M{"id": postID}, bson.M{"$set": bson.M{"likes": likes}})
	if err != nil {
		return false, storeErr(err)
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoPosts) AppendComment(ctx context.Context, postID, comment string) (bool, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"id": postID},
		bson.M{"$push": bson.M{"comments": comment}},
	)
	if err != nil {
		return false, storeErr(err)
	}
	return res.MatchedCount > 0, nil
}

// --- Communities ---

type mongoCommunities struct {
	col *mongo.Collection
}

// communityFilter matches by (type, location); global communities carry
// an explicit null location.
func communityFilter(key domain.CommunityKey) bson.M {
	if key.Location == "" {
		return bson.M{"type": key.Type, "location": nil}
	}
	return bson.M{"type": key.Type, "location": key.Location}
}

func (r *mongoCommunities) Insert(ctx context.Context, community domain.Community) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := r.col.InsertOne(ctx, community)
	return storeErr(err)
}

func (r *mongoCommunities) Get(ctx context.Context, key domain.CommunityKey) (*domain.Community, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var c domain.Community
	err := r.col.FindOne(ctx, communityFilter(key)).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFoundError("community", key.ID())
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &c, nil
}

func (r *mongoCommunities) List(ctx context.Context) ([]domain.Community, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	cursor, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, storeErr(err)
	}
	var out []domain.Community
	if err := cursor.All(ctx, &out); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (r *mongoCommunities) AppendPost(ctx context.Context, key domain.CommunityKey, post domain.Post) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, communityFilter(key), bson.M{"$push": bson.M{"posts": post}})
	if err != nil {
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundError("community", key.ID())
	}
	return nil
}

func (r *mongoCommunities) AppendMessage(ctx context.Context, key domain.CommunityKey, channel, message string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, communityFilter(key), bson.M{"$push": bson.M{"messages." + channel: message}})
	if err != nil {
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundError("community", key.ID())
	}
	return nil
}

// --- Doctors ---

type mongoDoctors struct {
	col *mongo.Collection
}

func (r *mongoDoctors) InsertGroup(ctx context.Context, group domain.DoctorGroup) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := r.col.InsertOne(ctx, group)
	return storeErr(err)
}

func (r *mongoDoctors) Groups(ctx context.Context) ([]domain.DoctorGroup, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	cursor, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, storeErr(err)
	}
	var out []domain.DoctorGroup
	if err := cursor.All(ctx, &out); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (r *mongoDoctors) SetStatus(ctx context.Context, username, status string) (string, bool, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var group domain.DoctorGroup
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"doctors.username": username},
		bson.M{"$set": bson.M{"doctors.$.status": status}},
	).Decode(&group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr(err)
	}
	return group.Region, true, nil
}
