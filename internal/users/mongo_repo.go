package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/mongodb"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userDocument matches the legacy users collection, where the bcrypt hash is in "password".
type userDocument struct {
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	CreatedAt time.Time `bson:"createdAt,omitempty"`
}

type MongoRepo struct {
	collection *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		collection: db.Collection(mongodb.UsersCollection),
	}
}

func (r *MongoRepo) Get(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.mongo.get")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	var doc userDocument
	err = r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, mongoError(err)
	}
	return &User{
		Email:        doc.Email,
		PasswordHash: doc.Password,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (r *MongoRepo) Add(ctx context.Context, user User) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.mongo.add")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	_, err = r.collection.InsertOne(ctx, userDocument{
		Email:     user.Email,
		Password:  user.PasswordHash,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return mongoError(err)
	}
	return nil
}

func mongoError(err error) error {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

// ForEach calls fn for every stored user. Documents without an email or a password hash are skipped and counted.
func (r *MongoRepo) ForEach(ctx context.Context, fn func(User) error) (skipped int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.mongo.foreach")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return 0, mongoError(err)
	}
	defer func() {
		if closeErr := cursor.Close(ctx); closeErr != nil {
			log.Warnf("close users cursor: %s", closeErr)
		}
	}()

	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil || doc.Email == "" || doc.Password == "" {
			log.Warnf("skipping users document %v", cursor.Current.Lookup("_id"))
			skipped++
			continue
		}
		user := User{
			Email:        doc.Email,
			PasswordHash: doc.Password,
			CreatedAt:    doc.CreatedAt,
		}
		if err := fn(user); err != nil {
			return skipped, err
		}
	}
	if err := cursor.Err(); err != nil {
		return skipped, mongoError(err)
	}
	return skipped, nil
}
