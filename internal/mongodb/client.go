package mongodb

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection and field names match the documents written by the
// previous node service, so existing data is read as is.
const (
	WorkoutsCollection = "workouts"
	UsersCollection    = "users"
)

type NewClientParams struct {
	URI            string
	DBName         string
	ConnectTimeout time.Duration
}

// NewClient connects to mongo and returns the configured database.
// The caller owns the client and must Disconnect it on shutdown.
func NewClient(ctx context.Context, params NewClientParams) (*mongo.Client, *mongo.Database, error) {
	timeout := params.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(params.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongo: %w", err)
	}

	return client, client.Database(params.DBName), nil
}

func Ping(ctx context.Context, client *mongo.Client) error {
	return client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the unique indexes both record collections rely on
// for one record per (owner, date) and one user per email.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(WorkoutsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_email_date"),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf(
				"create workouts index: duplicate (email, date) documents exist in %q, merge or remove them first: %w",
				WorkoutsCollection, err,
			)
		}
		return fmt.Errorf("create workouts index: %w", err)
	}

	_, err = db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_email"),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf(
				"create users index: duplicate emails exist in %q, remove them first: %w",
				UsersCollection, err,
			)
		}
		return fmt.Errorf("create users index: %w", err)
	}

	log.Debugln("mongo indexes ensured")
	return nil
}
