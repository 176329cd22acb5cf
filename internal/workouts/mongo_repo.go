package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/mongodb"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
)

const maxUpsertAttempts = 10

// workoutDocument keeps the field names of the legacy collection.
// Rev is missing on legacy documents and is read as 0.
type workoutDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Date      string             `bson:"date"`
	Workouts  Entries            `bson:"workouts"`
	Time      string             `bson:"time"`
	Rev       int64              `bson:"rev"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *workoutDocument) toRecord() Record {
	return Record{
		Owner:           d.Email,
		Date:            d.Date,
		Entries:         d.Workouts,
		LastUpdatedTime: d.Time,
	}
}

type MongoRepo struct {
	collection *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		collection: db.Collection(mongodb.WorkoutsCollection),
	}
}

func (r *MongoRepo) FindOne(ctx context.Context, owner, date string) (_ *Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.mongo.findone")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	doc, err := r.findDocument(ctx, owner, date)
	if err != nil || doc == nil {
		return nil, err
	}
	record := doc.toRecord()
	return &record, nil
}

func (r *MongoRepo) FindRange(ctx context.Context, owner, from, to string) (_ []Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.mongo.findrange")
	defer func() {
		tracing.EndSpan(span, err)
	}()
	span.SetAttributes(attribute.String("from", from), attribute.String("to", to))

	// YYYY-MM-DD strings sort chronologically
	cursor, err := r.collection.Find(ctx, bson.M{
		"email": owner,
		"date":  bson.M{"$gte": from, "$lte": to},
	}, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, mongoError(err)
	}
	defer func() {
		if closeErr := cursor.Close(ctx); closeErr != nil {
			log.Warnf("close workouts cursor: %s", closeErr)
		}
	}()

	records := make([]Record, 0)
	for cursor.Next(ctx) {
		var doc workoutDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode workout document: %w", err)
		}
		records = append(records, doc.toRecord())
	}
	if err := cursor.Err(); err != nil {
		return nil, mongoError(err)
	}

	return records, nil
}

// Upsert relies on the unique (email, date) index for creation races and on
// the rev counter for concurrent merges: a write that lost the race is retried
// against the fresh document.
func (r *MongoRepo) Upsert(
	ctx context.Context,
	owner, date string,
	entries Entries,
	lastUpdatedTime string,
) (_ SaveStatus, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.mongo.upsert")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		span.SetAttributes(attribute.Int("attempt", attempt))

		doc, err := r.findDocument(ctx, owner, date)
		if err != nil {
			return StatusUnknown, err
		}

		if doc == nil {
			_, err := r.collection.InsertOne(ctx, workoutDocument{
				Email:     owner,
				Date:      date,
				Workouts:  entries,
				Time:      lastUpdatedTime,
				Rev:       1,
				UpdatedAt: time.Now().UTC(),
			})
			if err == nil {
				return Created, nil
			}
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return StatusUnknown, mongoError(err)
		}

		if doc.Workouts.Equal(entries) {
			return Unchanged, nil
		}

		res, err := r.collection.UpdateOne(ctx, bson.M{
			"_id": doc.ID,
			"rev": revFilter(doc.Rev),
		}, bson.M{
			"$set": bson.M{
				"workouts":  doc.Workouts.Merge(entries),
				"time":      lastUpdatedTime,
				"rev":       doc.Rev + 1,
				"updatedAt": time.Now().UTC(),
			},
		})
		if err != nil {
			return StatusUnknown, mongoError(err)
		}
		if res.MatchedCount == 1 {
			return Updated, nil
		}
		log.Tracef("workout [%s] changed concurrently, retrying merge", date)
	}

	return StatusUnknown, fmt.Errorf("merge workout %s: too many concurrent writes", date)
}

func (r *MongoRepo) findDocument(ctx context.Context, owner, date string) (*workoutDocument, error) {
	var doc workoutDocument
	err := r.collection.FindOne(ctx, bson.M{"email": owner, "date": date}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, mongoError(err)
	}
	return &doc, nil
}

// legacy documents have no rev field, null matches them
func revFilter(rev int64) any {
	if rev == 0 {
		return bson.M{"$in": bson.A{nil, int64(0)}}
	}
	return rev
}

func mongoError(err error) error {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

// ForEach calls fn for every stored record. Documents that do not decode into
// a record, like the list-shaped payloads of old app builds, are skipped and counted.
func (r *MongoRepo) ForEach(ctx context.Context, fn func(Record) error) (skipped int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.mongo.foreach")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return 0, mongoError(err)
	}
	defer func() {
		if closeErr := cursor.Close(ctx); closeErr != nil {
			log.Warnf("close workouts cursor: %s", closeErr)
		}
	}()

	for cursor.Next(ctx) {
		var doc workoutDocument
		if err := cursor.Decode(&doc); err != nil {
			log.Warnf("skipping workouts document %v: %s", cursor.Current.Lookup("_id"), err)
			skipped++
			continue
		}
		if err := fn(doc.toRecord()); err != nil {
			return skipped, err
		}
	}
	if err := cursor.Err(); err != nil {
		return skipped, mongoError(err)
	}
	return skipped, nil
}
