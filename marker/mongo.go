package marker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/arloliu/presplit/types"
)

// Default database and collection for Mongo markers.
const (
	DefaultDatabase   = "presplit"
	DefaultCollection = "markers"
)

// Mongo is a MarkerStore backed by a MongoDB collection.
//
// Markers are stored as {_id: id, p: true, d: <time>, n: <count>}. The _id
// unique index makes a second insert fail with a duplicate key error, which
// Mark treats as success.
type Mongo struct {
	coll *mongo.Collection
}

var _ types.MarkerStore = (*Mongo)(nil)

// markerDocument is the stored form of a marker.
type markerDocument struct {
	ID          string    `bson:"_id"`
	Processed   bool      `bson:"p"`
	ProcessedAt time.Time `bson:"d"`
	Count       int64     `bson:"n"`
}

// NewMongo stores markers in coll.
//
// Example:
//
//	store := marker.NewMongo(client.Database("presplit").Collection("markers"))
func NewMongo(coll *mongo.Collection) *Mongo {
	return &Mongo{coll: coll}
}

// IsMarked reports whether a processed marker exists for id.
func (s *Mongo) IsMarked(ctx context.Context, id string) (bool, error) {
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "p", Value: true}}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find marker %s: %w", id, err)
	}

	return true, nil
}

// Mark inserts the marker for id unless one already exists.
func (s *Mongo) Mark(ctx context.Context, id string, count int64) error {
	_, err := s.coll.InsertOne(ctx, markerDocument{
		ID:          id,
		Processed:   true,
		ProcessedAt: time.Now().UTC(),
		Count:       count,
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert marker %s: %w", id, err)
	}

	return nil
}
