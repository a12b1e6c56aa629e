package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arloliu/presplit/internal/logging"
	"github.com/arloliu/presplit/types"
)

// DefaultConfigDatabase is the MongoDB database holding sharding metadata.
const DefaultConfigDatabase = "config"

// Mongo is a chunk catalog backed by a sharded MongoDB cluster.
//
// Chunk lookups query the config.chunks collection; splits and moves run the
// split and moveChunk admin commands through a mongos router. Only ObjectID
// shard keys are supported; MinKey and MaxKey chunk bounds map to
// types.MinKey and types.MaxKey.
type Mongo struct {
	client     *mongo.Client
	config     *mongo.Database
	admin      *mongo.Database
	countMoved bool
	logger     types.Logger

	mu      sync.Mutex
	filters map[string]bson.D
}

var _ types.ChunkCatalog = (*Mongo)(nil)

// MongoOption configures a Mongo catalog.
type MongoOption func(*mongoOptions)

type mongoOptions struct {
	configDatabase string
	countMoved     bool
	logger         types.Logger
}

// WithConfigDatabase overrides the sharding metadata database (default "config").
func WithConfigDatabase(name string) MongoOption {
	return func(o *mongoOptions) {
		o.configDatabase = name
	}
}

// WithCountMovedDocuments makes MoveChunk count the documents of the moved
// chunk after the move. Counting scans the chunk's key range on the
// destination, so it is off by default.
func WithCountMovedDocuments(enabled bool) MongoOption {
	return func(o *mongoOptions) {
		o.countMoved = enabled
	}
}

// WithMongoLogger sets the logger used by the catalog.
func WithMongoLogger(logger types.Logger) MongoOption {
	return func(o *mongoOptions) {
		o.logger = logger
	}
}

// NewMongo creates a catalog using client, which must be connected to a mongos.
//
// Example:
//
//	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://mongos:27017"))
//	if err != nil { /* handle */ }
//	cat := catalog.NewMongo(client, catalog.WithCountMovedDocuments(true))
func NewMongo(client *mongo.Client, opts ...MongoOption) *Mongo {
	o := mongoOptions{configDatabase: DefaultConfigDatabase}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	return &Mongo{
		client:     client,
		config:     client.Database(o.configDatabase),
		admin:      client.Database("admin"),
		countMoved: o.countMoved,
		logger:     o.logger,
		filters:    make(map[string]bson.D),
	}
}

// chunkDocument is the subset of a config.chunks document the catalog reads.
type chunkDocument struct {
	ID    bson.RawValue `bson:"_id"`
	Min   bson.Raw      `bson:"min"`
	Max   bson.Raw      `bson:"max"`
	Shard string        `bson:"shard"`
}

// FindChunk returns the chunk containing key.
func (m *Mongo) FindChunk(ctx context.Context, sk types.ShardKey, key types.Key) (types.Chunk, bool, error) {
	nsFilter, err := m.namespaceFilter(ctx, sk.Namespace)
	if err != nil {
		return types.Chunk{}, false, err
	}

	minPath, maxPath := "min."+sk.Field, "max."+sk.Field
	point := primitive.ObjectID(key)
	filter := append(bson.D{}, nsFilter...)
	filter = append(filter, bson.E{Key: "$and", Value: bson.A{
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: minPath, Value: bson.D{{Key: "$lte", Value: point}}}},
			bson.D{{Key: minPath, Value: primitive.MinKey{}}},
		}}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: maxPath, Value: bson.D{{Key: "$gt", Value: point}}}},
			bson.D{{Key: maxPath, Value: primitive.MaxKey{}}},
		}}},
	}})

	var doc chunkDocument
	err = m.config.Collection("chunks").FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Chunk{}, false, nil
	}
	if err != nil {
		return types.Chunk{}, false, fmt.Errorf("query config.chunks: %w", err)
	}

	chunk, err := doc.toChunk(sk)
	if err != nil {
		return types.Chunk{}, false, err
	}
	if !chunk.Contains(key) {
		// MaxKey itself is never inside a half-open chunk.
		return types.Chunk{}, false, nil
	}

	return chunk, true, nil
}

// FindChunksBetween yields chunks with lo < Min < hi sorted by Min.
func (m *Mongo) FindChunksBetween(ctx context.Context, sk types.ShardKey, lo, hi types.Key) iter.Seq2[types.Chunk, error] {
	return func(yield func(types.Chunk, error) bool) {
		nsFilter, err := m.namespaceFilter(ctx, sk.Namespace)
		if err != nil {
			yield(types.Chunk{}, err)
			return
		}

		minPath := "min." + sk.Field
		filter := append(bson.D{}, nsFilter...)
		filter = append(filter, bson.E{Key: minPath, Value: bson.D{
			{Key: "$gt", Value: boundValue(lo)},
			{Key: "$lt", Value: boundValue(hi)},
		}})

		cur, err := m.config.Collection("chunks").Find(ctx, filter,
			options.Find().SetSort(bson.D{{Key: minPath, Value: 1}}))
		if err != nil {
			yield(types.Chunk{}, fmt.Errorf("query config.chunks: %w", err))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var doc chunkDocument
			if err := cur.Decode(&doc); err != nil {
				yield(types.Chunk{}, fmt.Errorf("decode chunk: %w", err))
				return
			}
			chunk, err := doc.toChunk(sk)
			if err != nil {
				yield(types.Chunk{}, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(types.Chunk{}, fmt.Errorf("iterate config.chunks: %w", err))
		}
	}
}

// Split runs the split admin command with the middle option.
func (m *Mongo) Split(ctx context.Context, sk types.ShardKey, at types.Key) error {
	cmd := bson.D{
		{Key: "split", Value: sk.Namespace},
		{Key: "middle", Value: bson.D{{Key: sk.Field, Value: primitive.ObjectID(at)}}},
	}
	if err := m.admin.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("split %s at %s: %w", sk.Namespace, at, err)
	}

	return nil
}

// MoveChunk runs the moveChunk admin command for the chunk containing key.
//
// A command error saying the chunk already lives on the destination maps to
// types.ErrChunkAlreadyOnShard.
func (m *Mongo) MoveChunk(ctx context.Context, sk types.ShardKey, key types.Key, shard string) (int64, error) {
	cmd := bson.D{
		{Key: "moveChunk", Value: sk.Namespace},
		{Key: "find", Value: bson.D{{Key: sk.Field, Value: primitive.ObjectID(key)}}},
		{Key: "to", Value: shard},
	}
	if err := m.admin.RunCommand(ctx, cmd).Err(); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && isAlreadyOnShard(cmdErr.Message) {
			return 0, fmt.Errorf("%w: %s", types.ErrChunkAlreadyOnShard, cmdErr.Message)
		}

		return 0, fmt.Errorf("move chunk of %s at %s to %s: %w", sk.Namespace, key, shard, err)
	}

	if !m.countMoved {
		return 0, nil
	}

	return m.countChunk(ctx, sk, key)
}

// countChunk counts the documents within the chunk containing key.
func (m *Mongo) countChunk(ctx context.Context, sk types.ShardKey, key types.Key) (int64, error) {
	chunk, found, err := m.FindChunk(ctx, sk, key)
	if err != nil || !found {
		return 0, err
	}

	db, coll, ok := strings.Cut(sk.Namespace, ".")
	if !ok {
		return 0, fmt.Errorf("invalid namespace %q", sk.Namespace)
	}

	filter := bson.D{{Key: sk.Field, Value: bson.D{
		{Key: "$gte", Value: boundValue(chunk.Min)},
		{Key: "$lt", Value: boundValue(chunk.Max)},
	}}}
	count, err := m.client.Database(db).Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		// the move itself succeeded
		m.logger.Warn("failed to count moved documents", "namespace", sk.Namespace, "chunk", chunk, "error", err)
		return 0, nil
	}

	return count, nil
}

// namespaceFilter returns the config.chunks filter selecting a namespace.
//
// Chunk documents carry either the namespace string (MongoDB < 5.0) or the
// collection UUID (5.0+), so both are matched when the UUID is known.
func (m *Mongo) namespaceFilter(ctx context.Context, ns string) (bson.D, error) {
	m.mu.Lock()
	cached, ok := m.filters[ns]
	m.mu.Unlock()
	if ok {
		return cached, nil
	}

	var coll bson.Raw
	err := m.config.Collection("collections").FindOne(ctx, bson.D{{Key: "_id", Value: ns}}).Decode(&coll)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("query config.collections: %w", err)
	}

	filter := bson.D{{Key: "ns", Value: ns}}
	if coll != nil {
		if uuid, lookupErr := coll.LookupErr("uuid"); lookupErr == nil {
			filter = bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "ns", Value: ns}},
				bson.D{{Key: "uuid", Value: uuid}},
			}}}
		}
	}

	m.mu.Lock()
	m.filters[ns] = filter
	m.mu.Unlock()

	return filter, nil
}

func (d chunkDocument) toChunk(sk types.ShardKey) (types.Chunk, error) {
	lo, err := decodeBound(d.Min, sk.Field)
	if err != nil {
		return types.Chunk{}, fmt.Errorf("chunk min: %w", err)
	}
	hi, err := decodeBound(d.Max, sk.Field)
	if err != nil {
		return types.Chunk{}, fmt.Errorf("chunk max: %w", err)
	}

	return types.Chunk{
		ID:        rawID(d.ID),
		Namespace: sk.Namespace,
		Field:     sk.Field,
		Min:       lo,
		Max:       hi,
		Shard:     d.Shard,
	}, nil
}

// decodeBound reads a chunk bound document such as {_id: ObjectId(...)}.
func decodeBound(bound bson.Raw, field string) (types.Key, error) {
	v, err := bound.LookupErr(field)
	if err != nil {
		return types.Key{}, fmt.Errorf("missing field %q: %w", field, err)
	}

	switch v.Type {
	case bsontype.MinKey:
		return types.MinKey, nil
	case bsontype.MaxKey:
		return types.MaxKey, nil
	case bsontype.ObjectID:
		return types.Key(v.ObjectID()), nil
	default:
		return types.Key{}, fmt.Errorf("unsupported shard key type %s for field %q", v.Type, field)
	}
}

// boundValue encodes a chunk bound for queries, mapping the keyspace extremes to MinKey/MaxKey.
func boundValue(k types.Key) any {
	switch k {
	case types.MinKey:
		return primitive.MinKey{}
	case types.MaxKey:
		return primitive.MaxKey{}
	default:
		return primitive.ObjectID(k)
	}
}

func rawID(v bson.RawValue) string {
	switch v.Type {
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	case bsontype.String:
		return v.StringValue()
	default:
		return v.String()
	}
}

// isAlreadyOnShard recognizes the moveChunk errors reported when source and
// destination shard are the same.
func isAlreadyOnShard(msg string) bool {
	msg = strings.ToLower(msg)

	return strings.Contains(msg, "already on") ||
		strings.Contains(msg, "cannot be the same as source")
}
