package types

import "fmt"

// ShardKey identifies a sharded namespace and the field it is sharded on.
type ShardKey struct {
	// Namespace is the fully qualified collection name (e.g. "app.events").
	Namespace string `json:"ns" yaml:"namespace"`

	// Field is the shard key field name (e.g. "_id").
	Field string `json:"field" yaml:"field"`
}

// String returns "namespace:field".
func (sk ShardKey) String() string {
	return sk.Namespace + ":" + sk.Field
}

// Chunk is a contiguous half-open key range [Min, Max) of one namespace,
// owned by exactly one shard.
//
// For a fixed namespace, chunks partition the whole keyspace with no gaps
// and no overlaps, and Min < Max always holds.
type Chunk struct {
	// ID is the catalog-assigned identity.
	ID string `json:"id"`

	// Namespace is the sharded collection this chunk belongs to.
	Namespace string `json:"ns"`

	// Field is the shard key field name.
	Field string `json:"field"`

	// Min is the inclusive lower bound.
	Min Key `json:"min"`

	// Max is the exclusive upper bound.
	Max Key `json:"max"`

	// Shard is the id of the owning shard.
	Shard string `json:"shard"`
}

// Contains reports whether Min <= k < Max.
func (c Chunk) Contains(k Key) bool {
	return c.Min.Compare(k) <= 0 && k.Less(c.Max)
}

// String returns a compact description for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("%s[%s,%s)@%s", c.Namespace, c.Min, c.Max, c.Shard)
}
