// Package presplit pre-splits time-ordered sharded collections ahead of
// write traffic.
//
// Collections sharded on an ObjectID-like key receive all inserts at the top
// of the keyspace, so a single chunk and a single shard absorb every write
// until the cluster's balancer catches up. presplit creates and distributes
// the chunks of a future day before the day starts: the day's key range is
// cut at its boundaries, every chunk inside it is divided into one equal
// piece per shard, and piece i is moved to shard i.
//
// # Quick Start
//
//	cfg, err := presplit.LoadConfig("presplit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cat := catalog.NewMongo(client)
//	bal, _ := balancer.New(cat, presplit.ShardKey{Namespace: cfg.Namespace, Field: cfg.ShardKey})
//	p, _ := presplit.NewPreSplitter(cfg, bal, marker.NewMongo(coll))
//
//	if err := p.Presplit(ctx, time.Now().AddDate(0, 0, 1)); err != nil {
//	    log.Fatal(err)
//	}
//
// # Idempotence
//
// Each day has three marker keys: midnight, noon and the next midnight. A run
// checks which markers are missing, balances from the earliest missing one to
// the end of the day, then writes the missing markers. A day with all markers
// present is skipped without touching the cluster. Markers are written after
// the balance, so an interrupted run is simply repeated; splits at existing
// boundaries and moves to the current owner are no-ops.
//
// # Packages
//
//   - balancer: splits, moves and divides chunks of one namespace
//   - catalog: chunk catalogs backed by MongoDB or memory
//   - marker: marker stores backed by NATS KV, MongoDB, BoltDB or memory
//   - types: keys, chunks and the interfaces shared by all packages
//
// The presplit command in cmd/presplit wires these together from a YAML file.
package presplit
