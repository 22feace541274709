// Package cellar implements a local persistent object store: it maps
// structured values, homogeneous sequences, and raw binary blobs to files and
// folders under a small set of well-known root directories, and layers a
// time-to-live cell abstraction on top so a stored value behaves like a
// property that transparently persists and expires.
//
// Components:
//   - Store: resolves (Root, relative path) Locations, saves/retrieves single
//     items, treats a folder as an ordered append-able collection, and exposes
//     directory-level operations (Exists, Remove, Clear, Move, Rename, URL).
//   - Cell[V]: a store-backed value with a sidecar metadata record
//     {lifetime, createdAt, updatedAt}; staleness is evaluated on every read.
//   - Codec[V]: (de)serializes V <-> []byte and names the filename extension
//     used for collection members (e.g. JSON, Msgpack, CBOR, Protobuf, Bytes).
//   - Resolver: maps a Root domain to its base directory, creating it on
//     first use.
//   - Provider: optional in-memory byte cache layered over file reads
//     (e.g. local, Ristretto, BigCache).
//
// Collections on disk:
//
//	<folder>/0.json, <folder>/1.json, ...  - stem is the insertion index
//
// Logical order is the ascending numeric order of the stems, never the
// lexical listing order. This naming is a durable format other processes may
// read.
//
// Cell pattern:
//
//	cell, _ := cellar.Bind(store, codec.JSON[Session]{}, "session", Session{}, 30*time.Minute)
//	v, _ := cell.Get() // stale or missing => default, re-seeded to disk
//	_ = cell.Set(v2)   // persists and refreshes updatedAt
package cellar
