// Package idcache is a read-through cache for entities backed by a
// relational source of truth. It caches whole entities (blobs), single
// attributes looked up by other attributes, and secondary-index lookups,
// and keeps them consistent under concurrent writes without any locking of
// its own.
//
// Components:
//   - Backend: byte store with Get, Add (write iff absent), CAS and Set
//     (see package backend; memory, Redis, Ristretto and BigCache adapters).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - keys.Deriver: deterministic cache keys from entity, predicate and schema.
//
// Consistency protocol:
//
//	e := Find(key)                      // value, cached nil, tombstone or absent + token
//	if e.Exists() { return e.Value() }
//	v := load()                         // source of truth
//	e.Set(v); e.Save()                  // Add if no token, CAS otherwise
//
// After a commit the invalidator overwrites every affected key with a
// short-lived tombstone. A reader that loaded before the commit and saw the
// slot empty writes with Add, which fails on the tombstone; one that saw the
// previous value writes with CAS, which fails because the token moved. Lost
// races are benign and never retried.
//
// Reads under an open transaction (see WithTransaction) never touch the
// cache. Backend failures degrade to a direct load.
package idcache
