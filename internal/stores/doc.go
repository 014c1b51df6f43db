// Package stores holds the Redis-backed persistence for one-time tokens.
//
// Records are encoded in a compact versioned binary layout and are never
// deleted on consumption: the used flag is flipped in place by a Lua script
// so a later attempt can be classified as already-used rather than unknown,
// and an expired record keeps reporting expired for as long as it is
// retained.
package stores
