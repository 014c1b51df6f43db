// Package cache provides the Redis-backed user snapshot cache consulted on
// authenticated hot paths.
//
// The cache is strictly advisory: a miss or a Redis failure means the caller
// falls back to its user store, and writes that fail are logged and dropped.
// Snapshots are stored in a compact versioned binary format; unknown versions
// decode as a miss so the schema can move forward without a migration.
package cache
