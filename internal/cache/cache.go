package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotVersionV1 = 1

var (
	ErrMiss             = errors.New("snapshot not cached")
	ErrRedisUnavailable = errors.New("snapshot redis unavailable")
)

// Snapshot is the subset of the user record kept hot for token verification
// and refresh. It never holds the password hash.
type Snapshot struct {
	UserID            string
	Email             string
	Role              string
	Verified          bool
	Active            bool
	PasswordChangedAt int64
	LastLoginAt       int64
}

// SnapshotCache stores user snapshots in Redis keyed by user ID.
type SnapshotCache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewSnapshotCache(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *SnapshotCache {
	if prefix == "" {
		prefix = "usr"
	}
	return &SnapshotCache{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *SnapshotCache) key(userID string) string {
	return c.prefix + ":" + userID
}

// Get returns the cached snapshot for userID, ErrMiss when absent or
// undecodable. A corrupt blob is deleted and reported as a miss.
func (c *SnapshotCache) Get(ctx context.Context, userID string) (*Snapshot, error) {
	data, err := c.redis.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	snapshot, err := decodeSnapshot(data)
	if err != nil {
		_ = c.redis.Del(ctx, c.key(userID)).Err()
		return nil, ErrMiss
	}
	return snapshot, nil
}

// Set writes the snapshot with the configured TTL.
func (c *SnapshotCache) Set(ctx context.Context, snapshot *Snapshot) error {
	encoded, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, c.key(snapshot.UserID), encoded, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete drops the cached snapshot. Deleting an absent key is not an error.
func (c *SnapshotCache) Delete(ctx context.Context, userID string) error {
	if err := c.redis.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func encodeSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(snapshotVersionV1)

	var flags byte
	if s.Verified {
		flags |= 1
	}
	if s.Active {
		flags |= 2
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, s.PasswordChangedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastLoginAt); err != nil {
		return nil, err
	}

	for _, field := range []string{s.UserID, s.Email, s.Role} {
		if len(field) > 255 {
			return nil, errors.New("snapshot field too long")
		}
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != snapshotVersionV1 {
		return nil, errors.New("invalid snapshot version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		Verified: flags&1 != 0,
		Active:   flags&2 != 0,
	}

	if err := binary.Read(reader, binary.BigEndian, &s.PasswordChangedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.LastLoginAt); err != nil {
		return nil, err
	}

	for _, field := range []*string{&s.UserID, &s.Email, &s.Role} {
		n, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return s, nil
}
