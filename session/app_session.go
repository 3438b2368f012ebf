package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// AppSessionStore keeps cookie sessions in Redis under eqsess:. Each user
// also has an index set of their session ids so all of them can be revoked
// at once. The cache namespace (eqcache:) is separate, so a cache flush never
// logs anyone out.
type AppSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewAppSessionStore(rdb *redis.Client, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl, now: time.Now}
}

type AppSession struct {
	UserID    string `json:"uid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func sessionKey(id string) string    { return "eqsess:" + id }
func userIndexKey(uid string) string { return "eqsess:user:" + uid }

func (s *AppSessionStore) TTL() time.Duration { return s.ttl }

// Issue stores a new session for userID under a random 256-bit id.
func (s *AppSessionStore) Issue(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := hex.EncodeToString(buf)
	if err := s.put(ctx, id, userID); err != nil {
		return "", err
	}
	return id, nil
}

func (s *AppSessionStore) put(ctx context.Context, id, userID string) error {
	now := s.now()
	b, err := json.Marshal(AppSession{
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(id), b, s.ttl)
		pipe.SAdd(ctx, userIndexKey(userID), id)
		pipe.Expire(ctx, userIndexKey(userID), s.ttl)
		return nil
	})
	return err
}

func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	b, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	return decode(b, err)
}

// Delete removes one session. Unknown ids are not an error.
func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	as, err := decode(s.rdb.GetDel(ctx, sessionKey(id)).Bytes())
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.rdb.SRem(ctx, userIndexKey(as.UserID), id).Err()
}

// RevokeAllForUser drops every session of userID, e.g. after a role change.
func (s *AppSessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := s.rdb.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sid := range ids {
			pipe.Del(ctx, sessionKey(sid))
		}
		pipe.Del(ctx, userIndexKey(userID))
		return nil
	})
	return err
}

func decode(b []byte, err error) (*AppSession, error) {
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var as AppSession
	if err := json.Unmarshal(b, &as); err != nil {
		return nil, err
	}
	return &as, nil
}
