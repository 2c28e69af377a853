package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redisclient "github.com/angelmondragon/storefront-cart/pkg/redis"
)

// Notice is the one-shot attribution toast shown after a seed was absorbed.
type Notice struct {
	ItemCount int      `json:"itemCount"`
	Source    string   `json:"source"`
	Medium    string   `json:"medium"`
	Campaign  string   `json:"campaign"`
	Items     []string `json:"items"`
}

// NoticeStore keeps at most one pending notice per device scope.
type NoticeStore interface {
	Put(ctx context.Context, scope string, notice Notice, ttl time.Duration) error
	// Take returns and removes the pending notice.
	Take(ctx context.Context, scope string) (Notice, bool, error)
}

type noticeKV interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	NoticeKey(scope string) string
}

type RedisNoticeStore struct {
	kv noticeKV
}

func NewRedisNoticeStore(kv noticeKV) (*RedisNoticeStore, error) {
	if kv == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisNoticeStore{kv: kv}, nil
}

func (s *RedisNoticeStore) Put(ctx context.Context, scope string, notice Notice, ttl time.Duration) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	return s.kv.Set(ctx, s.kv.NoticeKey(scope), payload, ttl)
}

func (s *RedisNoticeStore) Take(ctx context.Context, scope string) (Notice, bool, error) {
	raw, err := s.kv.GetDel(ctx, s.kv.NoticeKey(scope))
	if err != nil {
		if redisclient.IsMissing(err) {
			return Notice{}, false, nil
		}
		return Notice{}, false, err
	}
	var notice Notice
	if err := json.Unmarshal([]byte(raw), &notice); err != nil {
		return Notice{}, false, fmt.Errorf("decode notice: %w", err)
	}
	return notice, true, nil
}

type MemoryNoticeStore struct {
	mu      sync.Mutex
	now     func() time.Time
	pending map[string]memoryNotice
}

type memoryNotice struct {
	notice    Notice
	expiresAt time.Time
}

func NewMemoryNoticeStore() *MemoryNoticeStore {
	return &MemoryNoticeStore{now: time.Now, pending: map[string]memoryNotice{}}
}

func (s *MemoryNoticeStore) Put(_ context.Context, scope string, notice Notice, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryNotice{notice: notice}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.pending[scope] = entry
	return nil
}

func (s *MemoryNoticeStore) Take(_ context.Context, scope string) (Notice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[scope]
	if !ok {
		return Notice{}, false, nil
	}
	delete(s.pending, scope)
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		return Notice{}, false, nil
	}
	return entry.notice, true, nil
}
