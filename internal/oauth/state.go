package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const statePrefix = "oauth:state:"

// State is the server-side record of one in-flight login attempt, keyed by
// the opaque state value sent to the provider. It binds the flow to the
// tenant it started on, so a login begun on tenant A's subdomain cannot
// complete as tenant B.
type State struct {
	Value       string    `json:"value"`
	Provider    string    `json:"provider"`
	TenantID    string    `json:"tenant_id"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
}

// StateStore persists login states for the few minutes between redirect and
// callback. Consume is get-and-delete: a state can be redeemed once.
type StateStore interface {
	Save(ctx context.Context, st State, ttl time.Duration) error
	Consume(ctx context.Context, value string) (*State, error)
}

// RedisStateStore keeps states in Redis with a TTL.
type RedisStateStore struct {
	client *redis.Client
}

var _ StateStore = (*RedisStateStore)(nil)

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Save(ctx context.Context, st State, ttl time.Duration) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal oauth state: %w", err)
	}
	if err := s.client.Set(ctx, statePrefix+st.Value, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, value string) (*State, error) {
	raw, err := s.client.GetDel(ctx, statePrefix+value).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load oauth state: %w", err)
	}
	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("unmarshal oauth state: %w", err)
	}
	return &st, nil
}

// MemoryStateStore is a process-local store used in tests and single-node
// development.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]memoryState
	now    func() time.Time
}

type memoryState struct {
	state     State
	expiresAt time.Time
}

var _ StateStore = (*MemoryStateStore)(nil)

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: map[string]memoryState{},
		now:    time.Now,
	}
}

func (s *MemoryStateStore) Save(_ context.Context, st State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.Value] = memoryState{state: st, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, value string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[value]
	if !ok {
		return nil, nil
	}
	delete(s.states, value)
	if s.now().After(entry.expiresAt) {
		return nil, nil
	}
	st := entry.state
	return &st, nil
}
