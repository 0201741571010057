// Package prefs persists the one user preference that outlives a session:
// the color theme.
package prefs

import (
    "context"
    "errors"
    "fmt"
    "sync"

    redis "github.com/redis/go-redis/v9"
)

type Theme string

const (
    Light Theme = "light"
    Dark  Theme = "dark"
)

const DefaultKey = "pdf-studio-theme"

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
    switch t := Theme(s); t {
    case Light, Dark:
        return t, nil
    }
    return "", fmt.Errorf("unknown theme %q", s)
}

// Toggled returns the other theme.
func (t Theme) Toggled() Theme {
    if t == Light { return Dark }
    return Light
}

type Store interface {
    Theme(ctx context.Context) (Theme, error)
    SetTheme(ctx context.Context, t Theme) error
}

// Toggle flips the stored theme and returns the new value.
func Toggle(ctx context.Context, s Store) (Theme, error) {
    cur, err := s.Theme(ctx)
    if err != nil { return "", err }
    next := cur.Toggled()
    if err := s.SetTheme(ctx, next); err != nil { return "", err }
    return next, nil
}

// RedisStore keeps the theme under a single key.
type RedisStore struct {
    client *redis.Client
    key    string
    def    Theme
}

func NewRedisStore(redisURL, key string, def Theme) (*RedisStore, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    if key == "" { key = DefaultKey }
    if def == "" { def = Dark }
    return &RedisStore{client: c, key: key, def: def}, nil
}

func (s *RedisStore) Theme(ctx context.Context) (Theme, error) {
    v, err := s.client.Get(ctx, s.key).Result()
    if errors.Is(err, redis.Nil) { return s.def, nil }
    if err != nil { return "", err }
    t, err := ParseTheme(v)
    if err != nil { return s.def, nil }
    return t, nil
}

func (s *RedisStore) SetTheme(ctx context.Context, t Theme) error {
    if _, err := ParseTheme(string(t)); err != nil { return err }
    return s.client.Set(ctx, s.key, string(t), 0).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

// MemoryStore is used when no Redis URL is configured.
type MemoryStore struct {
    mu  sync.Mutex
    key string
    m   map[string]Theme
    def Theme
}

func NewMemoryStore(key string, def Theme) *MemoryStore {
    if key == "" { key = DefaultKey }
    if def == "" { def = Dark }
    return &MemoryStore{key: key, m: map[string]Theme{}, def: def}
}

func (s *MemoryStore) Theme(ctx context.Context) (Theme, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if t, ok := s.m[s.key]; ok { return t, nil }
    return s.def, nil
}

func (s *MemoryStore) SetTheme(ctx context.Context, t Theme) error {
    if _, err := ParseTheme(string(t)); err != nil { return err }
    s.mu.Lock()
    s.m[s.key] = t
    s.mu.Unlock()
    return nil
}
