// Package snapshot persists resolved searches in Redis so a result can be
// fetched again by its key without re-running the fallback tiers.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/geodata-search/internal/cache/keys"
	"github.com/mohammed-shakir/geodata-search/internal/cache/redisstore"
	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/search"
)

var (
	ErrNotFound   = errors.New("snapshot not found")
	ErrInvalidKey = errors.New("not a search key")
)

// KV is the subset of redisstore.Client the store needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Scan(ctx context.Context, pattern string, limit int) ([]string, error)
	Del(ctx context.Context, keys ...string) error
}

type Snapshot struct {
	Key        string                  `json:"key"`
	Provider   string                  `json:"provider"`
	Params     model.SearchParams      `json:"params"`
	CreatedAt  time.Time               `json:"created_at"`
	Status     search.Status           `json:"status"`
	Collection model.FeatureCollection `json:"collection"`
}

type Store struct {
	kv        KV
	ttl       time.Duration
	opTimeout time.Duration
	log       *slog.Logger
	now       func() time.Time
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithOpTimeout bounds every Redis round trip; zero disables the bound.
func WithOpTimeout(d time.Duration) Option { return func(s *Store) { s.opTimeout = d } }

func New(kv KV, ttl time.Duration, opts ...Option) *Store {
	s := &Store{kv: kv, ttl: ttl, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Put resolves the search and stores its items together with its status.
func (s *Store) Put(ctx context.Context, res *search.Search) (Snapshot, error) {
	fc := res.Collection(ctx).FeatureCollection()
	snap := Snapshot{
		Key:        res.Key(),
		Provider:   res.Provider(),
		Params:     res.Params(),
		CreatedAt:  s.now().UTC(),
		Status:     res.Status(),
		Collection: fc,
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot %s: %w", snap.Key, err)
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.kv.Set(opCtx, snap.Key, b, s.ttl); err != nil {
		return Snapshot{}, fmt.Errorf("store snapshot: %w", err)
	}
	s.log.DebugContext(ctx, "snapshot stored",
		slog.String("key", snap.Key),
		slog.Int("items", len(fc.Features)),
		slog.Duration("ttl", s.ttl),
	)
	return snap, nil
}

func (s *Store) Get(ctx context.Context, key string) (Snapshot, error) {
	if !keys.IsSearchKey(key) {
		return Snapshot{}, fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	b, err := s.kv.Get(opCtx, key)
	if errors.Is(err, redisstore.ErrNotFound) {
		return Snapshot{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, nil
}

// List returns stored keys for provider, or for all providers when empty.
func (s *Store) List(ctx context.Context, provider string, limit int) ([]string, error) {
	pattern := "stac:*"
	if provider != "" {
		pattern = "stac:" + provider + ":*"
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	ks, err := s.kv.Scan(opCtx, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := ks[:0]
	for _, k := range ks {
		if keys.IsSearchKey(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if !keys.IsSearchKey(key) {
		return fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.kv.Del(opCtx, key); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}
