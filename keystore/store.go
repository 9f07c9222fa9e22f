package keystore

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the number of keys generated between yields.
const DefaultChunkSize = 100

// Store is the in-memory set of managed accounts.
type Store struct {
	mu        sync.RWMutex
	addrs     []*Address
	logger    *zap.Logger
	chunkSize int
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for audit events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChunkSize sets the generation chunk size.
func WithChunkSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger:    zap.NewNop(),
		chunkSize: DefaultChunkSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate creates count random accounts and appends them to the store.
//
// Keys are produced in chunks; inside a chunk they are generated concurrently
// since each one is independent, and control is yielded between chunks. The
// store is only modified once every key exists.
func (s *Store) Generate(ctx context.Context, count int) ([]*Address, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	out := make([]*Address, count)
	for start := 0; start < count; start += s.chunkSize {
		end := min(start+s.chunkSize, count)

		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := start; i < end; i++ {
			g.Go(func() error {
				key, err := NewSecret()
				if err != nil {
					return err
				}
				out[i] = newAddress(key)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation interrupted after %d keys: %w", end, err)
		}
		runtime.Gosched()
		if end%10_000 == 0 {
			s.logger.Debug("addresses generated", zap.Int("count", end))
		}
	}

	s.mu.Lock()
	s.addrs = append(s.addrs, out...)
	s.mu.Unlock()

	s.logger.Info("generated addresses", zap.Int("count", count))
	return out, nil
}

// ImportPrivateKeys imports one hex private key per line. Blank and invalid
// lines are skipped; the number of imported accounts is returned.
func (s *Store) ImportPrivateKeys(text string) int {
	var imported []*Address
	skipped := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, err := ParseSecret(line)
		if err != nil {
			skipped++
			continue
		}
		imported = append(imported, newAddress(key))
	}

	s.add(imported)
	s.logger.Info("imported private keys", zap.Int("count", len(imported)), zap.Int("skipped", skipped))
	return len(imported)
}

func (s *Store) add(list []*Address) {
	if len(list) == 0 {
		return
	}
	s.mu.Lock()
	s.addrs = append(s.addrs, list...)
	s.mu.Unlock()
}

// List returns the managed accounts in insertion order.
func (s *Store) List() []*Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Address(nil), s.addrs...)
}

// Len returns the number of managed accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.addrs)
}

// Selected returns the selected accounts in insertion order.
func (s *Store) Selected() []*Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Address
	for _, a := range s.addrs {
		if a.IsSelected {
			out = append(out, a)
		}
	}
	return out
}

// Toggle flips the selection of the account at index i.
func (s *Store) Toggle(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.addrs) {
		return fmt.Errorf("index %d out of range", i)
	}
	s.addrs[i].IsSelected = !s.addrs[i].IsSelected
	return nil
}

// SelectAll sets the selection of every account.
func (s *Store) SelectAll(selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.addrs {
		a.IsSelected = selected
	}
}

// SelectAddresses selects exactly the accounts whose address is in list
// (case-insensitive) and returns how many matched.
func (s *Store) SelectAddresses(list []string) int {
	want := make(map[string]struct{}, len(list))
	for _, a := range list {
		want[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.addrs {
		_, a.IsSelected = want[strings.ToLower(a.Address)]
		if a.IsSelected {
			n++
		}
	}
	return n
}

// Remove deletes the account at index i and destroys its key.
func (s *Store) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.addrs) {
		return fmt.Errorf("index %d out of range", i)
	}
	s.addrs[i].Key.Destroy()
	s.addrs = append(s.addrs[:i], s.addrs[i+1:]...)
	return nil
}

// Clear removes every account and destroys the keys.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.addrs {
		a.Key.Destroy()
	}
	s.addrs = nil
}
