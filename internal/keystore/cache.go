package keystore

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/program"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/logging"
)

// ErrProgramConflict is returned when a program ID is already bound to
// different source.
var ErrProgramConflict = errors.New("keystore: program ID already bound to different source; clear the cache before proceeding")

// KeyID names the key pair of one function of one exact program source.
func KeyID(p *program.Program, fn string) string {
	d := p.Digest()
	return fmt.Sprintf("%s/%s@%s", p.ID, fn, hex.EncodeToString(d[:8]))
}

// Synthesizer builds a key pair on a cache miss.
type Synthesizer func() (*engine.KeyPair, error)

// Cache holds key pairs in memory, optionally backed by a Store.
type Cache struct {
	backing Store
	logger  logging.Logger

	mu       sync.RWMutex
	keys     map[string]*engine.KeyPair
	programs map[string]*program.Program

	group singleflight.Group
}

// New returns a Cache. backing may be nil.
func New(backing Store, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		backing:  backing,
		logger:   logger,
		keys:     make(map[string]*engine.KeyPair),
		programs: make(map[string]*program.Program),
	}
}

// Bind records p under its ID. Binding the same source again is a no-op;
// binding different source under a known ID fails with ErrProgramConflict.
func (c *Cache) Bind(p *program.Program) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if have, ok := c.programs[p.ID]; ok {
		if !sameSource(have, p) {
			return fmt.Errorf("%w: %s", ErrProgramConflict, p.ID)
		}
		return nil
	}
	c.programs[p.ID] = p
	return nil
}

func sameSource(a, b *program.Program) bool {
	da, db := a.Digest(), b.Digest()
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

// Check reports ErrProgramConflict without binding p.
func (c *Cache) Check(p *program.Program) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if have, ok := c.programs[p.ID]; ok && !sameSource(have, p) {
		return fmt.Errorf("%w: %s", ErrProgramConflict, p.ID)
	}
	return nil
}

// Program returns the program bound to id.
func (c *Cache) Program(id string) (*program.Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[id]
	return p, ok
}

// Lookup returns a cached key pair without synthesizing.
func (c *Cache) Lookup(p *program.Program, fn string) (*engine.KeyPair, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kp, ok := c.keys[KeyID(p, fn)]
	return kp, ok
}

// Put stores kp in memory and in the backing store.
func (c *Cache) Put(ctx context.Context, p *program.Program, fn string, kp *engine.KeyPair) {
	id := KeyID(p, fn)
	c.mu.Lock()
	c.keys[id] = kp
	c.mu.Unlock()
	c.persist(ctx, id, kp)
}

// Get returns the key pair for p/fn, loading it from the backing store or
// calling synth on a miss. Concurrent misses for the same ID share one
// synthesis. When keep is false a freshly synthesized pair is returned but
// not retained.
func (c *Cache) Get(ctx context.Context, p *program.Program, fn string, keep bool, synth Synthesizer) (*engine.KeyPair, error) {
	if kp, ok := c.Lookup(p, fn); ok {
		return kp, nil
	}
	id := KeyID(p, fn)
	v, err, shared := c.group.Do(id, func() (any, error) {
		if kp, ok := c.load(ctx, id); ok {
			c.mu.Lock()
			c.keys[id] = kp
			c.mu.Unlock()
			return kp, nil
		}
		c.logger.Debug(ctx, "synthesizing keys", "key_id", id)
		kp, err := synth()
		if err != nil {
			return nil, err
		}
		if keep {
			c.Put(ctx, p, fn, kp)
		}
		return kp, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug(ctx, "shared key synthesis", "key_id", id)
	}
	return v.(*engine.KeyPair), nil
}

func (c *Cache) load(ctx context.Context, id string) (*engine.KeyPair, bool) {
	if c.backing == nil {
		return nil, false
	}
	raw, err := c.backing.Load(id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn(ctx, "key cache read failed", "key_id", id, "error", err)
		}
		return nil, false
	}
	kp, err := engine.UnmarshalKeyPair(raw)
	if err != nil {
		c.logger.Warn(ctx, "discarding unreadable cached keys", "key_id", id, "error", err)
		return nil, false
	}
	return kp, true
}

func (c *Cache) persist(ctx context.Context, id string, kp *engine.KeyPair) {
	if c.backing == nil {
		return
	}
	raw, err := kp.MarshalBinary()
	if err == nil {
		err = c.backing.Save(id, raw)
	}
	if err != nil {
		c.logger.Warn(ctx, "key cache write failed", "key_id", id, "error", err)
	}
}

// Len returns the number of key pairs held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Clear drops all key pairs and program bindings, including the backing
// store's contents.
func (c *Cache) Clear() error {
	c.mu.Lock()
	clear(c.keys)
	clear(c.programs)
	c.mu.Unlock()
	if c.backing != nil {
		return c.backing.Clear()
	}
	return nil
}
