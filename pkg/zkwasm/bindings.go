package zkwasm

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/keystore"
	"github.com/zkwasm/zkwasm-go/internal/program"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/bridge"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/dispatch"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/logging"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/node"
)

// Bindings is the host-facing surface. Every method validates its input
// before any engine work, runs the engine through the Context's dispatcher
// and returns either a complete result or an *Error. Methods are safe for
// concurrent use.
type Bindings struct {
	ctx    *Context
	engine engine.Engine
	keys   *keystore.Cache
	node   node.Client
	rng    io.Reader
	logger logging.Logger

	credits *program.Program
	closed  atomic.Bool
}

// Option customizes Load.
type Option func(*options)

type options struct {
	logger logging.Logger
	node   node.Client
	rng    io.Reader
	store  keystore.Store
	engine engine.Engine
}

// WithLogger routes diagnostics, including recovered panics, to logger. It
// takes precedence over Config.LogLevel.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNode replaces the node client built from Config.NodeURL.
func WithNode(c node.Client) Option {
	return func(o *options) { o.node = c }
}

// WithRandom replaces crypto/rand as the source of key and nonce
// randomness. r must be safe for concurrent use.
func WithRandom(r io.Reader) Option {
	return func(o *options) { o.rng = r }
}

// WithKeyStore replaces the key store built from Config.KeyCacheDir.
func WithKeyStore(s keystore.Store) Option {
	return func(o *options) { o.store = s }
}

func withEngine(e engine.Engine) Option {
	return func(o *options) { o.engine = e }
}

// Load installs the panic bridge, initializes the process Context and
// returns the bindings. It is the module-load entry point for every host.
func Load(cfg Config, opts ...Option) (*Bindings, error) {
	const op = "load"
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidInput, Op: op, Err: err}
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		logger, err := logging.ForLevel(os.Stderr, cfg.LogLevel)
		if err != nil {
			return nil, &Error{Kind: KindInvalidInput, Op: op, Err: err}
		}
		o.logger = logger
	}
	bridge.Install(o.logger)

	ctx, err := initialize(cfg.Mode, cfg.PoolSize, o.logger)
	if err != nil {
		return nil, err
	}
	b, err := newBindings(ctx, cfg, o)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	o.logger.Info(context.Background(), "zkwasm loaded",
		"mode", ctx.CurrentMode().String(), "pool_size", ctx.PoolSize(), "version", Version)
	return b, nil
}

func newBindings(ctx *Context, cfg Config, o options) (*Bindings, error) {
	const op = "load"
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	if o.engine == nil {
		o.engine = engine.New()
	}
	if o.rng == nil {
		o.rng = rand.Reader
	}
	if o.store == nil && cfg.KeyCacheDir != "" {
		dir, err := keystore.NewDir(cfg.KeyCacheDir)
		if err != nil {
			return nil, &Error{Kind: KindInvalidInput, Op: op, Err: err}
		}
		o.store = dir
	}
	if o.node == nil && cfg.NodeURL != "" {
		nodeOpts := []node.Option{node.WithTimeout(cfg.NodeTimeout)}
		if cfg.NodeHTTP3 {
			nodeOpts = append(nodeOpts, node.WithHTTP3(&tls.Config{MinVersion: tls.VersionTLS13}))
		}
		c, err := node.NewHTTPClient(cfg.NodeURL, nodeOpts...)
		if err != nil {
			return nil, &Error{Kind: KindInvalidInput, Op: op, Err: err}
		}
		o.node = c
	}

	b := &Bindings{
		ctx:     ctx,
		engine:  o.engine,
		keys:    keystore.New(o.store, o.logger),
		node:    o.node,
		rng:     o.rng,
		logger:  o.logger,
		credits: parseCredits(),
	}
	if err := b.keys.Bind(b.credits); err != nil {
		return nil, RemapError(op, err)
	}
	return b, nil
}

// Context returns the execution context the bindings run on.
func (b *Bindings) Context() *Context {
	return b.ctx
}

// ClearKeyCache drops cached keys and program bindings, including persisted
// keys. The built-in credits program stays bound.
func (b *Bindings) ClearKeyCache() error {
	const op = "clear_key_cache"
	if b.closed.Load() {
		return &Error{Kind: KindInvalidInput, Op: op, Err: ErrClosed}
	}
	if err := b.keys.Clear(); err != nil {
		return RemapError(op, err)
	}
	return RemapError(op, b.keys.Bind(b.credits))
}

// Close releases the Context. Calls made after Close fail with ErrClosed.
func (b *Bindings) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.ctx.Close()
}

// guarded runs one entry point: closed check, panic bridge, error remap.
func guarded[T any](ctx context.Context, b *Bindings, op string, fn func() (T, error)) (T, error) {
	var zero T
	if b.closed.Load() {
		return zero, &Error{Kind: KindInvalidInput, Op: op, Err: ErrClosed}
	}
	out, err := bridge.Call(ctx, op, fn)
	if err != nil {
		err = RemapError(op, err)
		if KindOf(err) == KindInternal {
			b.logger.Warn(ctx, "operation failed", "op", op, "error", err)
		}
		return zero, err
	}
	return out, nil
}

// run executes one unit of engine work through the dispatcher.
func run[T any](ctx context.Context, b *Bindings, fn func(ctx context.Context) (T, error)) (T, error) {
	out, err := dispatch.Map(ctx, b.ctx.Dispatcher(), []struct{}{{}}, func(ctx context.Context, _ int, _ struct{}) (T, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out[0], nil
}

// resolveProgram parses inline source or looks a program ID up in the
// cache and then on the node.
func (b *Bindings) resolveProgram(ctx context.Context, op, src string) (*program.Program, error) {
	if src == "" {
		return nil, invalid(op, "program is required")
	}
	if !program.ValidID(src) {
		return program.Parse(src)
	}
	if p, ok := b.keys.Program(src); ok {
		return p, nil
	}
	if b.node == nil {
		return nil, fmt.Errorf("%w: program %s is not cached", ErrNoNode, src)
	}
	source, err := b.node.Program(ctx, src)
	if err != nil {
		return nil, err
	}
	p, err := program.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("node program %s: %w", src, err)
	}
	if p.ID != src {
		return nil, fmt.Errorf("%w: node returned program %s for %s", node.ErrUnavailable, p.ID, src)
	}
	return p, nil
}

// keysFor returns the key pair for p/fn. External keys are imported; other
// pairs come from the cache or are synthesized. Cache writes happen on the
// calling goroutine once the engine work is done.
func (b *Bindings) keysFor(ctx context.Context, p *program.Program, fn string, keep bool, ext *externalKeys) (*engine.KeyPair, error) {
	kp, err := run(ctx, b, func(ctx context.Context) (*engine.KeyPair, error) {
		return b.loadKeys(ctx, p, fn, ext)
	})
	if err != nil {
		return nil, err
	}
	b.keep(ctx, p, fn, kp, keep)
	return kp, nil
}

func (b *Bindings) loadKeys(ctx context.Context, p *program.Program, fn string, ext *externalKeys) (*engine.KeyPair, error) {
	if ext != nil {
		return b.engine.ImportKeys(p, fn, ext.proving, ext.verifying)
	}
	return b.keys.Get(ctx, p, fn, false, func() (*engine.KeyPair, error) {
		return b.engine.Synthesize(p, fn)
	})
}

func (b *Bindings) keep(ctx context.Context, p *program.Program, fn string, kp *engine.KeyPair, keep bool) {
	if !keep {
		return
	}
	if _, ok := b.keys.Lookup(p, fn); !ok {
		b.keys.Put(ctx, p, fn, kp)
	}
}

type externalKeys struct {
	proving, verifying []byte
}

// feeKeys resolves the keys for the credits fee call. Keys already held for
// it take precedence over supplied ones.
func (b *Bindings) feeKeys(ctx context.Context, ext *externalKeys) *externalKeys {
	if ext == nil {
		return nil
	}
	if _, ok := b.keys.Lookup(b.credits, feeFunction); ok {
		b.logger.Info(ctx, "fee keys supplied but cached keys exist; using cached keys")
		return nil
	}
	return ext
}

// heldVerifyingKey returns the verifying key this session trusts for
// t's function, if it holds one. Credits keys are always held; they are
// loaded or synthesized on first use.
func (b *Bindings) heldVerifyingKey(ctx context.Context, t *engine.Transition) ([]byte, bool, error) {
	var p *program.Program
	if t.Program == CreditsProgramID {
		p = b.credits
	} else if p, _ = b.keys.Program(t.Program); p == nil {
		return nil, false, nil
	}
	if _, err := p.Function(t.Function); err != nil {
		return nil, false, fmt.Errorf("%w: %s has no function %s", engine.ErrProofRejected, t.Program, t.Function)
	}
	kp, ok := b.keys.Lookup(p, t.Function)
	if !ok && p == b.credits {
		var err error
		if kp, err = b.keysFor(ctx, p, t.Function, true, nil); err != nil {
			return nil, false, err
		}
		ok = true
	}
	if !ok {
		return nil, false, nil
	}
	vk, err := kp.VerifyingKeyBytes()
	if err != nil {
		return nil, false, err
	}
	return vk, true, nil
}
