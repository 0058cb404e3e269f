package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/bridge"
)

// Serial runs shards inline on the calling goroutine, in order.
type Serial struct {
	closed atomic.Bool
}

func NewSerial() *Serial {
	return &Serial{}
}

func (s *Serial) Dispatch(ctx context.Context, shards []Shard) error {
	if s.closed.Load() {
		return ErrPoolClosed
	}
	for _, shard := range shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := bridge.Guard(ctx, "shard", func() error { return shard(ctx) }); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serial) Size() int { return 1 }

func (s *Serial) Mode() Mode { return ModeSerial }

func (s *Serial) Close() error {
	s.closed.Store(true)
	return nil
}
