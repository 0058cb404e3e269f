package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrPoolClosed is returned by Dispatch after Close.
var ErrPoolClosed = errors.New("dispatch: closed")

// Mode selects how shards are run.
type Mode uint8

const (
	ModeSerial Mode = iota
	ModeParallel
)

func (m Mode) String() string {
	switch m {
	case ModeSerial:
		return "serial"
	case ModeParallel:
		return "parallel"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses "serial" or "parallel".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "serial":
		return ModeSerial, nil
	case "parallel":
		return ModeParallel, nil
	default:
		return 0, fmt.Errorf("dispatch: unknown mode %q", s)
	}
}

// Shard is one unit of work. Shards of a batch must not share mutable state
// except through disjoint indices.
type Shard func(ctx context.Context) error

// Dispatcher runs batches of shards.
type Dispatcher interface {
	// Dispatch runs every shard and returns the first error observed.
	// Shards already running when an error is observed run to completion;
	// their results are discarded. Nothing is retried.
	Dispatch(ctx context.Context, shards []Shard) error
	// Size is the number of shards that can run at once.
	Size() int
	Mode() Mode
	Close() error
}

// Map applies fn to every item through d and returns the results in item
// order. Items are split into min(len(items), d.Size()) contiguous shards.
func Map[In, Out any](ctx context.Context, d Dispatcher, items []In, fn func(ctx context.Context, i int, item In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(items))
	if len(items) == 0 {
		return out, nil
	}
	n := min(len(items), max(d.Size(), 1))
	shards := make([]Shard, 0, n)
	for s := 0; s < n; s++ {
		lo, hi := s*len(items)/n, (s+1)*len(items)/n
		shards = append(shards, func(ctx context.Context) error {
			for i := lo; i < hi; i++ {
				v, err := fn(ctx, i, items[i])
				if err != nil {
					return err
				}
				out[i] = v
			}
			return nil
		})
	}
	if err := d.Dispatch(ctx, shards); err != nil {
		return nil, err
	}
	return out, nil
}
