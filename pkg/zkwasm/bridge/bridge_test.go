package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/logging"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var logged = &syncBuffer{}

func TestMain(m *testing.M) {
	Install(logging.NewText(logged, slog.LevelDebug))
	// Later installs are ignored.
	Install(logging.NewText(io.Discard, slog.LevelDebug))
	m.Run()
}

func TestGuardPassesThrough(t *testing.T) {
	if err := Guard(context.Background(), "noop", func() error { return nil }); err != nil {
		t.Fatalf("Guard = %v", err)
	}
	boom := errors.New("boom")
	if err := Guard(context.Background(), "fail", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Guard = %v, want boom", err)
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	err := Guard(context.Background(), "derive_address", func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Guard = %T %v, want *PanicError", err, err)
	}
	if !errors.Is(err, ErrPanic) {
		t.Fatal("PanicError should match ErrPanic")
	}
	if pe.Op != "derive_address" || len(pe.Stack) == 0 {
		t.Fatalf("PanicError = %+v", pe)
	}
	if strings.Contains(pe.Error(), "goroutine") {
		t.Fatalf("stack leaked into message: %q", pe.Error())
	}
	if !strings.Contains(logged.String(), "op=derive_address") {
		t.Fatalf("panic not reported: %q", logged.String())
	}
}

func TestPanicWithErrorValueUnwraps(t *testing.T) {
	cause := errors.New("cause")
	err := Guard(context.Background(), "op", func() error { panic(cause) })
	if !errors.Is(err, cause) || !errors.Is(err, ErrPanic) {
		t.Fatalf("err = %v", err)
	}
}

func TestCall(t *testing.T) {
	v, err := Call(context.Background(), "ok", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("Call = %d, %v", v, err)
	}
	v, err = Call(context.Background(), "panics", func() (int, error) { panic("bad") })
	if !errors.Is(err, ErrPanic) || v != 0 {
		t.Fatalf("Call = %d, %v", v, err)
	}
}

func TestGuardFromGoroutines(t *testing.T) {
	if !Installed() {
		t.Fatal("Install did not run")
	}
	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = Guard(context.Background(), "shard", func() error {
				if i%2 == 0 {
					panic(i)
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if (i%2 == 0) != errors.Is(err, ErrPanic) {
			t.Fatalf("shard %d: err = %v", i, err)
		}
	}
}
