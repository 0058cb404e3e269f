package keystore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// ErrNotFound is returned by Store.Load for unknown IDs.
var ErrNotFound = errors.New("keystore: not found")

// Store persists encoded key pairs.
type Store interface {
	Load(id string) ([]byte, error)
	Save(id string, data []byte) error
	Clear() error
}

// Memory is a Store backed by a map.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Save(id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.data)
	return nil
}

const fileSuffix = ".keys.lz4"

// Dir is a Store writing one lz4-compressed file per ID.
type Dir struct {
	root string
}

// NewDir creates root if needed and returns a Store rooted there.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("keystore: empty directory")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("keystore: create %s: %w", root, err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(id string) string {
	sum := sha256.Sum256([]byte(id))
	return filepath.Join(d.root, hex.EncodeToString(sum[:16])+fileSuffix)
}

var (
	writerPool = sync.Pool{New: func() any { return lz4.NewWriter(nil) }}
	readerPool = sync.Pool{New: func() any { return lz4.NewReader(nil) }}
)

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := writerPool.Get().(*lz4.Writer)
	defer writerPool.Put(w)
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r := readerPool.Get().(*lz4.Reader)
	defer readerPool.Put(r)
	r.Reset(bytes.NewReader(data))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Dir) Load(id string) ([]byte, error) {
	raw, err := os.ReadFile(d.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: read: %w", err)
	}
	data, err := decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("keystore: decompress %s: %w", id, err)
	}
	return data, nil
}

func (d *Dir) Save(id string, data []byte) error {
	packed, err := compress(data)
	if err != nil {
		return fmt.Errorf("keystore: compress %s: %w", id, err)
	}
	tmp, err := os.CreateTemp(d.root, "tmp-*")
	if err != nil {
		return fmt.Errorf("keystore: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(packed); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("keystore: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path(id)); err != nil {
		return fmt.Errorf("keystore: rename: %w", err)
	}
	return nil
}

func (d *Dir) Clear() error {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return fmt.Errorf("keystore: list: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, e.Name())); err != nil {
			return fmt.Errorf("keystore: remove: %w", err)
		}
	}
	return nil
}
