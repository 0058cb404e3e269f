// Package mocknode is an in-memory node for tests. A Node can be used
// directly as a node.Client or served over HTTP with httptest.
package mocknode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/node"
)

// Node holds programs, a state root and every broadcast transaction.
// Broadcasting a deployment makes its program available to Program.
type Node struct {
	mu        sync.RWMutex
	stateRoot string
	programs  map[string]string
	txs       [][]byte
}

func New() *Node {
	return &Node{stateRoot: "sr1genesis", programs: make(map[string]string)}
}

// SetStateRoot replaces the state root.
func (n *Node) SetStateRoot(root string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stateRoot = root
}

// Deploy stores program source under id.
func (n *Node) Deploy(id, source string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.programs[id] = source
}

// Transactions returns copies of all broadcast transactions.
func (n *Node) Transactions() [][]byte {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([][]byte, len(n.txs))
	for i, tx := range n.txs {
		out[i] = append([]byte(nil), tx...)
	}
	return out
}

func (n *Node) StateRoot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stateRoot, nil
}

func (n *Node) Program(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	src, ok := n.programs[id]
	if !ok {
		return "", fmt.Errorf("%w: program %s", node.ErrNotFound, id)
	}
	return src, nil
}

func (n *Node) Broadcast(ctx context.Context, tx []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var deployment struct {
		Program string `json:"program"`
		Source  string `json:"source"`
	}
	if err := json.Unmarshal(tx, &deployment); err != nil {
		return "", fmt.Errorf("%w: transaction is not JSON", node.ErrUnavailable)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if deployment.Program != "" && deployment.Source != "" {
		n.programs[deployment.Program] = deployment.Source
	}
	n.txs = append(n.txs, append([]byte(nil), tx...))
	sum := sha256.Sum256(tx)
	return hex.EncodeToString(sum[:]), nil
}

// ServeHTTP implements the REST paths used by node.HTTPClient.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		out any
		err error
	)
	switch {
	case r.Method == http.MethodGet && r.URL.Path == node.PathStateRoot:
		out, err = n.StateRoot(r.Context())
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, node.PathProgram):
		out, err = n.Program(r.Context(), strings.TrimPrefix(r.URL.Path, node.PathProgram))
	case r.Method == http.MethodPost && r.URL.Path == node.PathBroadcast:
		var body []byte
		body, err = io.ReadAll(r.Body)
		if err == nil {
			out, err = n.Broadcast(r.Context(), body)
		}
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), node.ErrNotFound.Error()) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

var _ node.Client = (*Node)(nil)
