package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshfs/meshfs/internal/logger"
)

// StaticConfig configures seed-list membership.
type StaticConfig struct {
	// ListenAddr is the address the membership endpoint binds to,
	// e.g. "0.0.0.0:7700".
	ListenAddr string

	// AdvertiseAddr is the address other nodes use to reach this one.
	// Defaults to ListenAddr.
	AdvertiseAddr string

	// Seeds are membership endpoints of already-known nodes. Unreachable
	// seeds are skipped: nodes may start in any order, and later starters
	// announce themselves to whoever is up.
	Seeds []string

	// JoinTimeout bounds each seed exchange. Defaults to 10s.
	JoinTimeout time.Duration
}

// StaticMembership implements Membership over a static seed list. On
// Join the node starts an HTTP endpoint serving its identity, announces
// itself to every seed, and merges the member lists the seeds return.
// Attribute blobs travel inside the node identity, so remote attributes
// are available as soon as the exchange completes.
type StaticMembership struct {
	cfg StaticConfig

	mu      sync.RWMutex
	local   *Node
	remotes map[uuid.UUID]*Node
	joined  bool

	ln  net.Listener
	srv *http.Server
}

// NewStatic creates an unjoined seed-list membership with a fresh node
// identity.
func NewStatic(cfg StaticConfig) (*StaticMembership, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("cluster: listen address is required")
	}
	if cfg.AdvertiseAddr == "" {
		cfg.AdvertiseAddr = cfg.ListenAddr
	}
	if cfg.JoinTimeout == 0 {
		cfg.JoinTimeout = 10 * time.Second
	}

	return &StaticMembership{
		cfg: cfg,
		local: &Node{
			ID:         uuid.New(),
			Addr:       cfg.AdvertiseAddr,
			Attributes: make(map[string][]byte),
		},
		remotes: make(map[uuid.UUID]*Node),
	}, nil
}

func (m *StaticMembership) LocalNode() *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneNode(m.local)
}

func (m *StaticMembership) SetLocalAttribute(name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.joined {
		return fmt.Errorf("cannot set attribute %q: node already joined the cluster", name)
	}
	m.local.Attributes[name] = value
	return nil
}

func (m *StaticMembership) Join(ctx context.Context) error {
	m.mu.Lock()
	if m.joined {
		m.mu.Unlock()
		return fmt.Errorf("node %s already joined", m.local.ID)
	}
	m.mu.Unlock()

	if err := m.serve(); err != nil {
		return err
	}

	for _, seed := range m.cfg.Seeds {
		if err := m.exchange(ctx, seed); err != nil {
			logger.Warn("Cluster seed %s unreachable: %v", seed, err)
		}
	}

	m.mu.Lock()
	m.joined = true
	n := len(m.remotes)
	m.mu.Unlock()

	logger.Info("Node %s joined cluster (%d remote node(s) visible)", m.local.ID, n)
	return nil
}

func (m *StaticMembership) RemoteNodes() []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]*Node, 0, len(m.remotes))
	for _, n := range m.remotes {
		nodes = append(nodes, cloneNode(n))
	}
	return nodes
}

func (m *StaticMembership) Leave(ctx context.Context) error {
	m.mu.Lock()
	srv := m.srv
	m.srv = nil
	m.joined = false
	m.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// serve binds the membership endpoint and starts answering identity and
// join requests.
func (m *StaticMembership) serve() error {
	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("cluster: listen on %s: %w", m.cfg.ListenAddr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/cluster/node", m.handleNode)
	mux.HandleFunc("/cluster/join", m.handleJoin)

	srv := &http.Server{Handler: mux}

	m.mu.Lock()
	m.ln = ln
	m.srv = srv
	m.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("Cluster membership endpoint failed: %v", err)
		}
	}()

	logger.Debug("Cluster membership endpoint listening on %s", ln.Addr())
	return nil
}

// handleNode returns the local node identity.
func (m *StaticMembership) handleNode(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	local := cloneNode(m.local)
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(local); err != nil {
		logger.Debug("Encoding node identity failed: %v", err)
	}
}

// handleJoin records an announcing node and returns every member this
// node knows about, itself included.
func (m *StaticMembership) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var joining Node
	if err := json.NewDecoder(r.Body).Decode(&joining); err != nil {
		http.Error(w, fmt.Sprintf("invalid node: %v", err), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	if joining.ID != m.local.ID {
		m.remotes[joining.ID] = cloneNode(&joining)
	}
	known := make([]*Node, 0, len(m.remotes)+1)
	known = append(known, cloneNode(m.local))
	for _, n := range m.remotes {
		known = append(known, cloneNode(n))
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(known); err != nil {
		logger.Debug("Encoding member list failed: %v", err)
	}
}

// exchange announces the local node to one seed and merges the member
// list it returns.
func (m *StaticMembership) exchange(ctx context.Context, seed string) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.JoinTimeout)
	defer cancel()

	m.mu.RLock()
	body, err := json.Marshal(m.local)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal local node: %w", err)
	}

	url := fmt.Sprintf("http://%s/cluster/join", seed)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("seed returned status %d", resp.StatusCode)
	}

	var members []*Node
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		return fmt.Errorf("decode member list: %w", err)
	}

	m.mu.Lock()
	for _, n := range members {
		if n.ID == m.local.ID {
			continue
		}
		m.remotes[n.ID] = cloneNode(n)
	}
	m.mu.Unlock()

	return nil
}
