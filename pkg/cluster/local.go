package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// LocalCluster is an in-process membership hub. Every member created from
// the same hub sees the others as remote nodes once joined. It backs
// single-node deployments (an empty cluster) and tests that need several
// nodes without a network.
type LocalCluster struct {
	mu    sync.RWMutex
	nodes map[uuid.UUID]*Node
}

// NewLocalCluster creates an empty in-process cluster hub.
func NewLocalCluster() *LocalCluster {
	return &LocalCluster{nodes: make(map[uuid.UUID]*Node)}
}

// NewMember creates a new unjoined member of this hub.
func (c *LocalCluster) NewMember() *LocalMembership {
	return &LocalMembership{
		hub: c,
		local: &Node{
			ID:         uuid.New(),
			Attributes: make(map[string][]byte),
		},
	}
}

// LocalMembership is one member of a LocalCluster.
type LocalMembership struct {
	hub *LocalCluster

	mu     sync.Mutex
	local  *Node
	joined bool
}

func (m *LocalMembership) LocalNode() *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneNode(m.local)
}

func (m *LocalMembership) SetLocalAttribute(name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.joined {
		return fmt.Errorf("cannot set attribute %q: node already joined the cluster", name)
	}
	m.local.Attributes[name] = value
	return nil
}

func (m *LocalMembership) Join(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.joined {
		return fmt.Errorf("node %s already joined", m.local.ID)
	}

	m.hub.mu.Lock()
	m.hub.nodes[m.local.ID] = cloneNode(m.local)
	m.hub.mu.Unlock()

	m.joined = true
	return nil
}

func (m *LocalMembership) RemoteNodes() []*Node {
	m.mu.Lock()
	localID := m.local.ID
	m.mu.Unlock()

	m.hub.mu.RLock()
	defer m.hub.mu.RUnlock()

	remotes := make([]*Node, 0, len(m.hub.nodes))
	for id, n := range m.hub.nodes {
		if id == localID {
			continue
		}
		remotes = append(remotes, cloneNode(n))
	}
	return remotes
}

func (m *LocalMembership) Leave(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.joined {
		return nil
	}

	m.hub.mu.Lock()
	delete(m.hub.nodes, m.local.ID)
	m.hub.mu.Unlock()

	m.joined = false
	return nil
}
