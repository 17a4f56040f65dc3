// Package cluster provides node identity and membership for a MeshFS
// cluster. The coordinator uses it for exactly two things: attaching
// attribute blobs to the local node before it joins, and enumerating
// remote nodes (with their attribute blobs) after it has joined.
//
// Two implementations ship with the node: a static seed-list membership
// that exchanges node identities over HTTP, and an in-process membership
// for single-node deployments and tests.
package cluster

import (
	"context"

	"github.com/google/uuid"
)

// Node is one cluster member as seen by this node. Attributes are
// attached before the node joins and are immutable afterwards; remote
// nodes compare them, never mutate them.
type Node struct {
	ID         uuid.UUID         `json:"id"`
	Addr       string            `json:"addr"`
	Attributes map[string][]byte `json:"attributes"`
}

// Attribute returns the named attribute blob and whether it is set.
func (n *Node) Attribute(name string) ([]byte, bool) {
	v, ok := n.Attributes[name]
	return v, ok
}

// Membership is the discovery-layer contract the coordinator relies on.
//
// The lifecycle is strict: attributes are attached first, Join is called
// once, and only after Join returns are remote nodes (and their
// attributes) visible.
type Membership interface {
	// LocalNode returns this node's identity.
	LocalNode() *Node

	// SetLocalAttribute attaches an attribute blob to the local node.
	// It must be called before Join; afterwards it fails.
	SetLocalAttribute(name string, value []byte) error

	// Join makes this node visible to the cluster and retrieves the
	// currently visible members.
	Join(ctx context.Context) error

	// RemoteNodes returns all currently visible members other than the
	// local node. The returned slice is a copy.
	RemoteNodes() []*Node

	// Leave withdraws this node from the cluster and releases transport
	// resources. Safe to call even if Join failed or was never called.
	Leave(ctx context.Context) error
}

func cloneNode(n *Node) *Node {
	attrs := make(map[string][]byte, len(n.Attributes))
	for k, v := range n.Attributes {
		attrs[k] = v
	}
	return &Node{ID: n.ID, Addr: n.Addr, Attributes: attrs}
}
