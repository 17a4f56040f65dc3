package fs

import (
	"encoding/json"
	"fmt"

	"github.com/meshfs/meshfs/pkg/cache"
	"github.com/meshfs/meshfs/pkg/cluster"
)

// NodeAttributeKey is the cluster attribute under which a node publishes
// the structural parameters of its file system instances. Every node
// reads this attribute from its peers to verify agreement before serving
// traffic.
const NodeAttributeKey = "meshfs.filesystems"

// Attributes is the published shape of one instance: the structural
// parameters that must agree across every node sharing a file system
// name, plus the cache names used to detect accidental cache sharing
// between differently named file systems.
type Attributes struct {
	Name                string          `json:"name"`
	BlockSize           int64           `json:"block_size"`
	GroupSize           int64           `json:"group_size"`
	MetaCacheName       string          `json:"meta_cache"`
	DataCacheName       string          `json:"data_cache"`
	DefaultMode         Mode            `json:"default_mode"`
	PathModes           map[string]Mode `json:"path_modes,omitempty"`
	FragmentizerEnabled bool            `json:"fragmentizer_enabled"`
}

// PublishedAttributes builds the attribute set this node should publish
// for cfgs. Daemon nodes and nodes without usable instances publish
// nothing (nil). Configurations whose data cache is absent locally or
// lacks a group-aware mapper are skipped rather than rejected here;
// validation reports those as hard errors separately.
func PublishedAttributes(cfgs []*Config, engine *cache.Engine, daemon bool) []Attributes {
	if daemon || len(cfgs) == 0 {
		return nil
	}

	var out []Attributes
	for _, cfg := range cfgs {
		dataCache, ok := engine.Cache(cfg.DataCacheName)
		if !ok {
			continue
		}
		mapper, ok := dataCache.Config().GroupAffinity()
		if !ok {
			continue
		}

		out = append(out, Attributes{
			Name:                cfg.Name,
			BlockSize:           cfg.BlockSize,
			GroupSize:           mapper.GroupSize(),
			MetaCacheName:       cfg.MetaCacheName,
			DataCacheName:       cfg.DataCacheName,
			DefaultMode:         cfg.DefaultMode,
			PathModes:           cfg.PathModes,
			FragmentizerEnabled: cfg.FragmentizerEnabled,
		})
	}
	return out
}

// AttachAttributes serializes attrs onto the local node before it joins
// the cluster. A nil or empty set attaches nothing.
func AttachAttributes(m cluster.Membership, attrs []Attributes) error {
	if len(attrs) == 0 {
		return nil
	}

	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode file system attributes: %w", err)
	}
	if err := m.SetLocalAttribute(NodeAttributeKey, raw); err != nil {
		return fmt.Errorf("attach file system attributes: %w", err)
	}
	return nil
}

// RemoteAttributes decodes the attribute set published by node. Nodes
// that publish nothing (daemons, nodes without instances) yield nil.
func RemoteAttributes(node *cluster.Node) ([]Attributes, error) {
	raw, ok := node.Attribute(NodeAttributeKey)
	if !ok {
		return nil, nil
	}

	var attrs []Attributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("decode file system attributes of node %s: %w", node.ID, err)
	}
	return attrs, nil
}
