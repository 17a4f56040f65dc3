package fs

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/google/uuid"

	"github.com/meshfs/meshfs/pkg/cluster"
)

// CheckConsistency verifies that this node's published file system
// attributes structurally agree with every remote node's. Two kinds of
// disagreement fail the check:
//
//   - differently named file systems sharing a metadata or data cache
//     name, which would silently interleave their state;
//   - same-named file systems disagreeing on a structural parameter,
//     which would scatter blocks and break placement.
//
// Nodes that publish no attributes are ignored on either side.
func CheckConsistency(localID uuid.UUID, local []Attributes, remotes []*cluster.Node) error {
	if len(local) == 0 {
		return nil
	}

	for _, node := range remotes {
		remote, err := RemoteAttributes(node)
		if err != nil {
			return err
		}
		if len(remote) == 0 {
			continue
		}

		for _, l := range local {
			for _, r := range remote {
				if err := compareAttributes(localID, node.ID, l, r); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func compareAttributes(localID, remoteID uuid.UUID, l, r Attributes) error {
	if l.Name != r.Name {
		if l.MetaCacheName == r.MetaCacheName {
			return &ConsistencyError{
				LocalNodeID: localID, RemoteNodeID: remoteID,
				Filesystem: l.Name, RemoteFilesystem: r.Name,
				Field: "metadata cache name", LocalValue: l.MetaCacheName, RemoteValue: r.MetaCacheName,
			}
		}
		if l.DataCacheName == r.DataCacheName {
			return &ConsistencyError{
				LocalNodeID: localID, RemoteNodeID: remoteID,
				Filesystem: l.Name, RemoteFilesystem: r.Name,
				Field: "data cache name", LocalValue: l.DataCacheName, RemoteValue: r.DataCacheName,
			}
		}
		return nil
	}

	mismatch := func(field, lv, rv string) error {
		return &ConsistencyError{
			LocalNodeID: localID, RemoteNodeID: remoteID,
			Filesystem: l.Name, RemoteFilesystem: r.Name,
			Field: field, LocalValue: lv, RemoteValue: rv,
		}
	}

	if l.BlockSize != r.BlockSize {
		return mismatch("block size", strconv.FormatInt(l.BlockSize, 10), strconv.FormatInt(r.BlockSize, 10))
	}
	if l.GroupSize != r.GroupSize {
		return mismatch("affinity group size", strconv.FormatInt(l.GroupSize, 10), strconv.FormatInt(r.GroupSize, 10))
	}
	if l.MetaCacheName != r.MetaCacheName {
		return mismatch("metadata cache name", l.MetaCacheName, r.MetaCacheName)
	}
	if l.DataCacheName != r.DataCacheName {
		return mismatch("data cache name", l.DataCacheName, r.DataCacheName)
	}
	if l.DefaultMode != r.DefaultMode {
		return mismatch("default mode", string(l.DefaultMode), string(r.DefaultMode))
	}
	if !maps.Equal(l.PathModes, r.PathModes) {
		return mismatch("path modes", fmt.Sprintf("%v", l.PathModes), fmt.Sprintf("%v", r.PathModes))
	}
	if l.FragmentizerEnabled != r.FragmentizerEnabled {
		return mismatch("fragmentizer enabled",
			strconv.FormatBool(l.FragmentizerEnabled), strconv.FormatBool(r.FragmentizerEnabled))
	}
	return nil
}
