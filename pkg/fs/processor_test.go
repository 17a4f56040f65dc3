package fs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshfs/meshfs/pkg/cache"
	"github.com/meshfs/meshfs/pkg/cluster"
)

// startNode runs the full lifecycle a node would: publish, start, join,
// cluster-ready. Cleanup stops the processor.
func startNode(t *testing.T, p *Processor, m cluster.Membership) {
	t.Helper()

	require.NoError(t, p.PublishAttributes())
	require.NoError(t, p.Start())
	require.NoError(t, m.Join(context.Background()))
	require.NoError(t, p.OnClusterReady())
	t.Cleanup(func() { p.Stop(true) })
}

func TestProcessorLifecycle(t *testing.T) {
	engine := newFsEngine(t, "metaA", "dataA", 512)
	member := cluster.NewLocalCluster().NewMember()

	cfg := &Config{
		Name:          "fsA",
		BlockSize:     65536,
		GroupSize:     512,
		MetaCacheName: "metaA",
		DataCacheName: "dataA",
		DefaultMode:   ModePrimary,
	}
	p := NewProcessor([]*Config{cfg}, engine, member, Options{MaxHeap: testHeap})

	assert.Equal(t, StateStopped, p.State())
	startNode(t, p, member)
	assert.Equal(t, StateRunning, p.State())

	fsys, ok := p.FileSystem("fsA")
	require.True(t, ok)
	assert.Equal(t, "fsA", fsys.Name())

	_, ok = p.FileSystem("nope")
	assert.False(t, ok)

	ctx := context.Background()
	require.NoError(t, fsys.Create(ctx, "/hello.txt", []byte("hello meshfs")))
	data, err := fsys.Read(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello meshfs"), data)

	eps := p.Endpoints("fsA")
	require.Len(t, eps, 1)
	assert.Equal(t, "tcp", eps[0].Proto)
	assert.NotEmpty(t, eps[0].Addr)

	require.NoError(t, p.Stop(false))
	assert.Equal(t, StateStopped, p.State())

	// Handles die with the node.
	err = fsys.Create(ctx, "/late.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrReleased)

	// Stop is idempotent.
	require.NoError(t, p.Stop(false))
	require.NoError(t, p.Stop(true))
}

func TestProcessorStartFailsOnInvalidConfig(t *testing.T) {
	engine := newFsEngine(t, "metaA", "dataA", 512)
	member := cluster.NewLocalCluster().NewMember()

	bad := &Config{
		Name:          "fsA",
		MetaCacheName: "metaA",
		DataCacheName: "missing",
	}
	p := NewProcessor([]*Config{bad}, engine, member, Options{MaxHeap: testHeap})

	err := p.Start()
	require.Error(t, err)

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, StateStopped, p.State())
	assert.Empty(t, p.FileSystems())
}

func TestProcessorAllOrNothing(t *testing.T) {
	engine := newTestEngine(t,
		newPlainCache(t, "metaA"), newGroupCache(t, "dataA", 512),
		newPlainCache(t, "metaB"))
	member := cluster.NewLocalCluster().NewMember()

	good := &Config{Name: "fsA", MetaCacheName: "metaA", DataCacheName: "dataA", GroupSize: 512}
	bad := &Config{Name: "fsB", MetaCacheName: "metaB", DataCacheName: "dataB"}

	p := NewProcessor([]*Config{good, bad}, engine, member, Options{MaxHeap: testHeap})
	require.Error(t, p.Start())

	// The valid instance must not survive its sibling's failure.
	assert.Empty(t, p.FileSystems())
	assert.Equal(t, StateStopped, p.State())
}

func TestProcessorFailedManagerStartLeavesNothingRegistered(t *testing.T) {
	engine := newTestEngine(t,
		newPlainCache(t, "metaA"), newGroupCache(t, "dataA", 512),
		newPlainCache(t, "metaB"), newGroupCache(t, "dataB", 512))
	member := cluster.NewLocalCluster().NewMember()

	good := &Config{Name: "fsA", MetaCacheName: "metaA", DataCacheName: "dataA", GroupSize: 512}
	// Passes validation but its server manager cannot bind.
	bad := &Config{
		Name: "fsB", MetaCacheName: "metaB", DataCacheName: "dataB", GroupSize: 512,
		EndpointAddr: "127.0.0.1:notaport",
	}

	p := NewProcessor([]*Config{good, bad}, engine, member, Options{MaxHeap: testHeap})

	err := p.Start()
	require.Error(t, err)

	var lerr *LifecycleError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "fsB", lerr.Filesystem)

	// Neither the failed instance nor its already-started sibling may be
	// reachable through the registry afterwards.
	assert.Empty(t, p.FileSystems())
	_, ok := p.FileSystem("fsA")
	assert.False(t, ok)
	assert.Equal(t, StateStopped, p.State())
}

func TestProcessorConsistencyGate(t *testing.T) {
	hub := cluster.NewLocalCluster()

	// Node 1: fsA on metaA/dataA.
	engine1 := newFsEngine(t, "metaA", "dataA", 512)
	member1 := hub.NewMember()
	cfgA := &Config{Name: "fsA", MetaCacheName: "metaA", DataCacheName: "dataA", GroupSize: 512}
	p1 := NewProcessor([]*Config{cfgA}, engine1, member1, Options{MaxHeap: testHeap})
	startNode(t, p1, member1)

	// Node 2: differently named fsB reusing dataA.
	engine2 := newTestEngine(t,
		newPlainCache(t, "metaB"), newGroupCache(t, "dataA", 512))
	member2 := hub.NewMember()
	cfgB := &Config{Name: "fsB", MetaCacheName: "metaB", DataCacheName: "dataA", GroupSize: 512}
	p2 := NewProcessor([]*Config{cfgB}, engine2, member2, Options{MaxHeap: testHeap})

	require.NoError(t, p2.PublishAttributes())
	require.NoError(t, p2.Start())
	require.NoError(t, member2.Join(context.Background()))

	err := p2.OnClusterReady()
	require.Error(t, err)

	var cerr *ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "data cache name", cerr.Field)

	require.NoError(t, p2.Stop(true))
}

func TestProcessorConsistencyGateStructuralMismatch(t *testing.T) {
	hub := cluster.NewLocalCluster()

	engine1 := newFsEngine(t, "metaA", "dataA", 512)
	member1 := hub.NewMember()
	p1 := NewProcessor([]*Config{{
		Name: "fsA", BlockSize: 65536, GroupSize: 512,
		MetaCacheName: "metaA", DataCacheName: "dataA",
	}}, engine1, member1, Options{MaxHeap: testHeap})
	startNode(t, p1, member1)

	engine2 := newFsEngine(t, "metaA", "dataA", 512)
	member2 := hub.NewMember()
	p2 := NewProcessor([]*Config{{
		Name: "fsA", BlockSize: 131072, GroupSize: 512,
		MetaCacheName: "metaA", DataCacheName: "dataA",
	}}, engine2, member2, Options{MaxHeap: testHeap})

	require.NoError(t, p2.PublishAttributes())
	require.NoError(t, p2.Start())
	require.NoError(t, member2.Join(context.Background()))

	err := p2.OnClusterReady()
	require.Error(t, err)

	var cerr *ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "block size", cerr.Field)

	require.NoError(t, p2.Stop(true))
}

func TestProcessorSkipConsistencyCheckOption(t *testing.T) {
	hub := cluster.NewLocalCluster()

	engine1 := newFsEngine(t, "metaA", "dataA", 512)
	member1 := hub.NewMember()
	p1 := NewProcessor([]*Config{{
		Name: "fsA", BlockSize: 65536, GroupSize: 512,
		MetaCacheName: "metaA", DataCacheName: "dataA",
	}}, engine1, member1, Options{MaxHeap: testHeap})
	startNode(t, p1, member1)

	engine2 := newFsEngine(t, "metaA", "dataA", 512)
	member2 := hub.NewMember()
	p2 := NewProcessor([]*Config{{
		Name: "fsA", BlockSize: 131072, GroupSize: 512,
		MetaCacheName: "metaA", DataCacheName: "dataA",
	}}, engine2, member2, Options{MaxHeap: testHeap, SkipConsistencyCheck: true})

	startNode(t, p2, member2)
	assert.Equal(t, StateRunning, p2.State())
}

func TestProcessorSkipConsistencyCheckEnv(t *testing.T) {
	t.Setenv(SkipConsistencyCheckEnv, "true")

	hub := cluster.NewLocalCluster()

	engine1 := newFsEngine(t, "metaA", "dataA", 512)
	member1 := hub.NewMember()
	p1 := NewProcessor([]*Config{{
		Name: "fsA", BlockSize: 65536, GroupSize: 512,
		MetaCacheName: "metaA", DataCacheName: "dataA",
	}}, engine1, member1, Options{MaxHeap: testHeap})
	startNode(t, p1, member1)

	engine2 := newFsEngine(t, "metaA", "dataA", 512)
	member2 := hub.NewMember()
	p2 := NewProcessor([]*Config{{
		Name: "fsA", BlockSize: 131072, GroupSize: 512,
		MetaCacheName: "metaA", DataCacheName: "dataA",
	}}, engine2, member2, Options{MaxHeap: testHeap})

	startNode(t, p2, member2)
	assert.Equal(t, StateRunning, p2.State())
}

func TestProcessorDaemonPublishesNothing(t *testing.T) {
	engine := newFsEngine(t, "metaA", "dataA", 512)
	member := cluster.NewLocalCluster().NewMember()

	cfg := &Config{Name: "fsA", MetaCacheName: "metaA", DataCacheName: "dataA", GroupSize: 512}
	p := NewProcessor([]*Config{cfg}, engine, member, Options{Daemon: true, MaxHeap: testHeap})

	require.NoError(t, p.PublishAttributes())
	_, ok := member.LocalNode().Attribute(NodeAttributeKey)
	assert.False(t, ok)
}

func TestPublishedAttributesSkipsNonGroupAwareCache(t *testing.T) {
	engine := newTestEngine(t, newPlainCache(t, "metaA"), newPlainCache(t, "dataA"))

	cfg := (&Config{Name: "fsA", MetaCacheName: "metaA", DataCacheName: "dataA"}).withDefaults()
	attrs := PublishedAttributes([]*Config{cfg}, engine, false)
	assert.Empty(t, attrs)
}

func TestPublishedAttributesUsesMapperGroupSize(t *testing.T) {
	engine := newFsEngine(t, "metaA", "dataA", 256)

	cfg := (&Config{Name: "fsA", GroupSize: 512, MetaCacheName: "metaA", DataCacheName: "dataA"}).withDefaults()
	attrs := PublishedAttributes([]*Config{cfg}, engine, false)
	require.Len(t, attrs, 1)
	assert.Equal(t, int64(256), attrs[0].GroupSize)
}

func TestProcessorEndpointsUnknownName(t *testing.T) {
	engine := cache.NewEngine()
	member := cluster.NewLocalCluster().NewMember()
	p := NewProcessor(nil, engine, member, Options{MaxHeap: testHeap})

	eps := p.Endpoints("nope")
	assert.NotNil(t, eps)
	assert.Empty(t, eps)
}

func TestProcessorFileSystemsSorted(t *testing.T) {
	engine := newTestEngine(t,
		newPlainCache(t, "metaA"), newGroupCache(t, "dataA", 512),
		newPlainCache(t, "metaB"), newGroupCache(t, "dataB", 512))
	member := cluster.NewLocalCluster().NewMember()

	p := NewProcessor([]*Config{
		{Name: "fsB", MetaCacheName: "metaB", DataCacheName: "dataB", GroupSize: 512},
		{Name: "fsA", MetaCacheName: "metaA", DataCacheName: "dataA", GroupSize: 512},
	}, engine, member, Options{MaxHeap: testHeap})

	startNode(t, p, member)

	all := p.FileSystems()
	require.Len(t, all, 2)
	assert.Equal(t, "fsA", all[0].Name())
	assert.Equal(t, "fsB", all[1].Name())
}
