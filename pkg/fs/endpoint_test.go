package fs

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshfs/meshfs/internal/protocol/ipc"
)

func dialEndpoint(t *testing.T, fsys *FileSystem) net.Conn {
	t.Helper()

	eps := fsys.inst.Endpoints()
	require.Len(t, eps, 1)

	conn, err := net.Dial("tcp", eps[0].Addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEndpointHandshake(t *testing.T) {
	fsys := startFs(t, &Config{
		Name: "fsA", BlockSize: 65536, GroupSize: 512,
		MetaCacheName: "metaA", DataCacheName: "dataA",
	})
	conn := dialEndpoint(t, fsys)

	require.NoError(t, ipc.WriteMessage(conn, ipc.ProcHandshake, &ipc.HandshakeRequest{Filesystem: "fsA"}))

	proc, body, err := ipc.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, ipc.ProcHandshake, proc)

	var reply ipc.HandshakeReply
	require.NoError(t, ipc.Decode(body, &reply))
	assert.Equal(t, ipc.StatusOK, reply.Status)
	assert.Equal(t, "fsA", reply.Filesystem)
	assert.Equal(t, int64(65536), reply.BlockSize)
	assert.Equal(t, int64(512), reply.GroupSize)
	assert.Equal(t, string(ModePrimary), reply.DefaultMode)
}

func TestEndpointHandshakeUnknownFilesystem(t *testing.T) {
	fsys := startFs(t, &Config{Name: "fsA", MetaCacheName: "metaA", DataCacheName: "dataA"})
	conn := dialEndpoint(t, fsys)

	require.NoError(t, ipc.WriteMessage(conn, ipc.ProcHandshake, &ipc.HandshakeRequest{Filesystem: "fsZ"}))

	proc, body, err := ipc.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, ipc.ProcHandshake, proc)

	var reply ipc.HandshakeReply
	require.NoError(t, ipc.Decode(body, &reply))
	assert.Equal(t, ipc.StatusNotFound, reply.Status)
}

func TestEndpointStatus(t *testing.T) {
	fsys := startFs(t, &Config{
		Name: "fsA", MetaCacheName: "metaA", DataCacheName: "dataA",
		MaxSpaceSize: 1 << 20,
	})

	require.NoError(t, fsys.Create(context.Background(), "/f", []byte("12345")))

	conn := dialEndpoint(t, fsys)
	require.NoError(t, ipc.WriteMessage(conn, ipc.ProcStatus, &ipc.StatusRequest{Filesystem: "fsA"}))

	proc, body, err := ipc.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, ipc.ProcStatus, proc)

	var reply ipc.StatusReply
	require.NoError(t, ipc.Decode(body, &reply))
	assert.Equal(t, ipc.StatusOK, reply.Status)
	assert.Equal(t, int64(5), reply.UsedSpace)
	assert.Equal(t, int64(1<<20), reply.MaxSpace)
}

func TestEndpointClosedAfterStop(t *testing.T) {
	fsys := startFs(t, &Config{Name: "fsA", MetaCacheName: "metaA", DataCacheName: "dataA"})

	eps := fsys.inst.Endpoints()
	require.Len(t, eps, 1)
	addr := eps[0].Addr

	require.NoError(t, fsys.inst.server.PreStop(true))
	require.NoError(t, fsys.inst.server.Stop(true))

	_, err := net.Dial("tcp", addr)
	assert.Error(t, err)
}
