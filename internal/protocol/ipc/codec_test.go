package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMessage_Handshake(t *testing.T) {
	var buf bytes.Buffer

	req := HandshakeRequest{Filesystem: "fsA"}
	require.NoError(t, WriteMessage(&buf, ProcHandshake, &req))

	proc, body, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, ProcHandshake, proc)

	var got HandshakeRequest
	require.NoError(t, Decode(body, &got))
	assert.Equal(t, req, got)
}

func TestWriteReadMessage_HandshakeReply(t *testing.T) {
	var buf bytes.Buffer

	reply := HandshakeReply{
		Status:      StatusOK,
		Filesystem:  "fsA",
		BlockSize:   65536,
		GroupSize:   512,
		DefaultMode: "PRIMARY",
	}
	require.NoError(t, WriteMessage(&buf, ProcHandshake, &reply))

	proc, body, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, ProcHandshake, proc)

	var got HandshakeReply
	require.NoError(t, Decode(body, &got))
	assert.Equal(t, reply, got)
}

func TestReadMessage_RejectsOversizedFragment(t *testing.T) {
	// Header claiming a 2MB payload.
	header := []byte{0x80, 0x20, 0x00, 0x00}

	_, _, err := ReadMessage(bytes.NewReader(header))
	require.Error(t, err)
}

func TestReadMessage_ShortPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, ProcStatus, &StatusRequest{Filesystem: "x"}))

	// Truncate the payload.
	data := buf.Bytes()
	_, _, err := ReadMessage(bytes.NewReader(data[:len(data)-2]))
	require.Error(t, err)
}
