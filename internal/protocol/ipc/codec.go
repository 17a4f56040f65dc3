package ipc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// lastFragment marks the final (here: only) fragment of a message.
const lastFragment = 0x80000000

// maxMessageSize bounds a single message to keep a misbehaving peer from
// forcing a huge allocation.
const maxMessageSize = 1 << 20

// WriteMessage XDR-encodes msg, prefixes it with the procedure number,
// and writes it as one fragment.
func WriteMessage(w io.Writer, proc uint32, msg any) error {
	var buf bytes.Buffer

	if _, err := xdr.Marshal(&buf, proc); err != nil {
		return fmt.Errorf("marshal procedure: %w", err)
	}
	if _, err := xdr.Marshal(&buf, msg); err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	payload := buf.Bytes()

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, lastFragment|uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads one fragment and returns the procedure number and
// the still-encoded message body.
func ReadMessage(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	size := binary.BigEndian.Uint32(header) &^ lastFragment
	if size < 4 || size > maxMessageSize {
		return 0, nil, fmt.Errorf("invalid message size %d", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}

	var proc uint32
	n, err := xdr.Unmarshal(bytes.NewReader(payload), &proc)
	if err != nil {
		return 0, nil, fmt.Errorf("unmarshal procedure: %w", err)
	}

	return proc, payload[n:], nil
}

// Decode unmarshals a message body returned by ReadMessage.
func Decode(body []byte, msg any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(body), msg); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	return nil
}
