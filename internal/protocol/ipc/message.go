// Package ipc defines the wire protocol spoken on a file-system
// instance's network endpoint. Messages are XDR-encoded and carried in
// length-prefixed fragments, one message per fragment.
package ipc

// Procedure numbers.
const (
	ProcHandshake uint32 = 1
	ProcStatus    uint32 = 2
)

// Reply status codes.
const (
	StatusOK       uint32 = 0
	StatusNotFound uint32 = 1
	StatusError    uint32 = 2
)

// HandshakeRequest asks an endpoint for the structural parameters of the
// instance it serves. Clients send it once per connection before any
// other procedure.
type HandshakeRequest struct {
	Filesystem string
}

// HandshakeReply carries the instance parameters a client needs to
// compute block placement the same way the server does.
type HandshakeReply struct {
	Status      uint32
	Filesystem  string
	BlockSize   int64
	GroupSize   int64
	DefaultMode string
}

// StatusRequest asks for the current space accounting of an instance.
type StatusRequest struct {
	Filesystem string
}

// StatusReply reports an instance's space usage. MaxSpace is zero when
// the instance has no configured budget.
type StatusReply struct {
	Status    uint32
	UsedSpace int64
	MaxSpace  int64
}
