package fs

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/meshfs/meshfs/internal/logger"
	"github.com/meshfs/meshfs/internal/protocol/ipc"
)

// Endpoint is one active network endpoint of an instance.
type Endpoint struct {
	Proto string
	Addr  string
}

// serverManager runs the instance's network endpoint. The listener is
// bound during Start so the address is known early, but connections are
// only accepted after OnClusterReady: the endpoint protocol hands out
// placement parameters that must not be served before the cluster
// consistency gate has passed.
type serverManager struct {
	inst *Instance

	mu        sync.Mutex
	ln        net.Listener
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

func newServerManager() *serverManager {
	return &serverManager{
		conns: make(map[net.Conn]struct{}),
		done:  make(chan struct{}),
	}
}

func (s *serverManager) Name() string {
	return "server"
}

func (s *serverManager) Start(inst *Instance) error {
	s.inst = inst

	ln, err := net.Listen("tcp", inst.Config().EndpointAddr)
	if err != nil {
		return fmt.Errorf("bind endpoint %s: %w", inst.Config().EndpointAddr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	logger.Debug("File system %q endpoint bound on %s", inst.Config().Name, ln.Addr())
	return nil
}

func (s *serverManager) OnClusterReady() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	if ln == nil {
		return fmt.Errorf("endpoint listener not bound")
	}

	go s.acceptLoop(ln)
	return nil
}

func (s *serverManager) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				logger.Debug("Endpoint accept error: %v", err)
				continue
			}
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *serverManager) serveConn(conn net.Conn) {
	name := s.inst.Config().Name
	s.inst.coord.ConnectionOpened(name)

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()

		conn.Close()
		s.inst.coord.ConnectionClosed(name)
		s.wg.Done()
	}()

	for {
		proc, body, err := ipc.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("Endpoint read error: %v", err)
			}
			return
		}

		if err := s.dispatch(conn, proc, body); err != nil {
			logger.Debug("Endpoint write error: %v", err)
			return
		}
	}
}

func (s *serverManager) dispatch(conn net.Conn, proc uint32, body []byte) error {
	cfg := s.inst.Config()

	switch proc {
	case ipc.ProcHandshake:
		var req ipc.HandshakeRequest
		if err := ipc.Decode(body, &req); err != nil {
			return ipc.WriteMessage(conn, proc, &ipc.HandshakeReply{Status: ipc.StatusError})
		}
		if req.Filesystem != cfg.Name {
			return ipc.WriteMessage(conn, proc, &ipc.HandshakeReply{Status: ipc.StatusNotFound})
		}
		return ipc.WriteMessage(conn, proc, &ipc.HandshakeReply{
			Status:      ipc.StatusOK,
			Filesystem:  cfg.Name,
			BlockSize:   cfg.BlockSize,
			GroupSize:   cfg.GroupSize,
			DefaultMode: string(cfg.DefaultMode),
		})

	case ipc.ProcStatus:
		var req ipc.StatusRequest
		if err := ipc.Decode(body, &req); err != nil {
			return ipc.WriteMessage(conn, proc, &ipc.StatusReply{Status: ipc.StatusError})
		}
		return ipc.WriteMessage(conn, proc, &ipc.StatusReply{
			Status:    ipc.StatusOK,
			UsedSpace: s.inst.data.usedSpace(),
			MaxSpace:  cfg.MaxSpaceSize,
		})

	default:
		return ipc.WriteMessage(conn, proc, &ipc.StatusReply{Status: ipc.StatusError})
	}
}

func (s *serverManager) PreStop(cancel bool) error {
	s.closeOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}

	if cancel {
		// Immediate abort: cut connections, do not wait for them.
		s.closeConns()
		return nil
	}

	// Graceful drain: let the request being served finish, then unblock
	// idle readers via an immediate read deadline.
	s.mu.Lock()
	for conn := range s.conns {
		conn.SetReadDeadline(immediateDeadline())
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *serverManager) Stop(cancel bool) error {
	s.closeOnce.Do(func() { close(s.done) })
	s.closeConns()

	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	return nil
}

func immediateDeadline() time.Time {
	return time.Now().Add(time.Millisecond)
}

func (s *serverManager) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		conn.Close()
	}
}

// Endpoints enumerates the manager's active endpoints. Empty until Start
// has bound the listener.
func (s *serverManager) Endpoints() []Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return nil
	}
	return []Endpoint{{Proto: "tcp", Addr: s.ln.Addr().String()}}
}
