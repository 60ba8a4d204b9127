package controller

import (
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/transport"
)

// Server exposes a [Controller] over TCP. Connections are served one at a
// time, in the order they're accepted.
type Server struct {
	ctrl   *Controller
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	active   net.Conn
	closed   bool
}

// NewServer creates a server for `ctrl`. A nil logger means [slog.Default].
func NewServer(ctrl *Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ctrl:   ctrl,
		logger: logger.With("component", "server"),
	}
}

// ListenAndServe listens on `address` and serves until [Server.Close] is
// called.
func (srv *Server) ListenAndServe(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.NewFromError(errors.EIO, err)
	}
	return srv.Serve(listener)
}

// Serve accepts connections on `listener` until [Server.Close] is called, at
// which point it returns nil. The listener is closed on return.
func (srv *Server) Serve(listener net.Listener) error {
	srv.mu.Lock()
	if srv.closed {
		srv.mu.Unlock()
		listener.Close()
		return nil
	}
	srv.listener = listener
	srv.mu.Unlock()

	srv.logger.Info("serving", "address", listener.Addr().String())
	defer listener.Close()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if srv.isClosed() {
				return nil
			}
			return errors.NewFromError(errors.EIO, err)
		}

		srv.mu.Lock()
		if srv.closed {
			srv.mu.Unlock()
			conn.Close()
			return nil
		}
		srv.active = conn
		srv.mu.Unlock()

		srv.serveConn(conn)

		srv.mu.Lock()
		srv.active = nil
		srv.mu.Unlock()
	}
}

// Addr gives the address the server is listening on, or nil if it isn't
// serving yet.
func (srv *Server) Addr() net.Addr {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}

func (srv *Server) isClosed() bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.closed
}

func (srv *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	logger := srv.logger.With("client", conn.RemoteAddr().String())
	logger.Info("client connected")

	payload := make([]byte, srv.ctrl.Geometry().BytesPerSector)
	for {
		cmd, err := transport.ReadCommand(conn)
		if err != nil {
			if stderrors.Is(err, io.EOF) || srv.isClosed() {
				logger.Info("client disconnected")
			} else {
				logger.Warn("dropping client", "error", err)
			}
			return
		}

		if cmd.Op.CarriesPayloadOut() {
			if err = transport.ReadPayload(conn, payload); err != nil {
				logger.Warn("dropping client: short sector payload", "cmd", cmd, "error", err)
				return
			}
		} else {
			clear(payload)
		}

		reply, err := srv.ctrl.Submit(cmd, payload)
		if err != nil {
			logger.Error("controller failed", "cmd", cmd, "error", err)
			return
		}

		var outgoing []byte
		if cmd.Op.CarriesPayloadIn() {
			outgoing = payload
		}
		if err = transport.WriteFrame(conn, reply, outgoing); err != nil {
			logger.Warn("dropping client: reply failed", "cmd", cmd, "error", err)
			return
		}
	}
}

// Close stops the server and drops the active connection, if any.
func (srv *Server) Close() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.closed {
		return nil
	}
	srv.closed = true

	var err error
	if srv.listener != nil {
		err = srv.listener.Close()
	}
	if srv.active != nil {
		srv.active.Close()
	}
	if err != nil {
		return errors.NewFromError(errors.EIO, err)
	}
	return nil
}
