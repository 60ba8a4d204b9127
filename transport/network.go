package transport

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/fs3io/fs3"
	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/protocol"
)

// Options configures a [NetworkTransport].
type Options struct {
	// Address of the controller, as "host:port". Empty means
	// [fs3.DefaultAddress].
	Address        string
	BytesPerSector uint
	Logger         *slog.Logger
}

// NetworkTransport is a [fs3.Transport] that talks to a controller over TCP.
// The connection is opened when a Mount command is submitted and closed after
// the Unmount exchange.
type NetworkTransport struct {
	address        string
	bytesPerSector uint
	conn           net.Conn
	logger         *slog.Logger
}

var _ fs3.Transport = (*NetworkTransport)(nil)

// New creates a disconnected transport.
func New(options Options) *NetworkTransport {
	address := options.Address
	if address == "" {
		address = fs3.DefaultAddress
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkTransport{
		address:        address,
		bytesPerSector: options.BytesPerSector,
		logger:         logger.With("component", "transport", "server", address),
	}
}

// Address gives the controller address this transport dials.
func (t *NetworkTransport) Address() string {
	return t.address
}

// Connected reports whether a connection to the controller is open.
func (t *NetworkTransport) Connected() bool {
	return t.conn != nil
}

// Submit sends one request frame and reads back the reply frame.
func (t *NetworkTransport) Submit(
	cmd protocol.CommandBlock, payload []byte,
) (protocol.CommandBlock, error) {
	if (cmd.Op.CarriesPayloadOut() || cmd.Op.CarriesPayloadIn()) &&
		uint(len(payload)) != t.bytesPerSector {
		return protocol.CommandBlock{}, errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf(
				"%s needs a %d-byte buffer, got %d",
				cmd.Op,
				t.bytesPerSector,
				len(payload)),
		)
	}

	if cmd.Op == protocol.OpMount && t.conn == nil {
		if err := t.dial(); err != nil {
			return protocol.CommandBlock{}, err
		}
	}
	if t.conn == nil {
		return protocol.CommandBlock{}, errors.NewFromError(
			errors.EIO,
			errors.ErrNotConnected.WithMessage(
				fmt.Sprintf("can't send %s before mounting", cmd.Op)),
		)
	}

	reply, err := t.exchange(cmd, payload)
	if err != nil {
		t.logger.Error("exchange failed, dropping connection", "cmd", cmd, "error", err)
		t.Close()
		return protocol.CommandBlock{}, err
	}

	if cmd.Op == protocol.OpUnmount || (cmd.Op == protocol.OpMount && reply.Failed()) {
		t.Close()
	}
	return reply, nil
}

func (t *NetworkTransport) dial() error {
	t.logger.Info("connecting to controller")
	conn, err := net.Dial("tcp", t.address)
	if err != nil {
		return errors.NewFromError(errors.EIO, err)
	}
	t.conn = conn
	return nil
}

func (t *NetworkTransport) exchange(
	cmd protocol.CommandBlock, payload []byte,
) (protocol.CommandBlock, error) {
	var outgoing []byte
	if cmd.Op.CarriesPayloadOut() {
		outgoing = payload
	}
	if err := WriteFrame(t.conn, cmd, outgoing); err != nil {
		return protocol.CommandBlock{}, err
	}

	reply, err := ReadCommand(t.conn)
	if err != nil {
		return protocol.CommandBlock{}, err
	}
	if cmd.Op.CarriesPayloadIn() {
		if err = ReadPayload(t.conn, payload); err != nil {
			return protocol.CommandBlock{}, err
		}
	}

	t.logger.Debug("exchanged frame", "request", cmd, "reply", reply)
	return reply, nil
}

// Close drops the connection, if any. It's safe to call more than once.
func (t *NetworkTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.logger.Info("disconnected from controller")
	if err != nil {
		return errors.NewFromError(errors.EIO, err)
	}
	return nil
}
