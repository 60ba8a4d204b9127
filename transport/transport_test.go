package transport_test

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/protocol"
	fs3test "github.com/fs3io/fs3/testing"
	"github.com/fs3io/fs3/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var geometry = fs3test.SmallGeometry

func TestEncodeFrame__Layout(t *testing.T) {
	cmd := protocol.WriteCommand(7)
	payload := fs3test.CreateRandomBuffer(t, 16)

	frame, err := transport.EncodeFrame(cmd, payload)
	require.NoError(t, err)
	require.Len(t, frame, protocol.WordSize+16)

	assert.EqualValues(t, protocol.Encode(cmd), binary.BigEndian.Uint64(frame[:8]))
	assert.Equal(t, payload, frame[8:])

	bare, err := transport.EncodeFrame(protocol.MountCommand(), nil)
	require.NoError(t, err)
	assert.Len(t, bare, transport.FrameSize(false, 16))
	assert.Equal(t, transport.FrameSize(true, 16), len(frame))
}

func TestFrame__RoundTrip(t *testing.T) {
	var wire bytes.Buffer
	cmd := protocol.SeekCommand(0xdeadbeef).Reply(protocol.StatusFailed)
	payload := fs3test.CreateRandomBuffer(t, 32)

	require.NoError(t, transport.WriteFrame(&wire, cmd, payload))

	decoded, err := transport.ReadCommand(&wire)
	require.NoError(t, err)
	assert.Equal(t, cmd, decoded)

	received := make([]byte, 32)
	require.NoError(t, transport.ReadPayload(&wire, received))
	assert.Equal(t, payload, received)
}

func TestFrame__ShortReads(t *testing.T) {
	_, err := transport.ReadCommand(bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, errors.ErrIOFailed)

	err = transport.ReadPayload(bytes.NewReader([]byte{1, 2, 3}), make([]byte, 8))
	assert.ErrorIs(t, err, errors.ErrIOFailed)
}

func newTransport(t *testing.T) (*transport.NetworkTransport, string) {
	ctrl := fs3test.NewMemoryController(t, geometry, nil)
	address := fs3test.StartServer(t, ctrl)
	client := transport.New(transport.Options{
		Address:        address,
		BytesPerSector: geometry.BytesPerSector,
		Logger:         fs3test.QuietLogger(),
	})
	t.Cleanup(func() { client.Close() })
	return client, address
}

func TestNetworkTransport__SessionRoundTrip(t *testing.T) {
	client, _ := newTransport(t)
	assert.False(t, client.Connected())

	reply, err := client.Submit(protocol.MountCommand(), nil)
	require.NoError(t, err)
	require.False(t, reply.Failed())
	assert.True(t, client.Connected())

	reply, err = client.Submit(protocol.SeekCommand(3), nil)
	require.NoError(t, err)
	require.False(t, reply.Failed())
	assert.EqualValues(t, 3, reply.Track)

	payload := fs3test.CreateRandomBuffer(t, int(geometry.BytesPerSector))
	reply, err = client.Submit(protocol.WriteCommand(4), payload)
	require.NoError(t, err)
	require.False(t, reply.Failed())

	readBack := make([]byte, geometry.BytesPerSector)
	reply, err = client.Submit(protocol.ReadCommand(4), readBack)
	require.NoError(t, err)
	require.False(t, reply.Failed())
	assert.Equal(t, payload, readBack)

	// A rejected command is a status, not an error, and the session goes on.
	reply, err = client.Submit(protocol.SeekCommand(protocol.TrackIndex(geometry.Tracks)), nil)
	require.NoError(t, err)
	assert.True(t, reply.Failed())

	reply, err = client.Submit(protocol.UnmountCommand(), nil)
	require.NoError(t, err)
	require.False(t, reply.Failed())
	assert.False(t, client.Connected())
}

func TestNetworkTransport__RemountAfterUnmount(t *testing.T) {
	client, _ := newTransport(t)

	for i := 0; i < 2; i++ {
		reply, err := client.Submit(protocol.MountCommand(), nil)
		require.NoError(t, err)
		require.Falsef(t, reply.Failed(), "mount %d failed", i)

		reply, err = client.Submit(protocol.UnmountCommand(), nil)
		require.NoError(t, err)
		require.Falsef(t, reply.Failed(), "unmount %d failed", i)
	}
}

func TestNetworkTransport__NotConnected(t *testing.T) {
	client, _ := newTransport(t)
	_, err := client.Submit(protocol.SeekCommand(0), nil)
	assert.ErrorIs(t, err, errors.ErrIOFailed)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestNetworkTransport__DialFailure(t *testing.T) {
	// Grab a free port and release it so nothing is listening there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	client := transport.New(transport.Options{
		Address:        address,
		BytesPerSector: geometry.BytesPerSector,
		Logger:         fs3test.QuietLogger(),
	})
	_, err = client.Submit(protocol.MountCommand(), nil)
	assert.ErrorIs(t, err, errors.ErrIOFailed)
	assert.False(t, client.Connected())
}

func TestNetworkTransport__WrongPayloadSize(t *testing.T) {
	client, _ := newTransport(t)
	_, err := client.Submit(protocol.WriteCommand(0), make([]byte, 1))
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestNetworkTransport__DefaultAddress(t *testing.T) {
	client := transport.New(transport.Options{BytesPerSector: 1024})
	assert.Equal(t, "127.0.0.1:22887", client.Address())
}
