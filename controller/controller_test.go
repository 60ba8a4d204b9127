package controller_test

import (
	"bytes"
	"testing"

	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/controller"
	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/protocol"
	fs3test "github.com/fs3io/fs3/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

var geometry = fs3test.SmallGeometry

func submitOK(t *testing.T, ctrl *controller.Controller, cmd protocol.CommandBlock, payload []byte) {
	reply, err := ctrl.Submit(cmd, payload)
	require.NoError(t, err)
	require.Falsef(t, reply.Failed(), "%s was rejected", cmd)
	assert.Equal(t, cmd.Op, reply.Op)
}

func submitRejected(t *testing.T, ctrl *controller.Controller, cmd protocol.CommandBlock, payload []byte) {
	reply, err := ctrl.Submit(cmd, payload)
	require.NoError(t, err)
	assert.Truef(t, reply.Failed(), "%s should have been rejected", cmd)
}

func TestNew__ImageTooSmall(t *testing.T) {
	image := bytesextra.NewReadWriteSeeker(make([]byte, geometry.TotalSizeBytes()-1))
	_, err := controller.New(image, geometry, fs3test.QuietLogger())
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestNew__BadGeometry(t *testing.T) {
	image := bytesextra.NewReadWriteSeeker(make([]byte, 64))
	_, err := controller.New(
		image, common.Geometry{Tracks: 1, SectorsPerTrack: 1}, fs3test.QuietLogger())
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestController__MountUnmount(t *testing.T) {
	ctrl := fs3test.NewMemoryController(t, geometry, nil)

	submitRejected(t, ctrl, protocol.UnmountCommand(), nil)
	submitOK(t, ctrl, protocol.MountCommand(), nil)
	assert.True(t, ctrl.Mounted())
	assert.EqualValues(t, -1, ctrl.Head())

	submitRejected(t, ctrl, protocol.MountCommand(), nil)
	submitOK(t, ctrl, protocol.UnmountCommand(), nil)
	assert.False(t, ctrl.Mounted())

	stats := ctrl.Stats()
	assert.EqualValues(t, 1, stats.Mounts)
	assert.EqualValues(t, 1, stats.Unmounts)
	assert.EqualValues(t, 2, stats.Rejected)
}

func TestController__SectorIOLandsInImage(t *testing.T) {
	backing := make([]byte, geometry.TotalSizeBytes())
	ctrl := fs3test.NewMemoryController(t, geometry, backing)
	submitOK(t, ctrl, protocol.MountCommand(), nil)

	payload := fs3test.CreateRandomBuffer(t, int(geometry.BytesPerSector))
	submitOK(t, ctrl, protocol.SeekCommand(2), nil)
	assert.EqualValues(t, 2, ctrl.Head())
	submitOK(t, ctrl, protocol.WriteCommand(5), payload)

	offset := (2*geometry.SectorsPerTrack + 5) * geometry.BytesPerSector
	assert.Equal(t, payload, backing[offset:offset+geometry.BytesPerSector])

	// Same sector number on another track is a different sector.
	readBack := make([]byte, geometry.BytesPerSector)
	submitOK(t, ctrl, protocol.SeekCommand(1), nil)
	submitOK(t, ctrl, protocol.ReadCommand(5), readBack)
	assert.Equal(t, bytes.Repeat([]byte{0}, int(geometry.BytesPerSector)), readBack)

	submitOK(t, ctrl, protocol.SeekCommand(2), nil)
	submitOK(t, ctrl, protocol.ReadCommand(5), readBack)
	assert.Equal(t, payload, readBack)

	stats := ctrl.Stats()
	assert.EqualValues(t, 3, stats.Seeks)
	assert.EqualValues(t, 2, stats.Reads)
	assert.EqualValues(t, 1, stats.Writes)

	ctrl.ResetStats()
	assert.Equal(t, controller.Stats{}, ctrl.Stats())
}

func TestController__RejectsBadCommands(t *testing.T) {
	ctrl := fs3test.NewMemoryController(t, geometry, nil)
	sector := make([]byte, geometry.BytesPerSector)

	// Nothing works before mounting.
	submitRejected(t, ctrl, protocol.SeekCommand(0), nil)
	submitRejected(t, ctrl, protocol.ReadCommand(0), sector)

	submitOK(t, ctrl, protocol.MountCommand(), nil)

	// Sector I/O needs a track to be selected first.
	submitRejected(t, ctrl, protocol.ReadCommand(0), sector)
	submitRejected(t, ctrl, protocol.WriteCommand(0), sector)

	submitRejected(t, ctrl, protocol.SeekCommand(protocol.TrackIndex(geometry.Tracks)), nil)
	submitOK(t, ctrl, protocol.SeekCommand(0), nil)
	submitRejected(
		t, ctrl, protocol.ReadCommand(protocol.SectorIndex(geometry.SectorsPerTrack)), sector)

	submitRejected(t, ctrl, protocol.CommandBlock{Op: 9}, nil)
	assert.EqualValues(t, 0, ctrl.Stats().Reads)
}

func TestController__WrongPayloadSize(t *testing.T) {
	ctrl := fs3test.NewMemoryController(t, geometry, nil)
	submitOK(t, ctrl, protocol.MountCommand(), nil)
	submitOK(t, ctrl, protocol.SeekCommand(0), nil)

	_, err := ctrl.Submit(protocol.WriteCommand(0), make([]byte, 3))
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = ctrl.Submit(protocol.ReadCommand(0), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}
