// Package controller simulates the FS3 disk controller: a single head that must
// be moved to a track before any of that track's sectors can be read or
// written.
//
// The disk contents live in an [io.ReadWriteSeeker], typically an in-memory
// buffer for tests or an [os.File] for a persistent image. Sector (t, s) is
// stored at byte offset (t*SectorsPerTrack + s) * BytesPerSector.
package controller

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fs3io/fs3"
	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/protocol"
)

const noTrack = int64(-1)

// Stats counts the commands the controller has carried out successfully.
type Stats struct {
	Mounts   uint64 `csv:"mounts"`
	Unmounts uint64 `csv:"unmounts"`
	Seeks    uint64 `csv:"seeks"`
	Reads    uint64 `csv:"reads"`
	Writes   uint64 `csv:"writes"`
	Rejected uint64 `csv:"rejected"`
}

// Controller executes commands against a disk image. It is not safe for
// concurrent use.
type Controller struct {
	image    io.ReadWriteSeeker
	geometry common.Geometry
	logger   *slog.Logger
	mounted  bool
	head     int64
	stats    Stats
}

var _ fs3.Transport = (*Controller)(nil)

// New creates an unmounted controller over `image`, which must be large enough
// to hold every sector of `geometry`.
func New(image io.ReadWriteSeeker, geometry common.Geometry, logger *slog.Logger) (*Controller, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	size, err := image.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.NewFromError(errors.EIO, err)
	}
	if size < geometry.TotalSizeBytes() {
		return nil, errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf(
				"image is %d bytes, geometry needs %d",
				size,
				geometry.TotalSizeBytes()),
		)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		image:    image,
		geometry: geometry,
		logger:   logger.With("component", "controller"),
		head:     noTrack,
	}, nil
}

// Geometry gives the layout of the disk.
func (ctrl *Controller) Geometry() common.Geometry {
	return ctrl.geometry
}

// Mounted reports whether a session is active.
func (ctrl *Controller) Mounted() bool {
	return ctrl.mounted
}

// Head gives the track the head is on, or -1 if no track has been selected
// since mounting.
func (ctrl *Controller) Head() int64 {
	return ctrl.head
}

// Stats returns a snapshot of the command counters.
func (ctrl *Controller) Stats() Stats {
	return ctrl.stats
}

// ResetStats zeroes the command counters.
func (ctrl *Controller) ResetStats() {
	ctrl.stats = Stats{}
}

// Submit carries out one command. Commands the controller refuses come back
// with the status bit set; an error is only returned if `payload` has the wrong
// size for a sector transfer.
func (ctrl *Controller) Submit(
	cmd protocol.CommandBlock, payload []byte,
) (protocol.CommandBlock, error) {
	if (cmd.Op.CarriesPayloadIn() || cmd.Op.CarriesPayloadOut()) &&
		uint(len(payload)) != ctrl.geometry.BytesPerSector {
		return protocol.CommandBlock{}, errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf(
				"%s needs a %d-byte buffer, got %d",
				cmd.Op,
				ctrl.geometry.BytesPerSector,
				len(payload)),
		)
	}

	err := ctrl.execute(cmd, payload)
	if err != nil {
		ctrl.stats.Rejected++
		ctrl.logger.Warn("rejected command", "cmd", cmd, "error", err)
		return cmd.Reply(protocol.StatusFailed), nil
	}
	ctrl.logger.Debug("executed command", "cmd", cmd)
	return cmd.Reply(protocol.StatusOK), nil
}

func (ctrl *Controller) execute(cmd protocol.CommandBlock, payload []byte) error {
	switch cmd.Op {
	case protocol.OpMount:
		if ctrl.mounted {
			return errors.ErrAlreadyInProgress.WithMessage("already mounted")
		}
		ctrl.mounted = true
		ctrl.head = noTrack
		ctrl.stats.Mounts++
		return nil

	case protocol.OpUnmount:
		if !ctrl.mounted {
			return errors.ErrInvalidArgument.WithMessage("not mounted")
		}
		ctrl.mounted = false
		ctrl.head = noTrack
		ctrl.stats.Unmounts++
		return nil

	case protocol.OpSeekTrack:
		if !ctrl.mounted {
			return errors.ErrInvalidArgument.WithMessage("not mounted")
		}
		if uint(cmd.Track) >= ctrl.geometry.Tracks {
			return errors.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("track %d not in [0, %d)", cmd.Track, ctrl.geometry.Tracks))
		}
		ctrl.head = int64(cmd.Track)
		ctrl.stats.Seeks++
		return nil

	case protocol.OpReadSector:
		offset, err := ctrl.sectorOffset(cmd.Sector)
		if err != nil {
			return err
		}
		if _, err = ctrl.image.Seek(offset, io.SeekStart); err != nil {
			return errors.NewFromError(errors.EIO, err)
		}
		if _, err = io.ReadFull(ctrl.image, payload); err != nil {
			return errors.NewFromError(errors.EIO, err)
		}
		ctrl.stats.Reads++
		return nil

	case protocol.OpWriteSector:
		offset, err := ctrl.sectorOffset(cmd.Sector)
		if err != nil {
			return err
		}
		if _, err = ctrl.image.Seek(offset, io.SeekStart); err != nil {
			return errors.NewFromError(errors.EIO, err)
		}
		n, err := ctrl.image.Write(payload)
		if err != nil {
			return errors.NewFromError(errors.EIO, err)
		}
		if n != len(payload) {
			return errors.ErrIOFailed.WithMessage(
				fmt.Sprintf("short write to image: %d of %d bytes", n, len(payload)))
		}
		ctrl.stats.Writes++
		return nil
	}

	return errors.ErrProtocol.WithMessage(fmt.Sprintf("unknown opcode %d", cmd.Op))
}

// sectorOffset finds where `sector` of the current track starts in the image.
func (ctrl *Controller) sectorOffset(sector protocol.SectorIndex) (int64, error) {
	if !ctrl.mounted {
		return 0, errors.ErrInvalidArgument.WithMessage("not mounted")
	}
	if ctrl.head == noTrack {
		return 0, errors.ErrInvalidArgument.WithMessage("no track selected")
	}
	if uint(sector) >= ctrl.geometry.SectorsPerTrack {
		return 0, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"sector %d not in [0, %d)", sector, ctrl.geometry.SectorsPerTrack))
	}

	addr := common.DiskAddress{
		Track:  protocol.TrackIndex(ctrl.head),
		Sector: sector,
	}
	return int64(ctrl.geometry.Index(addr)) * int64(ctrl.geometry.BytesPerSector), nil
}
