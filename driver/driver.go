// Package driver implements the FS3 file system on top of a disk controller.
//
// The driver maps byte ranges of files onto (track, sector) addresses, grows
// files by claiming free sectors, and moves data one sector at a time through a
// write-through [cache.SectorCache]. It remembers which track the controller's
// head is on so it only seeks when the next sector is on a different track.
package driver

import (
	"fmt"
	"log/slog"

	"github.com/fs3io/fs3"
	"github.com/fs3io/fs3/cache"
	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/filetable"
	"github.com/fs3io/fs3/protocol"
	"github.com/hashicorp/go-multierror"
)

const headUnknown = int64(-1)

// Driver is a mountable FS3 file system. It is not safe for concurrent use.
type Driver struct {
	transport fs3.Transport
	cache     *cache.SectorCache
	options   Options
	logger    *slog.Logger

	mounted bool
	head    int64
	files   *filetable.Table
	open    *filetable.OpenTable
	alloc   *common.AllocationMap
}

var _ fs3.FileSystem = (*Driver)(nil)

// New creates an unmounted driver that talks to the controller through
// `transport` and caches sectors in `sectorCache`. The cache's lifetime is
// managed by the caller; the driver neither initializes nor closes it.
func New(
	transport fs3.Transport, sectorCache *cache.SectorCache, options Options,
) (*Driver, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}
	if sectorCache.BytesPerSector() != options.Geometry.BytesPerSector {
		return nil, errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf(
				"cache holds %d-byte sectors but the disk has %d-byte sectors",
				sectorCache.BytesPerSector(),
				options.Geometry.BytesPerSector),
		)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		transport: transport,
		cache:     sectorCache,
		options:   options,
		logger:    logger.With("component", "driver"),
		head:      headUnknown,
		files:     filetable.NewTable(options.Geometry, options.MaxTotalFiles),
		open:      filetable.NewOpenTable(),
		alloc:     common.NewAllocationMap(options.Geometry),
	}, nil
}

// Geometry gives the layout of the disk.
func (driver *Driver) Geometry() common.Geometry {
	return driver.options.Geometry
}

// Cache returns the sector cache the driver reads and writes through.
func (driver *Driver) Cache() *cache.SectorCache {
	return driver.cache
}

// Mounted reports whether a session is active.
func (driver *Driver) Mounted() bool {
	return driver.mounted
}

// HeadTrack gives the track the driver believes the head is on, or -1 if it
// doesn't know.
func (driver *Driver) HeadTrack() int64 {
	return driver.head
}

// FreeSectors gives the number of sectors no file has claimed.
func (driver *Driver) FreeSectors() uint {
	return driver.alloc.FreeCount()
}

// submit sends one command and turns both transport failures and rejections by
// the controller into EIO.
func (driver *Driver) submit(cmd protocol.CommandBlock, payload []byte) error {
	reply, err := driver.transport.Submit(cmd, payload)
	if err != nil {
		return errors.Wrap(
			errors.NewWithMessage(errors.EIO, fmt.Sprintf("%s failed", cmd)), err)
	}
	if reply.Op != cmd.Op {
		return errors.NewWithMessage(
			errors.EIO,
			fmt.Sprintf("sent %s but the controller answered %s", cmd, reply),
		)
	}
	if reply.Failed() {
		return errors.NewWithMessage(
			errors.EIO, fmt.Sprintf("controller rejected %s", cmd))
	}
	return nil
}

// Mount starts a session. The file tables, the allocation map, and the head
// position all start out empty.
func (driver *Driver) Mount() error {
	if driver.mounted {
		return errors.NewWithMessage(errors.EALREADY, "already mounted")
	}

	if err := driver.submit(protocol.MountCommand(), nil); err != nil {
		driver.logger.Error("mount failed", "error", err)
		return err
	}

	driver.files.Reset()
	driver.open.Reset()
	driver.alloc.Reset()
	driver.head = headUnknown
	driver.mounted = true

	driver.logger.Info("mounted", "geometry", driver.options.Geometry)
	return nil
}

// Unmount closes every open handle and then ends the session. The driver is
// always unmounted afterwards; every failure along the way is collected and
// returned together.
func (driver *Driver) Unmount() error {
	if !driver.mounted {
		return errors.NewWithMessage(errors.EINVAL, "not mounted")
	}

	var result *multierror.Error
	for _, handle := range driver.open.Handles() {
		if err := driver.Close(handle); err != nil {
			driver.logger.Warn("failed to close file during unmount", "handle", handle, "error", err)
			result = multierror.Append(result, err)
		}
	}

	if err := driver.submit(protocol.UnmountCommand(), nil); err != nil {
		driver.logger.Error("unmount command failed", "error", err)
		result = multierror.Append(result, err)
	}

	driver.mounted = false
	driver.head = headUnknown
	driver.logger.Info("unmounted")
	return result.ErrorOrNil()
}

// Open returns a handle onto `path`, creating an empty file if there's none by
// that name yet.
func (driver *Driver) Open(path string) (filetable.Handle, error) {
	if !driver.mounted {
		return filetable.InvalidHandle, errors.NewWithMessage(
			errors.EINVAL, fmt.Sprintf("can't open %q: not mounted", path))
	}
	if err := filetable.ValidateName(path, driver.options.MaxPathLength); err != nil {
		return filetable.InvalidHandle, err
	}

	record, exists := driver.files.Lookup(path)
	if !exists {
		var err error
		record, err = driver.files.Create(path)
		if err != nil {
			return filetable.InvalidHandle, err
		}
		driver.logger.Debug("created file", "path", path)
	}

	file, err := driver.open.Open(record)
	if err != nil {
		return filetable.InvalidHandle, err
	}

	driver.logger.Debug("opened file", "path", path, "handle", file.Handle, "length", file.Length)
	return file.Handle, nil
}

// Close writes the handle's metadata back to the file table and releases the
// handle.
func (driver *Driver) Close(handle filetable.Handle) error {
	if err := driver.open.Close(handle); err != nil {
		return err
	}
	driver.logger.Debug("closed file", "handle", handle)
	return nil
}

// Seek moves the handle's cursor to `offset` bytes from the start of the file.
func (driver *Driver) Seek(handle filetable.Handle, offset int64) error {
	file, err := driver.open.Get(handle)
	if err != nil {
		return err
	}
	if offset < 0 || offset > file.Length {
		return errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf(
				"can't seek %q to %d: not in [0, %d]",
				file.Record.Name,
				offset,
				file.Length),
		)
	}
	file.Position = offset
	return nil
}

// Tell gives the handle's cursor position.
func (driver *Driver) Tell(handle filetable.Handle) (int64, error) {
	file, err := driver.open.Get(handle)
	if err != nil {
		return 0, err
	}
	return file.Position, nil
}

// Size gives the length of the file behind `handle`.
func (driver *Driver) Size(handle filetable.Handle) (int64, error) {
	file, err := driver.open.Get(handle)
	if err != nil {
		return 0, err
	}
	return file.Length, nil
}

// Stat describes the file at `path`. For an open file, the size reflects
// writes made through its handle.
func (driver *Driver) Stat(path string) (filetable.FileInfo, error) {
	if !driver.mounted {
		return filetable.FileInfo{}, errors.NewWithMessage(errors.EINVAL, "not mounted")
	}
	record, ok := driver.files.Lookup(path)
	if !ok {
		return filetable.FileInfo{}, errors.NewWithMessage(
			errors.ENOENT, fmt.Sprintf("no file named %q", path))
	}
	return driver.describe(record), nil
}

// Files describes every file created in this session, oldest first.
func (driver *Driver) Files() []filetable.FileInfo {
	records := driver.files.Records()
	result := make([]filetable.FileInfo, 0, len(records))
	for _, record := range records {
		result = append(result, driver.describe(record))
	}
	return result
}

func (driver *Driver) describe(record *filetable.Record) filetable.FileInfo {
	info := record.Info()
	if file, ok := driver.open.Find(record); ok && info.Open {
		info.Length = file.Length
		info.Sectors = file.Sectors
	}
	return info
}
