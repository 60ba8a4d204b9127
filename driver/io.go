package driver

import (
	"bytes"
	"fmt"

	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/filetable"
	"github.com/fs3io/fs3/protocol"
)

// moveHead seeks to `track` unless the head is already there. If the seek fails
// the head position is forgotten.
func (driver *Driver) moveHead(track protocol.TrackIndex) error {
	if driver.head == int64(track) {
		return nil
	}

	err := driver.submit(protocol.SeekCommand(track), nil)
	if err != nil {
		driver.head = headUnknown
		return err
	}
	driver.logger.Debug("moved head", "from", driver.head, "to", track)
	driver.head = int64(track)
	return nil
}

// readSector fills `buffer` with the contents of `addr`, from the cache if
// possible.
func (driver *Driver) readSector(addr common.DiskAddress, buffer []byte) error {
	if err := driver.moveHead(addr.Track); err != nil {
		return err
	}

	if cached, ok := driver.cache.Get(addr); ok {
		copy(buffer, cached)
		return nil
	}

	if err := driver.submit(protocol.ReadCommand(addr.Sector), buffer); err != nil {
		return err
	}
	return driver.cache.Put(addr, buffer)
}

// writeSector writes `payload` through to `addr` and leaves it in the cache.
func (driver *Driver) writeSector(addr common.DiskAddress, payload []byte) error {
	if err := driver.moveHead(addr.Track); err != nil {
		return err
	}

	if cached, ok := driver.cache.Get(addr); ok && bytes.Equal(cached, payload) {
		return driver.submit(protocol.WriteCommand(addr.Sector), cached)
	}

	if err := driver.submit(protocol.WriteCommand(addr.Sector), payload); err != nil {
		return err
	}
	return driver.cache.Put(addr, payload)
}

// sectorSpan returns the addresses of the file's sectors with indices
// [first, first+count), in (track, sector) order.
func (driver *Driver) sectorSpan(
	file *filetable.OpenFile, first, count int64,
) ([]common.DiskAddress, error) {
	addrs := file.Addresses.Span(int(first), int(count))
	if int64(len(addrs)) != count {
		return nil, errors.NewWithMessage(
			errors.EIO,
			fmt.Sprintf(
				"%q: wanted sectors [%d, %d) but the file only maps %d",
				file.Record.Name,
				first,
				first+count,
				file.Addresses.Len()),
		)
	}
	return addrs, nil
}

// readSectors fills `buffer` with `len(addrs)` consecutive sectors.
func (driver *Driver) readSectors(addrs []common.DiskAddress, buffer []byte) error {
	bps := int(driver.options.Geometry.BytesPerSector)
	for i, addr := range addrs {
		if err := driver.readSector(addr, buffer[i*bps:(i+1)*bps]); err != nil {
			return err
		}
	}
	return nil
}

func (driver *Driver) requireMounted(op string) error {
	if !driver.mounted {
		return errors.NewWithMessage(
			errors.EINVAL, fmt.Sprintf("can't %s: not mounted", op))
	}
	return nil
}

// Read copies up to `len(buffer)` bytes starting at the handle's cursor,
// stopping at the end of the file, and advances the cursor past them. If any
// sector can't be read, nothing is reported as read and the cursor stays put.
func (driver *Driver) Read(handle filetable.Handle, buffer []byte) (int, error) {
	if err := driver.requireMounted("read"); err != nil {
		return 0, err
	}
	file, err := driver.open.GetOpen(handle)
	if err != nil {
		return 0, err
	}

	count := min(int64(len(buffer)), file.Length-file.Position)
	if count <= 0 {
		return 0, nil
	}

	bps := int64(driver.options.Geometry.BytesPerSector)
	first := file.Position / bps
	last := (file.Position + count - 1) / bps

	addrs, err := driver.sectorSpan(file, first, last-first+1)
	if err != nil {
		return 0, err
	}

	span := make([]byte, int64(len(addrs))*bps)
	if err = driver.readSectors(addrs, span); err != nil {
		return 0, err
	}

	start := file.Position % bps
	copy(buffer, span[start:start+count])
	file.Position += count

	driver.logger.Debug(
		"read",
		"handle", handle,
		"bytes", count,
		"sectors", len(addrs),
		"position", file.Position)
	return int(count), nil
}

// Write stores `buffer` at the handle's cursor, growing the file if needed, and
// advances the cursor past it.
//
// New sectors are claimed all at once before anything is written. Sectors are
// then written through one at a time, so a failure partway leaves the earlier
// sectors written.
func (driver *Driver) Write(handle filetable.Handle, buffer []byte) (int, error) {
	if err := driver.requireMounted("write"); err != nil {
		return 0, err
	}
	file, err := driver.open.GetOpen(handle)
	if err != nil {
		return 0, err
	}

	count := int64(len(buffer))
	if count == 0 {
		return 0, nil
	}
	if file.Position+count > driver.options.MaxFileSize {
		return 0, errors.NewWithMessage(
			errors.EFBIG,
			fmt.Sprintf(
				"%q: writing %d bytes at %d would pass the %d-byte limit",
				file.Record.Name,
				count,
				file.Position,
				driver.options.MaxFileSize),
		)
	}

	bps := int64(driver.options.Geometry.BytesPerSector)
	first := file.Position / bps
	last := (file.Position + count - 1) / bps
	existing := file.Sectors

	if needed := last + 1 - file.Sectors; needed > 0 {
		claimed, err := driver.alloc.Allocate(uint(needed))
		if err != nil {
			return 0, err
		}
		for _, addr := range claimed {
			file.Addresses.Add(addr)
		}
		file.Sectors += needed
		driver.logger.Debug(
			"grew file",
			"handle", handle,
			"new_sectors", needed,
			"free_sectors", driver.alloc.FreeCount())
	}

	addrs, err := driver.sectorSpan(file, first, last-first+1)
	if err != nil {
		return 0, err
	}

	// Sectors that held data before this call are read in first so the bytes
	// around the written range survive.
	work := make([]byte, int64(len(addrs))*bps)
	if first < existing {
		preexisting := min(existing, last+1) - first
		err = driver.readSectors(addrs[:preexisting], work[:preexisting*bps])
		if err != nil {
			return 0, err
		}
	}
	copy(work[file.Position%bps:], buffer)

	for i, addr := range addrs {
		if err = driver.writeSector(addr, work[int64(i)*bps:int64(i+1)*bps]); err != nil {
			return 0, err
		}
	}

	file.Position += count
	file.Length = max(file.Length, file.Position)

	driver.logger.Debug(
		"wrote",
		"handle", handle,
		"bytes", count,
		"sectors", len(addrs),
		"length", file.Length)
	return int(count), nil
}
