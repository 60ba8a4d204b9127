// Package common contains definitions of fundamental types shared by the cache,
// the file tables, and the driver.
package common

import (
	"fmt"

	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/protocol"
)

// DiskAddress identifies one physical sector on the disk.
type DiskAddress struct {
	Track  protocol.TrackIndex
	Sector protocol.SectorIndex
}

func (addr DiskAddress) String() string {
	return fmt.Sprintf("[trk %d, sec %d]", addr.Track, addr.Sector)
}

// Geometry describes the fixed layout of a controller's disk.
type Geometry struct {
	Tracks          uint
	SectorsPerTrack uint
	BytesPerSector  uint
}

// DefaultGeometry is the layout of the reference FS3 controller.
var DefaultGeometry = Geometry{
	Tracks:          64,
	SectorsPerTrack: 1024,
	BytesPerSector:  1024,
}

// Validate checks that every dimension is non-zero and fits the protocol's
// track and sector fields.
func (g Geometry) Validate() error {
	if g.Tracks == 0 || g.SectorsPerTrack == 0 || g.BytesPerSector == 0 {
		return errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf("geometry has a zero dimension: %+v", g),
		)
	}
	if uint64(g.Tracks-1) > uint64(^protocol.TrackIndex(0)) {
		return errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf("%d tracks don't fit the protocol's track field", g.Tracks),
		)
	}
	if uint64(g.SectorsPerTrack-1) > uint64(^protocol.SectorIndex(0)) {
		return errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf(
				"%d sectors per track don't fit the protocol's sector field",
				g.SectorsPerTrack),
		)
	}
	return nil
}

// TotalSectors gives the number of addressable sectors on the disk.
func (g Geometry) TotalSectors() uint {
	return g.Tracks * g.SectorsPerTrack
}

// TotalSizeBytes gives the raw capacity of the disk.
func (g Geometry) TotalSizeBytes() int64 {
	return int64(g.TotalSectors()) * int64(g.BytesPerSector)
}

// Contains reports whether `addr` lies inside the geometry.
func (g Geometry) Contains(addr DiskAddress) bool {
	return uint(addr.Track) < g.Tracks && uint(addr.Sector) < g.SectorsPerTrack
}

// Index converts an address into its linear position. Increasing linear index
// is increasing (track, sector) order.
func (g Geometry) Index(addr DiskAddress) int {
	return int(addr.Track)*int(g.SectorsPerTrack) + int(addr.Sector)
}

// Address is the inverse of [Geometry.Index].
func (g Geometry) Address(index int) DiskAddress {
	return DiskAddress{
		Track:  protocol.TrackIndex(index / int(g.SectorsPerTrack)),
		Sector: protocol.SectorIndex(index % int(g.SectorsPerTrack)),
	}
}

// SectorsForLength gives the minimum number of sectors required to hold
// `length` bytes.
func (g Geometry) SectorsForLength(length int64) int64 {
	bps := int64(g.BytesPerSector)
	return (length + bps - 1) / bps
}
