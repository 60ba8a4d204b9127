// Bitmap allocator over (track, sector) addresses

package common

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/fs3io/fs3/errors"
)

// AddressSet records which sectors of the disk belong to one object. It has
// one bit per sector in (track, sector) order.
type AddressSet struct {
	bits     bitmap.Bitmap
	geometry Geometry
	count    int
}

// NewAddressSet creates an empty set shaped for `geometry`.
func NewAddressSet(geometry Geometry) AddressSet {
	return AddressSet{
		bits:     bitmap.New(int(geometry.TotalSectors())),
		geometry: geometry,
	}
}

// Contains reports whether `addr` is in the set.
func (set *AddressSet) Contains(addr DiskAddress) bool {
	if !set.geometry.Contains(addr) {
		return false
	}
	return set.bits.Get(set.geometry.Index(addr))
}

// Add puts `addr` into the set. Adding an address twice is a no-op.
func (set *AddressSet) Add(addr DiskAddress) {
	index := set.geometry.Index(addr)
	if !set.bits.Get(index) {
		set.bits.Set(index, true)
		set.count++
	}
}

// Len gives the number of addresses in the set.
func (set *AddressSet) Len() int {
	return set.count
}

// Clone returns a deep copy of the set.
func (set *AddressSet) Clone() AddressSet {
	bitsCopy := make(bitmap.Bitmap, len(set.bits))
	copy(bitsCopy, set.bits)
	return AddressSet{
		bits:     bitsCopy,
		geometry: set.geometry,
		count:    set.count,
	}
}

// Clear removes every address from the set.
func (set *AddressSet) Clear() {
	for i := range set.bits {
		set.bits[i] = 0
	}
	set.count = 0
}

// Span returns up to `count` addresses of the set in increasing (track, sector)
// order, skipping the first `skip` of them.
func (set *AddressSet) Span(skip, count int) []DiskAddress {
	if count <= 0 {
		return nil
	}

	result := make([]DiskAddress, 0, count)
	seen := 0
	for byteIndex, b := range set.bits {
		// Whole bytes of unused sectors are common, skip them quickly.
		if b == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			index := byteIndex*8 + bit
			if !set.bits.Get(index) {
				continue
			}
			if seen >= skip {
				result = append(result, set.geometry.Address(index))
				if len(result) == count {
					return result
				}
			}
			seen++
		}
	}
	return result
}

// Addresses returns every address in the set in (track, sector) order.
func (set *AddressSet) Addresses() []DiskAddress {
	return set.Span(0, set.count)
}

////////////////////////////////////////////////////////////////////////////////

// AllocationMap tracks which sectors of the disk are in use by any file.
type AllocationMap struct {
	AllocationBitmap bitmap.Bitmap
	geometry         Geometry
	inUse            uint
	// Every sector below this index is known to be in use.
	lowestMaybeFree int
}

// NewAllocationMap creates a new allocation map with every sector free.
func NewAllocationMap(geometry Geometry) *AllocationMap {
	return &AllocationMap{
		AllocationBitmap: bitmap.New(int(geometry.TotalSectors())),
		geometry:         geometry,
	}
}

// Geometry returns the layout the map was created for.
func (alloc *AllocationMap) Geometry() Geometry {
	return alloc.geometry
}

// FreeCount gives the number of sectors not claimed by any file.
func (alloc *AllocationMap) FreeCount() uint {
	return alloc.geometry.TotalSectors() - alloc.inUse
}

// InUse reports whether `addr` is claimed.
func (alloc *AllocationMap) InUse(addr DiskAddress) bool {
	if !alloc.geometry.Contains(addr) {
		return false
	}
	return alloc.AllocationBitmap.Get(alloc.geometry.Index(addr))
}

// AllocateSingle claims the first free sector in (track, sector) order and
// returns its address. If no sectors are available, it returns ENOSPC.
func (alloc *AllocationMap) AllocateSingle() (DiskAddress, error) {
	total := int(alloc.geometry.TotalSectors())
	for i := alloc.lowestMaybeFree; i < total; i++ {
		if !alloc.AllocationBitmap.Get(i) {
			alloc.AllocationBitmap.Set(i, true)
			alloc.inUse++
			alloc.lowestMaybeFree = i + 1
			return alloc.geometry.Address(i), nil
		}
	}

	return DiskAddress{}, errors.NewWithMessage(
		errors.ENOSPC, "no free track/sector left on the disk")
}

// Allocate claims `count` sectors first-fit. Either all of them are claimed or,
// if there isn't enough free space, none are and ENOSPC is returned.
func (alloc *AllocationMap) Allocate(count uint) ([]DiskAddress, error) {
	if count > alloc.FreeCount() {
		return nil, errors.NewWithMessage(
			errors.ENOSPC,
			fmt.Sprintf(
				"need %d sectors but only %d are free", count, alloc.FreeCount()),
		)
	}

	// The free count was checked above, so every AllocateSingle succeeds.
	claimed := make([]DiskAddress, count)
	for i := range claimed {
		addr, err := alloc.AllocateSingle()
		if err != nil {
			return nil, err
		}
		claimed[i] = addr
	}
	return claimed, nil
}

// FreeSingle releases a claimed sector. Trying to free a sector that isn't
// claimed returns EALREADY.
func (alloc *AllocationMap) FreeSingle(addr DiskAddress) error {
	if !alloc.geometry.Contains(addr) {
		msg := fmt.Sprintf(
			"invalid address %s: not in [0, %d) x [0, %d)",
			addr,
			alloc.geometry.Tracks,
			alloc.geometry.SectorsPerTrack)
		return errors.NewWithMessage(errors.EINVAL, msg)
	}

	index := alloc.geometry.Index(addr)
	if !alloc.AllocationBitmap.Get(index) {
		msg := fmt.Sprintf("sector %s is already free", addr)
		return errors.NewWithMessage(errors.EALREADY, msg)
	}

	alloc.AllocationBitmap.Set(index, false)
	alloc.inUse--
	if index < alloc.lowestMaybeFree {
		alloc.lowestMaybeFree = index
	}
	return nil
}

// Reset marks every sector as free.
func (alloc *AllocationMap) Reset() {
	for i := range alloc.AllocationBitmap {
		alloc.AllocationBitmap[i] = 0
	}
	alloc.inUse = 0
	alloc.lowestMaybeFree = 0
}
