package common_test

import (
	"testing"

	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tinyGeometry = common.Geometry{Tracks: 3, SectorsPerTrack: 4, BytesPerSector: 16}

func TestAllocationMap__FirstFitOrder(t *testing.T) {
	alloc := common.NewAllocationMap(tinyGeometry)

	for i := 0; i < 6; i++ {
		addr, err := alloc.AllocateSingle()
		require.NoError(t, err)
		assert.Equal(t, tinyGeometry.Address(i), addr)
		assert.True(t, alloc.InUse(addr))
	}
	assert.EqualValues(t, 6, alloc.FreeCount())

	// Freeing a low address makes it the next one handed out.
	require.NoError(t, alloc.FreeSingle(common.DiskAddress{Track: 0, Sector: 2}))
	addr, err := alloc.AllocateSingle()
	require.NoError(t, err)
	assert.Equal(t, common.DiskAddress{Track: 0, Sector: 2}, addr)

	addr, err = alloc.AllocateSingle()
	require.NoError(t, err)
	assert.Equal(t, common.DiskAddress{Track: 1, Sector: 2}, addr)
}

func TestAllocationMap__Exhaustion(t *testing.T) {
	alloc := common.NewAllocationMap(tinyGeometry)

	claimed, err := alloc.Allocate(12)
	require.NoError(t, err)
	assert.Len(t, claimed, 12)
	assert.EqualValues(t, 0, alloc.FreeCount())

	_, err = alloc.AllocateSingle()
	assert.ErrorIs(t, err, errors.ErrNoSpaceOnDevice)
}

func TestAllocationMap__AllocateIsAllOrNothing(t *testing.T) {
	alloc := common.NewAllocationMap(tinyGeometry)
	_, err := alloc.Allocate(10)
	require.NoError(t, err)

	_, err = alloc.Allocate(3)
	assert.ErrorIs(t, err, errors.ErrNoSpaceOnDevice)
	assert.EqualValues(t, 2, alloc.FreeCount(), "failed allocation claimed sectors")
}

func TestAllocationMap__FreeErrors(t *testing.T) {
	alloc := common.NewAllocationMap(tinyGeometry)

	err := alloc.FreeSingle(common.DiskAddress{Track: 0, Sector: 0})
	assert.ErrorIs(t, err, errors.ErrAlreadyInProgress)

	err = alloc.FreeSingle(common.DiskAddress{Track: 3, Sector: 0})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestAllocationMap__Reset(t *testing.T) {
	alloc := common.NewAllocationMap(tinyGeometry)
	_, err := alloc.Allocate(5)
	require.NoError(t, err)

	alloc.Reset()
	assert.EqualValues(t, 12, alloc.FreeCount())
	addr, err := alloc.AllocateSingle()
	require.NoError(t, err)
	assert.Equal(t, common.DiskAddress{}, addr)
}

func TestAddressSet__SpanOrder(t *testing.T) {
	set := common.NewAddressSet(tinyGeometry)
	set.Add(common.DiskAddress{Track: 2, Sector: 1})
	set.Add(common.DiskAddress{Track: 0, Sector: 3})
	set.Add(common.DiskAddress{Track: 1, Sector: 0})
	set.Add(common.DiskAddress{Track: 1, Sector: 0})

	assert.Equal(t, 3, set.Len())
	assert.Equal(
		t,
		[]common.DiskAddress{{Track: 0, Sector: 3}, {Track: 1, Sector: 0}, {Track: 2, Sector: 1}},
		set.Addresses())
	assert.Equal(
		t,
		[]common.DiskAddress{{Track: 1, Sector: 0}},
		set.Span(1, 1))
	assert.Equal(
		t,
		[]common.DiskAddress{{Track: 2, Sector: 1}},
		set.Span(2, 5))
	assert.Empty(t, set.Span(3, 1))
}

func TestAddressSet__CloneIsIndependent(t *testing.T) {
	set := common.NewAddressSet(tinyGeometry)
	set.Add(common.DiskAddress{Track: 0, Sector: 1})

	clone := set.Clone()
	clone.Add(common.DiskAddress{Track: 2, Sector: 3})
	set.Clear()

	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Contains(common.DiskAddress{Track: 0, Sector: 1}))
	assert.Equal(t, 2, clone.Len())
	assert.True(t, clone.Contains(common.DiskAddress{Track: 0, Sector: 1}))
	assert.False(t, clone.Contains(common.DiskAddress{Track: 9, Sector: 9}))
}

func TestGeometry__Validate(t *testing.T) {
	assert.NoError(t, common.DefaultGeometry.Validate())
	assert.ErrorIs(
		t,
		common.Geometry{Tracks: 1, SectorsPerTrack: 0, BytesPerSector: 1}.Validate(),
		errors.ErrInvalidArgument)
	assert.ErrorIs(
		t,
		common.Geometry{Tracks: 1, SectorsPerTrack: 70000, BytesPerSector: 1}.Validate(),
		errors.ErrInvalidArgument)
	assert.EqualValues(t, 2, tinyGeometry.SectorsForLength(17))
	assert.EqualValues(t, 1, tinyGeometry.SectorsForLength(16))
	assert.EqualValues(t, 0, tinyGeometry.SectorsForLength(0))
}
