package testing

import (
	"net"
	"testing"

	"github.com/fs3io/fs3/cache"
	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/controller"
	"github.com/fs3io/fs3/driver"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// SmallGeometry is a disk small enough to fill up in a test: 4 tracks of 8
// sectors, 64 bytes each.
var SmallGeometry = common.Geometry{Tracks: 4, SectorsPerTrack: 8, BytesPerSector: 64}

// NewMemoryController creates an unmounted controller whose disk lives in
// `backingData`. Pass nil to get an image of random bytes. Writes through the
// controller are visible in `backingData`.
func NewMemoryController(
	t *testing.T, geometry common.Geometry, backingData []byte,
) *controller.Controller {
	if backingData == nil {
		backingData = CreateRandomImage(t, geometry.BytesPerSector, geometry.TotalSectors())
	}
	require.EqualValues(
		t,
		geometry.TotalSizeBytes(),
		len(backingData),
		"image is the wrong size for the geometry",
	)

	ctrl, err := controller.New(
		bytesextra.NewReadWriteSeeker(backingData), geometry, QuietLogger())
	require.NoError(t, err, "failed to create controller")
	return ctrl
}

// NewCache creates an initialized cache with `lines` lines for `geometry`. It's
// closed when the test finishes.
func NewCache(t *testing.T, geometry common.Geometry, lines uint) *cache.SectorCache {
	sectorCache := cache.New(geometry.BytesPerSector, QuietLogger())
	require.NoError(t, sectorCache.Init(lines), "failed to initialize cache")
	t.Cleanup(func() {
		if sectorCache.Initialized() {
			sectorCache.Close()
		}
	})
	return sectorCache
}

// NewUnmountedDriver creates a driver on top of a fresh in-memory controller.
func NewUnmountedDriver(
	t *testing.T, geometry common.Geometry, cacheLines uint,
) (*driver.Driver, *controller.Controller) {
	ctrl := NewMemoryController(t, geometry, nil)

	options := driver.DefaultOptions()
	options.Geometry = geometry
	options.Logger = QuietLogger()

	fs, err := driver.New(ctrl, NewCache(t, geometry, cacheLines), options)
	require.NoError(t, err, "failed to create driver")
	return fs, ctrl
}

// NewMountedDriver is like [NewUnmountedDriver] but also mounts the driver,
// and unmounts it when the test finishes if the test hasn't.
func NewMountedDriver(
	t *testing.T, geometry common.Geometry, cacheLines uint,
) (*driver.Driver, *controller.Controller) {
	fs, ctrl := NewUnmountedDriver(t, geometry, cacheLines)
	require.NoError(t, fs.Mount(), "mount failed")
	t.Cleanup(func() {
		if fs.Mounted() {
			fs.Unmount()
		}
	})
	return fs, ctrl
}

// StartServer serves `ctrl` on a random loopback port until the test finishes,
// and returns the address to dial.
func StartServer(t *testing.T, ctrl *controller.Controller) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to listen on loopback")

	server := controller.NewServer(ctrl, QuietLogger())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(listener)
	}()

	t.Cleanup(func() {
		server.Close()
		require.NoError(t, <-done, "server exited with an error")
	})
	return listener.Addr().String()
}
