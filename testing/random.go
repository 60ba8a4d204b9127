package testing

import (
	"crypto/rand"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateRandomBuffer returns `size` random bytes. It is guaranteed to either
// return a valid slice or fail the test and abort.
func CreateRandomBuffer(t *testing.T, size int) []byte {
	buffer := make([]byte, size)
	_, err := rand.Read(buffer)
	require.NoErrorf(t, err, "failed to fill %d bytes with random data", size)
	return buffer
}

// CreateRandomImage creates an image with the given number of sectors and bytes
// per sector, filled with random bytes.
func CreateRandomImage(t *testing.T, bytesPerSector, totalSectors uint) []byte {
	return CreateRandomBuffer(t, int(bytesPerSector*totalSectors))
}

// QuietLogger returns a logger that throws everything away.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
