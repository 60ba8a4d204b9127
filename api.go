package fs3

import (
	"github.com/fs3io/fs3/filetable"
	"github.com/fs3io/fs3/protocol"
)

// DefaultPort is the TCP port the reference controller listens on.
const DefaultPort = 22887

// DefaultAddress is where clients look for a controller when none is
// configured.
const DefaultAddress = "127.0.0.1:22887"

// Transport carries one command to the disk controller and brings back its
// reply.
//
// For WriteSector, `payload` must be exactly one sector and is sent after the
// command word. For ReadSector, `payload` must be exactly one sector and is
// filled with the data following the reply word. Other opcodes ignore it, so
// nil is fine.
//
// A failed exchange (connection loss, short frame) is reported as an EIO error.
// A controller that answered but refused the command is not an error at this
// level: the reply's status bit is set instead.
type Transport interface {
	Submit(cmd protocol.CommandBlock, payload []byte) (protocol.CommandBlock, error)
}

// FileSystem is the POSIX-like interface exposed by the driver.
type FileSystem interface {
	// Mount starts a session with the controller. It must not be called while
	// already mounted.
	Mount() error

	// Unmount closes every open handle and ends the session. The file system
	// is unmounted afterwards even if an error is returned.
	Unmount() error

	// Open returns a handle onto the file at `path`, creating an empty file if
	// none exists. A file can only have one handle at a time.
	Open(path string) (filetable.Handle, error)
	Close(handle filetable.Handle) error

	// Read fills `buffer` from the handle's cursor, stopping at end of file, and
	// advances the cursor by the number of bytes read.
	Read(handle filetable.Handle, buffer []byte) (int, error)

	// Write stores `buffer` at the handle's cursor, growing the file as needed,
	// and advances the cursor past it.
	Write(handle filetable.Handle, buffer []byte) (int, error)

	// Seek moves the cursor to `offset` bytes from the start of the file. The
	// offset can't be past the end of the file.
	Seek(handle filetable.Handle, offset int64) error
}
