package driver

import (
	"fmt"
	"io"

	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/filetable"
)

// File is a file-like wrapper around a driver handle that emulates a subset of
// the functionality provided by an [os.File] instance.
type File struct {
	// Interfaces
	io.Closer
	io.ReaderFrom
	io.ReadWriteSeeker
	io.StringWriter
	io.WriterTo

	// Fields
	driver *Driver
	handle filetable.Handle
	name   string
}

// OpenFile opens `path` like [Driver.Open] and wraps the handle in a [File].
func (driver *Driver) OpenFile(path string) (*File, error) {
	handle, err := driver.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{driver: driver, handle: handle, name: path}, nil
}

// Name gives the path the file was opened with.
func (file *File) Name() string {
	return file.name
}

// Handle gives the driver handle behind the file.
func (file *File) Handle() filetable.Handle {
	return file.handle
}

// Close releases the handle. The file should not be used afterwards.
func (file *File) Close() error {
	return file.driver.Close(file.handle)
}

// Read fills `buffer` from the current position. If the end of the file is
// reached before `buffer` is full, the bytes read are returned along with
// [io.EOF].
func (file *File) Read(buffer []byte) (int, error) {
	n, err := file.driver.Read(file.handle, buffer)
	if err != nil {
		return n, err
	}
	if n < len(buffer) {
		return n, io.EOF
	}
	return n, nil
}

func (file *File) Write(buffer []byte) (int, error) {
	return file.driver.Write(file.handle, buffer)
}

// WriteString writes a string to the file.
func (file *File) WriteString(s string) (int, error) {
	return file.Write([]byte(s))
}

// Seek moves the file position to `offset` bytes from the origin specified in
// `whence`. It must be one of [io.SeekStart], [io.SeekCurrent], or [io.SeekEnd].
//
// Unlike an [os.File], the position can't go past the end of the file.
func (file *File) Seek(offset int64, whence int) (int64, error) {
	position, err := file.Tell()
	if err != nil {
		return 0, err
	}
	size, err := file.Size()
	if err != nil {
		return position, err
	}

	var absoluteOffset int64
	switch whence {
	case io.SeekStart:
		absoluteOffset = offset
	case io.SeekCurrent:
		absoluteOffset = position + offset
	case io.SeekEnd:
		absoluteOffset = size + offset
	default:
		return position, errors.NewWithMessage(
			errors.EINVAL, fmt.Sprintf("invalid seek origin: %d", whence))
	}

	if absoluteOffset < 0 {
		return position, errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf(
				"result of Seek(offset=%d, whence=%d) is negative",
				offset,
				whence,
			),
		)
	}

	if err = file.driver.Seek(file.handle, absoluteOffset); err != nil {
		return position, err
	}
	return absoluteOffset, nil
}

// Size returns the size of the file, in bytes.
func (file *File) Size() (int64, error) {
	return file.driver.Size(file.handle)
}

// Tell returns the current file position. It's a more concise way of calling
// `Seek(0, io.SeekCurrent)`.
func (file *File) Tell() (int64, error) {
	return file.driver.Tell(file.handle)
}

// ReadFrom copies `r` into the file, one sector at a time, until `r` hits EOF.
func (file *File) ReadFrom(r io.Reader) (int64, error) {
	buffer := make([]byte, file.driver.Geometry().BytesPerSector)

	totalBytesRead := int64(0)
	for {
		lastReadSize, readErr := r.Read(buffer)
		totalBytesRead += int64(lastReadSize)

		if lastReadSize > 0 {
			if _, writeErr := file.Write(buffer[:lastReadSize]); writeErr != nil {
				return totalBytesRead, writeErr
			}
		}
		if readErr == io.EOF {
			return totalBytesRead, nil
		} else if readErr != nil {
			return totalBytesRead, readErr
		}
	}
}

// WriteTo copies the rest of the file, from the current position on, into `w`.
func (file *File) WriteTo(w io.Writer) (int64, error) {
	buffer := make([]byte, file.driver.Geometry().BytesPerSector)
	totalWritten := int64(0)

	for {
		blockSize, err := file.Read(buffer)

		// Always write the data we've read in regardless of whether an error
		// occurred or not.
		if blockSize > 0 {
			written, writeErr := w.Write(buffer[:blockSize])
			totalWritten += int64(written)
			if writeErr != nil {
				return totalWritten, writeErr
			}
		}

		// If we hit EOF, we're done. Any other error is fatal.
		if err == io.EOF {
			return totalWritten, nil
		} else if err != nil {
			return totalWritten, err
		}
	}
}
