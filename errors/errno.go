// POSIX-style errno codes shared by every layer of the file system. The syscall
// package doesn't define all of these on every platform, so we carry our own.

package errors

import (
	"fmt"
)

type Errno int

var errorMessagesByCode map[Errno]string

const (
	EOK Errno = iota
	ENOENT
	EIO
	EBADF
	EBUSY
	ENODEV
	EINVAL
	ENFILE
	EFBIG
	ENOSPC
	ENAMETOOLONG
	EBADFD
	EALREADY
	EPROTO
	ENOTCONN
)

var ErrNotFound = New(ENOENT)
var ErrIOFailed = New(EIO)
var ErrInvalidFileDescriptor = New(EBADF)
var ErrBusy = New(EBUSY)
var ErrNoDevice = New(ENODEV)
var ErrInvalidArgument = New(EINVAL)
var ErrTooManyOpenFiles = New(ENFILE)
var ErrFileTooLarge = New(EFBIG)
var ErrNoSpaceOnDevice = New(ENOSPC)
var ErrNameTooLong = New(ENAMETOOLONG)
var ErrFileDescriptorBadState = New(EBADFD)
var ErrAlreadyInProgress = New(EALREADY)
var ErrProtocol = New(EPROTO)
var ErrNotConnected = New(ENOTCONN)

func init() {
	errorMessagesByCode = make(map[Errno]string, 16)
	errorMessagesByCode[EOK] = "Success"
	errorMessagesByCode[ENOENT] = "No such file or directory"
	errorMessagesByCode[EIO] = "Input/output error"
	errorMessagesByCode[EBADF] = "Bad file descriptor"
	errorMessagesByCode[EBUSY] = "Device or resource busy"
	errorMessagesByCode[ENODEV] = "No such device"
	errorMessagesByCode[EINVAL] = "Invalid argument"
	errorMessagesByCode[ENFILE] = "Too many open files in system"
	errorMessagesByCode[EFBIG] = "File too large"
	errorMessagesByCode[ENOSPC] = "No space left on device"
	errorMessagesByCode[ENAMETOOLONG] = "File name too long"
	errorMessagesByCode[EBADFD] = "File descriptor in bad state"
	errorMessagesByCode[EALREADY] = "Operation already in progress"
	errorMessagesByCode[EPROTO] = "Protocol error"
	errorMessagesByCode[ENOTCONN] = "Transport endpoint is not connected"
}

func StrError(code Errno) string {
	message, ok := errorMessagesByCode[code]
	if ok {
		return message
	}
	return fmt.Sprintf("error %d not recognized.", int(code))
}
