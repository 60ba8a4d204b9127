package errors_test

import (
	goerrors "errors"
	"io"
	"testing"

	"github.com/fs3io/fs3/errors"
	"github.com/stretchr/testify/assert"
)

func TestDriverErrorWithMessage(t *testing.T) {
	newErr := errors.ErrNoDevice.WithMessage("asdfqwerty")
	assert.Equal(t, "No such device: asdfqwerty", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, errors.ErrNoDevice)
	assert.EqualValues(t, errors.ENODEV, newErr.Errno())
}

func TestDriverErrorNewWithMessage__MatchesSentinel(t *testing.T) {
	err := errors.NewWithMessage(errors.EFBIG, "write of 20 bytes at 9999990")
	assert.ErrorIs(t, err, errors.ErrFileTooLarge)
	assert.NotErrorIs(t, err, errors.ErrNoSpaceOnDevice)
}

func TestDriverErrorNewFromError(t *testing.T) {
	originalErr := io.ErrUnexpectedEOF
	newErr := errors.NewFromError(errors.EIO, originalErr)

	assert.Equal(t, "Input/output error: unexpected EOF", newErr.Error())
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, errors.ErrIOFailed, "errno sentinel not matched")
}

func TestDriverErrorWrap(t *testing.T) {
	cause := goerrors.New("connection reset")
	base := errors.ErrIOFailed.WithMessage("seek to track 3 failed")
	wrapped := errors.Wrap(base, cause)

	assert.Equal(
		t,
		"Input/output error: seek to track 3 failed: connection reset",
		wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, errors.ErrIOFailed)
}

func TestStrError__Unknown(t *testing.T) {
	assert.Equal(t, "error 999 not recognized.", errors.StrError(errors.Errno(999)))
}
