package driver

import (
	"fmt"
	"log/slog"

	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/errors"
)

const (
	DefaultMaxFileSize   = 10_000_000
	DefaultMaxTotalFiles = 1024
	DefaultMaxPathLength = 128
)

// Options configures a [Driver].
type Options struct {
	Geometry common.Geometry

	// MaxFileSize is the largest a file can grow, in bytes.
	MaxFileSize int64

	// MaxTotalFiles limits how many distinct paths can be created in one mount
	// session.
	MaxTotalFiles int
	MaxPathLength int

	// Logger receives the driver's log messages. Nil means [slog.Default].
	Logger *slog.Logger
}

// DefaultOptions returns the settings of the reference FS3 system.
func DefaultOptions() Options {
	return Options{
		Geometry:      common.DefaultGeometry,
		MaxFileSize:   DefaultMaxFileSize,
		MaxTotalFiles: DefaultMaxTotalFiles,
		MaxPathLength: DefaultMaxPathLength,
	}
}

func (options Options) validate() error {
	if err := options.Geometry.Validate(); err != nil {
		return err
	}
	if options.MaxFileSize <= 0 || options.MaxTotalFiles <= 0 || options.MaxPathLength <= 0 {
		return errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf(
				"limits must be positive: max file size %d, max files %d, max path %d",
				options.MaxFileSize,
				options.MaxTotalFiles,
				options.MaxPathLength),
		)
	}
	return nil
}
