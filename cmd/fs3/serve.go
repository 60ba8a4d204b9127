package main

import (
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fs3io/fs3/controller"
	"github.com/fs3io/fs3/disks"
	"github.com/urfave/cli/v2"
	"github.com/xaionaro-go/bytesextra"
)

// openImage returns the disk image for `preset`. With no path the disk lives in
// memory. An image file that's too small is extended with zeros.
func openImage(path string, preset disks.Preset) (io.ReadWriteSeeker, func() error, error) {
	if path == "" {
		image := bytesextra.NewReadWriteSeeker(make([]byte, preset.TotalSizeBytes()))
		return image, func() error { return nil }, nil
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	if stat.Size() < preset.TotalSizeBytes() {
		if err = file.Truncate(preset.TotalSizeBytes()); err != nil {
			file.Close()
			return nil, nil, err
		}
	}
	return file, file.Close, nil
}

func serve(cliContext *cli.Context) error {
	preset, err := disks.Lookup(cliContext.String("geometry"))
	if err != nil {
		return err
	}

	image, closeImage, err := openImage(cliContext.Path("image"), preset)
	if err != nil {
		return err
	}
	defer closeImage()

	ctrl, err := controller.New(image, preset.Geometry(), slog.Default())
	if err != nil {
		return err
	}
	server := controller.NewServer(ctrl, slog.Default())

	ctx, stop := signal.NotifyContext(cliContext.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info(
		"starting controller",
		"geometry", preset.Slug,
		"image", cliContext.Path("image"),
		"listen", cliContext.String("listen"))
	err = server.ListenAndServe(cliContext.String("listen"))

	stats := ctrl.Stats()
	slog.Info(
		"controller stopped",
		"mounts", stats.Mounts,
		"seeks", stats.Seeks,
		"reads", stats.Reads,
		"writes", stats.Writes,
		"rejected", stats.Rejected)
	return err
}
