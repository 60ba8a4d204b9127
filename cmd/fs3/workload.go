package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"

	"github.com/fs3io/fs3"
	"github.com/fs3io/fs3/cache"
	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/controller"
	"github.com/fs3io/fs3/disks"
	"github.com/fs3io/fs3/driver"
	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/filetable"
	"github.com/fs3io/fs3/transport"
	"github.com/gocarina/gocsv"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"github.com/xaionaro-go/bytesextra"
)

type workloadConfig struct {
	Files int
	Ops   int
	Seed  int64
}

type workloadReport struct {
	Ops          int
	Writes       int
	Reads        int
	Seeks        int
	Reopens      int
	BytesWritten int64
	BytesRead    int64
}

// metricsRow is what `workload --metrics-csv` prints: one row combining the
// workload counters with the cache's.
type metricsRow struct {
	Ops          int    `csv:"ops"`
	Writes       int    `csv:"writes"`
	Reads        int    `csv:"reads"`
	BytesWritten int64  `csv:"bytes_written"`
	BytesRead    int64  `csv:"bytes_read"`
	CacheLines   uint   `csv:"cache_lines"`
	CacheInserts uint64 `csv:"cache_inserts"`
	CacheGets    uint64 `csv:"cache_gets"`
	CacheHits    uint64 `csv:"cache_hits"`
	CacheMisses  uint64 `csv:"cache_misses"`
	HitRatio     string `csv:"hit_ratio_pct"`
}

// workloadFile tracks what one file should contain.
type workloadFile struct {
	name     string
	handle   filetable.Handle
	expected []byte
	position int64
}

// runWorkload performs `cfg.Ops` random operations on `cfg.Files` files and
// checks every read against what was written. Files are kept small enough that
// all of them fit on the disk together.
func runWorkload(fs *driver.Driver, cfg workloadConfig, logger *slog.Logger) (workloadReport, error) {
	var report workloadReport
	if cfg.Files <= 0 || cfg.Ops < 0 {
		return report, errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf("need at least one file and no negative op count, got %+v", cfg))
	}

	geometry := fs.Geometry()
	bps := int64(geometry.BytesPerSector)
	// Leave a sector of slack per file for partially filled last sectors.
	perFile := geometry.TotalSizeBytes()/int64(cfg.Files) - bps
	perFile = min(perFile, driver.DefaultMaxFileSize)
	if perFile < 1 {
		return report, errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf("%d files don't fit on a %d-byte disk", cfg.Files, geometry.TotalSizeBytes()))
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	files := make([]*workloadFile, cfg.Files)
	for i := range files {
		name := "workload-" + strconv.Itoa(i)
		handle, err := fs.Open(name)
		if err != nil {
			return report, err
		}
		files[i] = &workloadFile{name: name, handle: handle}
	}

	for op := 0; op < cfg.Ops; op++ {
		file := files[rng.Intn(len(files))]
		report.Ops++

		switch rng.Intn(5) {
		case 0, 1:
			length := 1 + rng.Int63n(2*bps)
			if file.position+length > perFile {
				length = perFile - file.position
			}
			if length <= 0 {
				continue
			}
			data := make([]byte, length)
			rng.Read(data)

			if _, err := fs.Write(file.handle, data); err != nil {
				return report, err
			}
			end := file.position + length
			if end > int64(len(file.expected)) {
				file.expected = append(file.expected, make([]byte, end-int64(len(file.expected)))...)
			}
			copy(file.expected[file.position:], data)
			file.position = end
			report.Writes++
			report.BytesWritten += length

		case 2:
			buffer := make([]byte, 1+rng.Int63n(2*bps))
			n, err := fs.Read(file.handle, buffer)
			if err != nil {
				return report, err
			}
			end := min(file.position+int64(len(buffer)), int64(len(file.expected)))
			if !bytes.Equal(buffer[:n], file.expected[file.position:end]) {
				return report, errors.NewWithMessage(
					errors.EIO,
					fmt.Sprintf(
						"op %d: %q returned wrong data for [%d, %d)",
						op,
						file.name,
						file.position,
						end),
				)
			}
			file.position = end
			report.Reads++
			report.BytesRead += int64(n)

		case 3:
			target := rng.Int63n(int64(len(file.expected)) + 1)
			if err := fs.Seek(file.handle, target); err != nil {
				return report, err
			}
			file.position = target
			report.Seeks++

		case 4:
			if err := fs.Close(file.handle); err != nil {
				return report, err
			}
			handle, err := fs.Open(file.name)
			if err != nil {
				return report, err
			}
			file.handle = handle
			file.position = 0
			report.Reopens++
		}
	}

	logger.Info(
		"workload finished",
		"ops", report.Ops,
		"writes", report.Writes,
		"reads", report.Reads,
		"bytes_written", report.BytesWritten,
		"bytes_read", report.BytesRead)
	return report, nil
}

// newWorkloadTransport returns the controller to run against: an in-memory one
// when `local` is set, otherwise a TCP connection to `address`.
func newWorkloadTransport(local bool, address string, geometry common.Geometry) (fs3.Transport, error) {
	if local {
		image := bytesextra.NewReadWriteSeeker(make([]byte, geometry.TotalSizeBytes()))
		return controller.New(image, geometry, slog.Default())
	}
	return transport.New(transport.Options{
		Address:        address,
		BytesPerSector: geometry.BytesPerSector,
		Logger:         slog.Default(),
	}), nil
}

func workload(context *cli.Context) error {
	preset, err := disks.Lookup(context.String("geometry"))
	if err != nil {
		return err
	}
	geometry := preset.Geometry()

	target, err := newWorkloadTransport(context.Bool("local"), context.String("server"), geometry)
	if err != nil {
		return err
	}

	sectorCache := cache.New(geometry.BytesPerSector, slog.Default())
	if err = sectorCache.Init(context.Uint("cache-lines")); err != nil {
		return err
	}
	defer sectorCache.Close()

	options := driver.DefaultOptions()
	options.Geometry = geometry
	options.Logger = slog.Default()
	fs, err := driver.New(target, sectorCache, options)
	if err != nil {
		return err
	}

	if err = fs.Mount(); err != nil {
		return err
	}

	cfg := workloadConfig{
		Files: context.Int("files"),
		Ops:   context.Int("ops"),
		Seed:  context.Int64("seed"),
	}
	report, workloadErr := runWorkload(fs, cfg, slog.Default())

	var result *multierror.Error
	if workloadErr != nil {
		result = multierror.Append(result, workloadErr)
	}
	if err = fs.Unmount(); err != nil {
		result = multierror.Append(result, err)
	}

	for _, info := range fs.Files() {
		slog.Debug("file", "name", info.Name, "length", info.Length, "sectors", info.Sectors)
	}

	if context.Bool("metrics-csv") {
		if err = writeMetricsCSV(os.Stdout, report, sectorCache.Metrics()); err != nil {
			result = multierror.Append(result, err)
		}
	} else {
		sectorCache.LogMetrics()
	}
	return result.ErrorOrNil()
}

func writeMetricsCSV(w io.Writer, report workloadReport, metrics cache.Metrics) error {
	row := metricsRow{
		Ops:          report.Ops,
		Writes:       report.Writes,
		Reads:        report.Reads,
		BytesWritten: report.BytesWritten,
		BytesRead:    report.BytesRead,
		CacheLines:   metrics.Lines,
		CacheInserts: metrics.Inserts,
		CacheGets:    metrics.Gets,
		CacheHits:    metrics.Hits,
		CacheMisses:  metrics.Misses,
		HitRatio:     "undefined",
	}
	if ratio, ok := metrics.HitRatio(); ok {
		row.HitRatio = strconv.FormatFloat(ratio, 'f', 2, 64)
	}
	return gocsv.Marshal([]metricsRow{row}, w)
}

func listGeometries(context *cli.Context) error {
	if context.Bool("csv") {
		return disks.WriteCSV(os.Stdout)
	}
	for _, preset := range disks.All() {
		fmt.Printf(
			"%-10s %4d tracks x %5d sectors x %5d bytes  %s\n",
			preset.Slug,
			preset.Tracks,
			preset.SectorsPerTrack,
			preset.BytesPerSector,
			preset.Name)
	}
	return nil
}
