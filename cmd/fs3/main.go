package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/fs3io/fs3"
	"github.com/fs3io/fs3/cache"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "fs3",
		Usage: "Run and exercise the FS3 simulated disk",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "one of debug, info, warn, error",
				Value:   "info",
				EnvVars: []string{"FS3_LOG_LEVEL"},
			},
		},
		Before: configureLogging,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve a simulated disk controller over TCP",
				Action: serve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Usage:   "address to listen on",
						Value:   fs3.DefaultAddress,
						EnvVars: []string{"FS3_LISTEN"},
					},
					geometryFlag(),
					&cli.PathFlag{
						Name:    "image",
						Usage:   "disk image file; the disk is kept in memory if not given",
						EnvVars: []string{"FS3_IMAGE"},
					},
				},
			},
			{
				Name:   "workload",
				Usage:  "Run a random open/write/seek/read workload and verify every read",
				Action: workload,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "server",
						Usage:   "address of the controller",
						Value:   fs3.DefaultAddress,
						EnvVars: []string{"FS3_SERVER"},
					},
					&cli.BoolFlag{
						Name:    "local",
						Usage:   "use an in-process controller instead of connecting to a server",
						EnvVars: []string{"FS3_LOCAL"},
					},
					geometryFlag(),
					&cli.UintFlag{
						Name:    "cache-lines",
						Usage:   "number of sectors the cache holds",
						Value:   cache.DefaultLines,
						EnvVars: []string{"FS3_CACHE_LINES"},
					},
					&cli.IntFlag{
						Name:    "files",
						Usage:   "number of files to spread the workload over",
						Value:   4,
						EnvVars: []string{"FS3_FILES"},
					},
					&cli.IntFlag{
						Name:    "ops",
						Usage:   "number of operations to run",
						Value:   1000,
						EnvVars: []string{"FS3_OPS"},
					},
					&cli.Int64Flag{
						Name:    "seed",
						Usage:   "random seed; the same seed gives the same workload",
						Value:   1,
						EnvVars: []string{"FS3_SEED"},
					},
					&cli.BoolFlag{
						Name:    "metrics-csv",
						Usage:   "print metrics as CSV instead of log lines",
						EnvVars: []string{"FS3_METRICS_CSV"},
					},
				},
			},
			{
				Name:   "geometries",
				Usage:  "List the predefined disk geometries",
				Action: listGeometries,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "print as CSV",
					},
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func geometryFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "geometry",
		Usage:   "slug of a predefined disk geometry (see `fs3 geometries`)",
		Value:   "fs3",
		EnvVars: []string{"FS3_GEOMETRY"},
	}
}

func configureLogging(context *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(context.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", context.String("log-level"))
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}
