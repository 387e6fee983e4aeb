// fatfuse mounts a FAT disk image as a POSIX filesystem.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hermitretro/fatfuse/internal/adapter"
	"github.com/hermitretro/fatfuse/internal/fat"
	"github.com/hermitretro/fatfuse/internal/fat/fatmem"
	"github.com/hermitretro/fatfuse/internal/fatimg"
	fatfusefs "github.com/hermitretro/fatfuse/internal/fuse"
	"github.com/hermitretro/fatfuse/internal/metrics"
)

func main() {
	image := flag.String("image", "", "Path to the FAT disk image")
	mem := flag.Bool("mem", false, "Use an empty in-memory volume instead of an image (development)")
	mountpoint := flag.String("mount", "", "Mount point (required)")
	fsName := flag.String("name", "spifat", "Filesystem name shown in the mount table")
	partition := flag.Int("partition", 0, "Partition number inside the image (0 = unpartitioned)")
	readOnly := flag.Bool("read-only", false, "Open the image read-only")
	allowOther := flag.Bool("allow-other", false, "Allow other users to access the mount")
	debug := flag.Bool("debug", false, "Enable debug logging and kernel protocol traces")
	attrTimeout := flag.Duration("attr-timeout", time.Hour, "Kernel attribute cache timeout")
	entryTimeout := flag.Duration("entry-timeout", time.Hour, "Kernel entry cache timeout")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (optional)")
	flag.Parse()

	if *mountpoint == "" || (*image == "" && !*mem) {
		flag.Usage()
		os.Exit(1)
	}

	// Setup logger
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting fatfuse",
		"image", *image,
		"mount", *mountpoint,
		"name", *fsName,
		"read_only", *readOnly,
	)

	// Pick the volume backend. Mounting stays lazy: the first filesystem
	// request attaches the work area.
	var vol fat.Volume
	if *mem {
		vol = fatmem.New()
	} else {
		imgOpts := []fatimg.Option{
			fatimg.WithLogger(logger),
			fatimg.WithPartition(*partition),
		}
		if *readOnly {
			imgOpts = append(imgOpts, fatimg.WithReadOnly())
		}
		vol = fatimg.New(*image, imgOpts...)
	}

	m := metrics.New()
	a := adapter.New(vol,
		adapter.WithLogger(logger),
		adapter.WithMetrics(m),
	)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		go func() {
			logger.Info("serving metrics", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	root := fatfusefs.NewRoot(a, logger)

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:      *debug,
			FsName:     *fsName,
			Name:       "fatfuse",
			AllowOther: *allowOther,
		},
		AttrTimeout:  attrTimeout,
		EntryTimeout: entryTimeout,
	}

	server, err := fs.Mount(*mountpoint, root, opts)
	if err != nil {
		logger.Error("failed to mount", "error", err)
		os.Exit(1)
	}

	logger.Info("filesystem mounted", "mountpoint", *mountpoint)

	// Handle unmount on signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, unmounting", "signal", sig)
		if err := server.Unmount(); err != nil {
			logger.Error("unmount error", "error", err)
		}
	}()

	server.Wait()

	if r := vol.Unmount(); r != fat.ResultOK {
		logger.Warn("volume detach failed", "result", r)
	}
	logger.Info("filesystem unmounted")
}
