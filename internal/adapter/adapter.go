// Package adapter translates POSIX-style filesystem callbacks into calls
// against a fat.Volume. It owns the mount lifecycle, the hidden-name
// rewrite, the handle tables for open files and directories, and the
// mapping from library results to POSIX errors.
package adapter

import (
	"context"
	"log/slog"
	"syscall"
	"time"

	"github.com/hermitretro/fatfuse/internal/fat"
	"github.com/hermitretro/fatfuse/internal/metrics"
)

const (
	// UnknownIno marks the synthetic dot entries, which have no inode
	// of their own on the volume.
	UnknownIno uint64 = 0xffffffff

	dirMode  = uint32(syscall.S_IFDIR) | 0o755
	fileMode = uint32(syscall.S_IFREG) | 0o644

	// A stat that fails gets one more attempt after a short delay; the
	// medium is often just busy.
	statAttempts      = 2
	defaultRetryDelay = 50 * time.Millisecond
)

// Stat is the POSIX-shaped view of one entry, synthesized per request.
// Fields the volume cannot supply are left zero.
type Stat struct {
	Mode    uint32
	Nlink   uint32
	Ino     uint64
	Size    int64
	Blocks  int64
	Blksize uint32
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics sink. Defaults to a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithClock replaces the time source used for timestamp updates.
func WithClock(clock func() time.Time) Option {
	return func(a *Adapter) {
		a.clock = clock
	}
}

// WithRetryDelay overrides the delay between stat attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.retryDelay = d
	}
}

// Adapter dispatches filesystem callbacks onto one volume.
type Adapter struct {
	vol        fat.Volume
	logger     *slog.Logger
	metrics    *metrics.Metrics
	clock      func() time.Time
	retryDelay time.Duration

	mount *mountState
	files *fileTable
	dirs  *dirTable
}

// New builds an Adapter over vol. The volume starts unmounted; the first
// operation that needs storage mounts it.
func New(vol fat.Volume, opts ...Option) *Adapter {
	a := &Adapter{
		vol:        vol,
		logger:     slog.Default(),
		metrics:    metrics.New(),
		clock:      time.Now,
		retryDelay: defaultRetryDelay,
		files:      newFileTable(),
		dirs:       newDirTable(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "adapter")
	a.mount = &mountState{
		vol:     vol,
		logger:  a.logger,
		metrics: a.metrics,
	}
	return a
}

// Metrics returns the adapter's metrics sink.
func (a *Adapter) Metrics() *metrics.Metrics {
	return a.metrics
}

// fail records a failed library call and returns its mapped error. Every
// failure path funnels through here so disk-level faults always invalidate
// the mount, whatever operation saw them.
func (a *Adapter) fail(op string, r fat.Result) syscall.Errno {
	a.mount.observe(r)
	a.metrics.OperationError(op, r.String())
	return Errno(r)
}

// Getattr resolves the attributes of path. The root directory is synthetic
// and never touches the volume; any other path is stat'ed with a bounded
// retry to ride out a busy medium.
func (a *Adapter) Getattr(ctx context.Context, path string) (Stat, syscall.Errno) {
	const op = "getattr"
	a.metrics.Operation(op)
	a.logger.Debug("getattr", "path", path)
	if r := a.mount.ensure(); r != fat.ResultOK {
		return Stat{}, a.fail(op, r)
	}
	if path == "/" {
		return Stat{Mode: dirMode, Nlink: 2}, 0
	}

	name := ManglePath(path)
	var info fat.FileInfo
	var r fat.Result
	for attempt := 1; attempt <= statAttempts; attempt++ {
		info, r = a.vol.Stat(name)
		if r == fat.ResultOK {
			break
		}
		a.logger.Debug("stat failed", "path", name, "attempt", attempt, "result", r)
		if attempt == statAttempts {
			break
		}
		a.metrics.StatRetry()
		select {
		case <-ctx.Done():
			return Stat{}, syscall.EINTR
		case <-time.After(a.retryDelay):
		}
	}
	if r != fat.ResultOK {
		return Stat{}, a.fail(op, r)
	}
	if info.IsDir() {
		return Stat{Mode: dirMode, Nlink: 2}, 0
	}
	return Stat{Mode: fileMode, Nlink: 1, Size: info.Size}, 0
}

// Mkdir creates a directory. The name is stored as given; directories do
// not get the hidden-name rewrite.
func (a *Adapter) Mkdir(ctx context.Context, path string) syscall.Errno {
	const op = "mkdir"
	a.metrics.Operation(op)
	a.logger.Debug("mkdir", "path", path)
	if r := a.mount.ensure(); r != fat.ResultOK {
		return a.fail(op, r)
	}
	if r := a.vol.MakeDir(path); r != fat.ResultOK {
		return a.fail(op, r)
	}
	return 0
}

// Rmdir removes an empty directory.
func (a *Adapter) Rmdir(ctx context.Context, path string) syscall.Errno {
	const op = "rmdir"
	a.metrics.Operation(op)
	a.logger.Debug("rmdir", "path", path)
	if r := a.mount.ensure(); r != fat.ResultOK {
		return a.fail(op, r)
	}
	if r := a.vol.RemoveDir(path); r != fat.ResultOK {
		return a.fail(op, r)
	}
	return 0
}

// Unlink removes a file or an empty directory. It is a direct delegation
// with no lazy-mount check, so on an unmounted volume the library's
// not-enabled result surfaces as ENOSPC.
func (a *Adapter) Unlink(ctx context.Context, path string) syscall.Errno {
	const op = "unlink"
	a.metrics.Operation(op)
	a.logger.Debug("unlink", "path", path)
	if r := a.vol.Unlink(path); r != fat.ResultOK {
		return a.fail(op, r)
	}
	return 0
}

// Utimens stamps path with the current time. Caller-supplied timestamps
// are not honored; the volume only records "now".
func (a *Adapter) Utimens(ctx context.Context, path string) syscall.Errno {
	const op = "utimens"
	a.metrics.Operation(op)
	a.logger.Debug("utimens", "path", path)
	if r := a.vol.SetTimes(path, fat.NewDateTime(a.clock())); r != fat.ResultOK {
		return a.fail(op, r)
	}
	return 0
}

// Setxattr accepts and discards extended attributes; the volume has
// nowhere to store them.
func (a *Adapter) Setxattr(ctx context.Context, path, attr string) syscall.Errno {
	const op = "setxattr"
	a.metrics.Operation(op)
	a.logger.Debug("setxattr", "path", path, "attr", attr)
	if r := a.mount.ensure(); r != fat.ResultOK {
		return a.fail(op, r)
	}
	return 0
}

// Chmod reports success without doing anything. The volume has no
// permission model.
func (a *Adapter) Chmod(ctx context.Context, path string, mode uint32) syscall.Errno {
	a.metrics.Operation("chmod")
	a.logger.Debug("chmod ignored", "path", path, "mode", mode)
	return 0
}

// Chown reports success without doing anything.
func (a *Adapter) Chown(ctx context.Context, path string, uid, gid uint32) syscall.Errno {
	a.metrics.Operation("chown")
	a.logger.Debug("chown ignored", "path", path, "uid", uid, "gid", gid)
	return 0
}

// Truncate reports success without doing anything. Files only grow or
// shrink through write and create.
func (a *Adapter) Truncate(ctx context.Context, path string, size int64) syscall.Errno {
	a.metrics.Operation("truncate")
	a.logger.Debug("truncate ignored", "path", path, "size", size)
	return 0
}
