package fuse

import (
	"context"
	"log/slog"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hermitretro/fatfuse/internal/adapter"
)

// fatFile is the per-open file handle passed back to the kernel. It
// forwards every call to the adapter under its handle id.
type fatFile struct {
	adapter *adapter.Adapter
	fh      uint64
	path    string
	logger  *slog.Logger
}

var (
	_ fs.FileReader   = (*fatFile)(nil)
	_ fs.FileWriter   = (*fatFile)(nil)
	_ fs.FileFlusher  = (*fatFile)(nil)
	_ fs.FileReleaser = (*fatFile)(nil)
)

func (f *fatFile) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, errno := f.adapter.Read(ctx, f.fh, dest, off)
	if errno != 0 {
		return nil, errno
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (f *fatFile) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, errno := f.adapter.Write(ctx, f.fh, data, off)
	if errno != 0 {
		return 0, errno
	}
	return uint32(n), 0
}

func (f *fatFile) Flush(ctx context.Context) syscall.Errno {
	return f.adapter.Flush(ctx, f.fh)
}

func (f *fatFile) Release(ctx context.Context) syscall.Errno {
	if errno := f.adapter.Release(ctx, f.fh); errno != 0 {
		f.logger.Warn("release failed", "path", f.path, "errno", errno)
		return errno
	}
	return 0
}
