package adapter

import (
	"context"
	"syscall"

	"github.com/hermitretro/fatfuse/internal/fat"
)

// Open opens path and returns a file handle. The library access mode comes
// from the POSIX flags: read+write by default, read-only when the caller
// asked for no-blocking async signaling, exclusive write+create when a
// create flag is present.
func (a *Adapter) Open(ctx context.Context, path string, flags uint32) (uint64, syscall.Errno) {
	return a.open(ctx, path, flags, "open")
}

// Create makes path with exclusive-create semantics. Requested permission
// bits are ignored; the volume has a fixed mode model.
func (a *Adapter) Create(ctx context.Context, path string) (uint64, syscall.Errno) {
	return a.open(ctx, path, uint32(syscall.O_CREAT), "create")
}

func (a *Adapter) open(ctx context.Context, path string, flags uint32, op string) (uint64, syscall.Errno) {
	a.metrics.Operation(op)

	mode := fat.ModeRead | fat.ModeWrite
	switch {
	case flags&uint32(syscall.O_ASYNC) != 0:
		mode = fat.ModeRead
	case flags&uint32(syscall.O_CREAT) != 0:
		mode = fat.ModeWrite | fat.ModeCreateNew
	}

	name := ManglePath(path)
	f, r := a.vol.OpenFile(name, mode)
	if r != fat.ResultOK {
		a.logger.Debug("open failed", "path", name, "mode", mode, "result", r)
		return 0, a.fail(op, r)
	}
	fh := a.files.put(&fileSession{file: f, path: path, mode: mode})
	a.logger.Debug("open", "path", path, "fh", fh, "mode", mode)
	return fh, 0
}

// Read seeks to off and transfers up to len(dest) bytes. A short count
// means end of file, not an error.
func (a *Adapter) Read(ctx context.Context, fh uint64, dest []byte, off int64) (int, syscall.Errno) {
	const op = "read"
	a.metrics.Operation(op)
	a.logger.Debug("read", "fh", fh, "off", off, "len", len(dest))
	sess, ok := a.files.get(fh)
	if !ok {
		return 0, syscall.ENOENT
	}
	if r := sess.file.Seek(off); r != fat.ResultOK {
		return 0, a.fail(op, r)
	}
	n, r := sess.file.Read(dest)
	if r != fat.ResultOK {
		return 0, a.fail(op, r)
	}
	a.metrics.ReadBytes(n)
	return n, 0
}

// Write seeks to off and transfers data, returning the bytes accepted.
func (a *Adapter) Write(ctx context.Context, fh uint64, data []byte, off int64) (int, syscall.Errno) {
	const op = "write"
	a.metrics.Operation(op)
	a.logger.Debug("write", "fh", fh, "off", off, "len", len(data))
	sess, ok := a.files.get(fh)
	if !ok {
		return 0, syscall.ENOENT
	}
	if r := sess.file.Seek(off); r != fat.ResultOK {
		return 0, a.fail(op, r)
	}
	n, r := sess.file.Write(data)
	if r != fat.ResultOK {
		return 0, a.fail(op, r)
	}
	a.metrics.WroteBytes(n)
	return n, 0
}

// Flush syncs the handle's cached state to the medium. The lazy-mount
// check runs even though the handle is already open: a card-removal fault
// may have invalidated the mount underneath it.
func (a *Adapter) Flush(ctx context.Context, fh uint64) syscall.Errno {
	const op = "flush"
	a.metrics.Operation(op)
	a.logger.Debug("flush", "fh", fh)
	if r := a.mount.ensure(); r != fat.ResultOK {
		return a.fail(op, r)
	}
	sess, ok := a.files.get(fh)
	if !ok {
		return syscall.ENOENT
	}
	if r := sess.file.Sync(); r != fat.ResultOK {
		return a.fail(op, r)
	}
	return 0
}

// Release closes the handle and frees its slot. Releasing an unknown or
// already-released handle is ENOENT, never a fault.
func (a *Adapter) Release(ctx context.Context, fh uint64) syscall.Errno {
	const op = "release"
	a.metrics.Operation(op)
	sess, ok := a.files.take(fh)
	if !ok {
		return syscall.ENOENT
	}
	if r := sess.file.Close(); r != fat.ResultOK {
		a.logger.Warn("close failed", "path", sess.path, "result", r)
		return a.fail(op, r)
	}
	a.logger.Debug("release", "path", sess.path, "fh", fh, "mode", sess.mode)
	return 0
}
