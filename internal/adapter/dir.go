package adapter

import (
	"context"
	"syscall"

	"github.com/hermitretro/fatfuse/internal/fat"
)

// FillFunc receives one directory entry per call. off is the continuation
// cookie: echoing it back to Readdir resumes enumeration at the entry
// after this one. A false return means the reply buffer is full and
// enumeration must stop.
type FillFunc func(name string, st *Stat, off int64) bool

// Opendir opens a directory cursor on path and returns its handle.
func (a *Adapter) Opendir(ctx context.Context, path string) (uint64, syscall.Errno) {
	const op = "opendir"
	a.metrics.Operation(op)
	a.logger.Debug("opendir", "path", path)
	if r := a.mount.ensure(); r != fat.ResultOK {
		return 0, a.fail(op, r)
	}
	d, r := a.vol.OpenDir(path)
	if r != fat.ResultOK {
		return 0, a.fail(op, r)
	}
	fh := a.dirs.put(&dirSession{dir: d, path: path})
	return fh, 0
}

// Readdir drives one enumeration step. At offset zero it first emits the
// synthetic "." and ".." entries, then reads the cursor until it is
// exhausted or fill reports a full buffer. On a full buffer the cursor is
// stepped back one entry so the next call, resumed with the last accepted
// cookie, replays the refused entry instead of losing it.
func (a *Adapter) Readdir(ctx context.Context, fh uint64, offset int64, fill FillFunc) syscall.Errno {
	const op = "readdir"
	a.metrics.Operation(op)
	if r := a.mount.ensure(); r != fat.ResultOK {
		return a.fail(op, r)
	}
	sess, ok := a.dirs.get(fh)
	if !ok {
		return syscall.ENOENT
	}
	a.logger.Debug("readdir", "path", sess.path, "offset", offset)

	next := offset + 1
	if offset == 0 {
		for _, name := range []string{".", ".."} {
			st := Stat{Mode: dirMode, Nlink: 2, Ino: UnknownIno}
			if !fill(name, &st, next) {
				a.logger.Warn("reply buffer refused synthetic entry", "path", sess.path, "name", name)
			}
			next++
		}
	}

	for {
		info, r := sess.dir.Read()
		if r != fat.ResultOK {
			return a.fail(op, r)
		}
		if info.Name == "" {
			return 0
		}
		st := entryStat(info)
		if !fill(DemangleName(info.Name), &st, next) {
			a.metrics.ReaddirRewind()
			if r := sess.dir.Seek(-1); r != fat.ResultOK {
				a.logger.Warn("cursor rewind failed", "path", sess.path, "result", r)
			}
			return 0
		}
		next++
	}
}

// Releasedir closes the cursor and frees the handle. An unknown handle is
// ENOENT, never a fault.
func (a *Adapter) Releasedir(ctx context.Context, fh uint64) syscall.Errno {
	const op = "releasedir"
	a.metrics.Operation(op)
	sess, ok := a.dirs.take(fh)
	if !ok {
		return syscall.ENOENT
	}
	if r := sess.dir.Close(); r != fat.ResultOK {
		a.logger.Warn("closedir failed", "path", sess.path, "result", r)
		return a.fail(op, r)
	}
	a.logger.Debug("releasedir", "path", sess.path, "fh", fh)
	return 0
}

// entryStat builds the POSIX view of one enumerated entry. Directories get
// fixed mode and link count; files additionally carry size, block usage,
// and the decoded modification time on all three timestamps.
func entryStat(info fat.FileInfo) Stat {
	if info.IsDir() {
		return Stat{Mode: dirMode, Nlink: 2}
	}
	st := Stat{
		Mode:    fileMode,
		Nlink:   1,
		Size:    info.Size,
		Blocks:  (info.Size + fat.SectorSize - 1) / fat.SectorSize,
		Blksize: fat.SectorSize,
	}
	if info.Modified != 0 {
		t := info.Modified.Time()
		st.Atime = t
		st.Mtime = t
		st.Ctime = t
	}
	return st
}
