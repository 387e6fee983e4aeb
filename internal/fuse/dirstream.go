package fuse

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hermitretro/fatfuse/internal/adapter"
)

// batchSize caps how many entries one adapter call delivers. The refused
// entry replays at the start of the next batch via the cursor rewind.
const batchSize = 64

type dirEntry struct {
	name string
	st   adapter.Stat
	off  int64
}

// dirStream adapts the adapter's cookie-driven enumeration to the
// HasNext/Next pull model the bridge expects. The directory session stays
// open for the stream's lifetime and is released on Close.
type dirStream struct {
	ctx     context.Context
	adapter *adapter.Adapter
	fh      uint64
	path    string

	queue    []dirEntry
	offset   int64
	eof      bool
	errno    syscall.Errno
	released bool
}

var _ fs.DirStream = (*dirStream)(nil)

func newDirStream(ctx context.Context, a *adapter.Adapter, fh uint64, path string) *dirStream {
	s := &dirStream{ctx: ctx, adapter: a, fh: fh, path: path}
	s.fetch()
	return s
}

// fetch pulls the next batch of entries. A batch shorter than the cap
// means the cursor is exhausted. On error the partial batch is discarded,
// matching the convention that a failed enumeration step drops its buffer.
func (s *dirStream) fetch() {
	if s.eof || s.errno != 0 {
		return
	}
	batch := make([]dirEntry, 0, batchSize)
	full := false
	errno := s.adapter.Readdir(s.ctx, s.fh, s.offset, func(name string, st *adapter.Stat, off int64) bool {
		if len(batch) >= batchSize {
			full = true
			return false
		}
		batch = append(batch, dirEntry{name: name, st: *st, off: off})
		return true
	})
	if errno != 0 {
		s.errno = errno
		return
	}
	if len(batch) > 0 {
		s.offset = batch[len(batch)-1].off
	}
	s.queue = append(s.queue, batch...)
	if !full {
		s.eof = true
	}
}

func (s *dirStream) HasNext() bool {
	if len(s.queue) > 0 || s.errno != 0 {
		return true
	}
	if s.eof {
		return false
	}
	s.fetch()
	return len(s.queue) > 0 || s.errno != 0
}

func (s *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if len(s.queue) == 0 {
		errno := s.errno
		s.errno = 0
		s.eof = true
		if errno == 0 {
			errno = syscall.ENOENT
		}
		return fuse.DirEntry{}, errno
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	ino := e.st.Ino
	if ino == 0 {
		ino = hashPathForNode(joinChild(s.path, e.name))
	}
	return fuse.DirEntry{
		Name: e.name,
		Mode: e.st.Mode & uint32(syscall.S_IFMT),
		Ino:  ino,
	}, 0
}

func (s *dirStream) Close() {
	if s.released {
		return
	}
	s.released = true
	s.adapter.Releasedir(s.ctx, s.fh)
}
