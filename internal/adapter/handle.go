package adapter

import (
	"sync"

	"github.com/hermitretro/fatfuse/internal/fat"
)

// Open files and directories are tracked in tables keyed by an opaque
// uint64 handle the host runtime echoes back on every call. Handle zero is
// never issued, so a zero always means "nothing open", and releasing a
// handle twice misses the table instead of touching freed state.

// fileSession is one open file: the library handle plus the path and access
// mode it was opened under, kept for logging.
type fileSession struct {
	file fat.File
	path string
	mode fat.AccessMode
}

// dirSession is one open directory cursor.
type dirSession struct {
	dir  fat.Dir
	path string
}

type fileTable struct {
	mu   sync.Mutex
	next uint64
	open map[uint64]*fileSession
}

func newFileTable() *fileTable {
	return &fileTable{next: 1, open: make(map[uint64]*fileSession)}
}

func (t *fileTable) put(s *fileSession) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	fh := t.next
	t.next++
	t.open[fh] = s
	return fh
}

func (t *fileTable) get(fh uint64) (*fileSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.open[fh]
	return s, ok
}

// take removes and returns the session, leaving the handle dead.
func (t *fileTable) take(fh uint64) (*fileSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.open[fh]
	if ok {
		delete(t.open, fh)
	}
	return s, ok
}

type dirTable struct {
	mu   sync.Mutex
	next uint64
	open map[uint64]*dirSession
}

func newDirTable() *dirTable {
	return &dirTable{next: 1, open: make(map[uint64]*dirSession)}
}

func (t *dirTable) put(s *dirSession) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	fh := t.next
	t.next++
	t.open[fh] = s
	return fh
}

func (t *dirTable) get(fh uint64) (*dirSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.open[fh]
	return s, ok
}

func (t *dirTable) take(fh uint64) (*dirSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.open[fh]
	if ok {
		delete(t.open, fh)
	}
	return s, ok
}
