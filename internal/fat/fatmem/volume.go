// Package fatmem is an in-memory fat.Volume. It reproduces FatFs result
// semantics (work-area checks, exclusive create, short reads at end of
// file, empty-name end of directory) and adds per-operation fault injection
// and call counters, which makes it the backend for the adapter test suites
// and for fatstress dry runs.
package fatmem

import (
	"strings"
	"sync"
	"time"

	"github.com/hermitretro/fatfuse/internal/fat"
)

// Op names a Volume entry point for fault injection and call counting.
type Op string

const (
	OpMount     Op = "mount"
	OpUnmount   Op = "unmount"
	OpStat      Op = "stat"
	OpOpenDir   Op = "open_dir"
	OpReadDir   Op = "read_dir"
	OpSeekDir   Op = "seek_dir"
	OpCloseDir  Op = "close_dir"
	OpOpenFile  Op = "open_file"
	OpRead      Op = "read"
	OpWrite     Op = "write"
	OpSeek      Op = "seek"
	OpSync      Op = "sync"
	OpCloseFile Op = "close_file"
	OpUnlink    Op = "unlink"
	OpMakeDir   Op = "make_dir"
	OpRemoveDir Op = "remove_dir"
	OpSetTimes  Op = "set_times"
)

type node struct {
	name     string
	attr     fat.Attr
	data     []byte
	modified fat.DateTime
	children []*node // directories only, in creation order
}

func (n *node) isDir() bool {
	return n.attr&fat.AttrDirectory != 0
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if strings.EqualFold(c.name, name) {
			return c
		}
	}
	return nil
}

func (n *node) removeChild(target *node) {
	for i, c := range n.children {
		if c == target {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

func (n *node) info() fat.FileInfo {
	return fat.FileInfo{
		Name:     n.name,
		Size:     int64(len(n.data)),
		Attr:     n.attr,
		Modified: n.modified,
	}
}

// Volume is the in-memory volume. The zero value is not usable; call New.
type Volume struct {
	mu      sync.Mutex
	clock   func() time.Time
	mounted bool
	root    *node
	faults  map[Op][]fat.Result
	calls   map[Op]int
	mounts  int

	lastSetTimesPath string
	lastSetTimes     fat.DateTime
}

var _ fat.Volume = (*Volume)(nil)

// New returns an empty, unmounted volume.
func New() *Volume {
	return &Volume{
		clock:  time.Now,
		root:   &node{name: "", attr: fat.AttrDirectory},
		faults: make(map[Op][]fat.Result),
		calls:  make(map[Op]int),
	}
}

// SetClock replaces the timestamp source for subsequent writes.
func (v *Volume) SetClock(fn func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clock = fn
}

// FailNext queues r as the outcome of the next call to op. Queued faults
// are consumed first-in first-out, one per call.
func (v *Volume) FailNext(op Op, r fat.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.faults[op] = append(v.faults[op], r)
}

// Calls reports how many times op was invoked, including faulted calls.
func (v *Volume) Calls(op Op) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[op]
}

// MountCount reports how many mounts succeeded over the volume's lifetime.
func (v *Volume) MountCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounts
}

// Mounted reports whether a work area is currently attached.
func (v *Volume) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounted
}

// LastSetTimes reports the most recent SetTimes call.
func (v *Volume) LastSetTimes() (string, fat.DateTime) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSetTimesPath, v.lastSetTimes
}

// AddFile seeds a file directly into the tree, bypassing mount state and
// counters. Parent directories must already exist.
func (v *Volume) AddFile(path string, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	parent, leaf, r := v.walkParent(path)
	if r != fat.ResultOK || parent.child(leaf) != nil {
		panic("fatmem: cannot seed " + path)
	}
	parent.children = append(parent.children, &node{
		name:     leaf,
		attr:     fat.AttrArchive,
		data:     append([]byte(nil), data...),
		modified: fat.NewDateTime(v.clock()),
	})
}

// AddDir seeds a directory directly into the tree.
func (v *Volume) AddDir(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	parent, leaf, r := v.walkParent(path)
	if r != fat.ResultOK || parent.child(leaf) != nil {
		panic("fatmem: cannot seed " + path)
	}
	parent.children = append(parent.children, &node{
		name:     leaf,
		attr:     fat.AttrDirectory,
		modified: fat.NewDateTime(v.clock()),
	})
}

// step counts one call of op and pops a queued fault for it, if any.
func (v *Volume) step(op Op) (fat.Result, bool) {
	v.calls[op]++
	queue := v.faults[op]
	if len(queue) == 0 {
		return fat.ResultOK, false
	}
	v.faults[op] = queue[1:]
	return queue[0], true
}

func splitPath(path string) ([]string, fat.Result) {
	if path == "" || path[0] != '/' {
		return nil, fat.ResultInvalidName
	}
	if path == "/" {
		return nil, fat.ResultOK
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, p := range parts {
		if p == "" {
			return nil, fat.ResultInvalidName
		}
	}
	return parts, fat.ResultOK
}

// walkParent resolves everything but the leaf. A missing or non-directory
// intermediate is ResultNoPath; the root itself is ResultInvalidName.
func (v *Volume) walkParent(path string) (*node, string, fat.Result) {
	parts, r := splitPath(path)
	if r != fat.ResultOK {
		return nil, "", r
	}
	if len(parts) == 0 {
		return nil, "", fat.ResultInvalidName
	}
	cur := v.root
	for _, p := range parts[:len(parts)-1] {
		next := cur.child(p)
		if next == nil || !next.isDir() {
			return nil, "", fat.ResultNoPath
		}
		cur = next
	}
	return cur, parts[len(parts)-1], fat.ResultOK
}

// Mount attaches the work area. force is accepted for interface parity;
// an in-memory medium has nothing extra to probe.
func (v *Volume) Mount(force bool) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, injected := v.step(OpMount); injected {
		return r
	}
	v.mounted = true
	v.mounts++
	return fat.ResultOK
}

// Unmount detaches the work area.
func (v *Volume) Unmount() fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, injected := v.step(OpUnmount); injected {
		return r
	}
	v.mounted = false
	return fat.ResultOK
}

// Stat describes the entry at path.
func (v *Volume) Stat(path string) (fat.FileInfo, fat.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, injected := v.step(OpStat); injected {
		return fat.FileInfo{}, r
	}
	if !v.mounted {
		return fat.FileInfo{}, fat.ResultNotEnabled
	}
	parent, leaf, r := v.walkParent(path)
	if r != fat.ResultOK {
		return fat.FileInfo{}, r
	}
	n := parent.child(leaf)
	if n == nil {
		return fat.FileInfo{}, fat.ResultNoFile
	}
	return n.info(), fat.ResultOK
}

// OpenDir opens an enumeration cursor over path.
func (v *Volume) OpenDir(path string) (fat.Dir, fat.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, injected := v.step(OpOpenDir); injected {
		return nil, r
	}
	if !v.mounted {
		return nil, fat.ResultNotEnabled
	}
	if path == "/" {
		return &dir{vol: v, node: v.root}, fat.ResultOK
	}
	parent, leaf, r := v.walkParent(path)
	if r != fat.ResultOK {
		return nil, r
	}
	n := parent.child(leaf)
	if n == nil || !n.isDir() {
		return nil, fat.ResultNoPath
	}
	return &dir{vol: v, node: n}, fat.ResultOK
}

// OpenFile opens or creates the file at path per mode.
func (v *Volume) OpenFile(path string, mode fat.AccessMode) (fat.File, fat.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, injected := v.step(OpOpenFile); injected {
		return nil, r
	}
	if !v.mounted {
		return nil, fat.ResultNotEnabled
	}
	parent, leaf, r := v.walkParent(path)
	if r != fat.ResultOK {
		return nil, r
	}
	n := parent.child(leaf)
	creating := mode&(fat.ModeCreateNew|fat.ModeCreateAlways|fat.ModeOpenAlways) != 0
	switch {
	case n == nil && !creating:
		return nil, fat.ResultNoFile
	case n == nil:
		n = &node{name: leaf, attr: fat.AttrArchive, modified: fat.NewDateTime(v.clock())}
		parent.children = append(parent.children, n)
	case n.isDir():
		return nil, fat.ResultNoFile
	case mode&fat.ModeCreateNew != 0:
		return nil, fat.ResultExist
	case mode&fat.ModeCreateAlways != 0:
		n.data = nil
		n.modified = fat.NewDateTime(v.clock())
	}
	f := &file{vol: v, node: n, mode: mode}
	if mode&fat.ModeOpenAppend == fat.ModeOpenAppend {
		f.pos = int64(len(n.data))
	}
	return f, fat.ResultOK
}

// Unlink removes a file, or a subdirectory if empty.
func (v *Volume) Unlink(path string) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, injected := v.step(OpUnlink); injected {
		return r
	}
	if !v.mounted {
		return fat.ResultNotEnabled
	}
	parent, leaf, r := v.walkParent(path)
	if r != fat.ResultOK {
		return r
	}
	n := parent.child(leaf)
	if n == nil {
		return fat.ResultNoFile
	}
	if n.isDir() && len(n.children) > 0 {
		return fat.ResultDenied
	}
	parent.removeChild(n)
	return fat.ResultOK
}

// MakeDir creates one directory under an existing parent.
func (v *Volume) MakeDir(path string) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, injected := v.step(OpMakeDir); injected {
		return r
	}
	if !v.mounted {
		return fat.ResultNotEnabled
	}
	parent, leaf, r := v.walkParent(path)
	if r != fat.ResultOK {
		return r
	}
	if parent.child(leaf) != nil {
		return fat.ResultExist
	}
	parent.children = append(parent.children, &node{
		name:     leaf,
		attr:     fat.AttrDirectory,
		modified: fat.NewDateTime(v.clock()),
	})
	return fat.ResultOK
}

// RemoveDir removes an empty directory.
func (v *Volume) RemoveDir(path string) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, injected := v.step(OpRemoveDir); injected {
		return r
	}
	if !v.mounted {
		return fat.ResultNotEnabled
	}
	parent, leaf, r := v.walkParent(path)
	if r != fat.ResultOK {
		return r
	}
	n := parent.child(leaf)
	if n == nil {
		return fat.ResultNoFile
	}
	if !n.isDir() {
		return fat.ResultNoPath
	}
	if len(n.children) > 0 {
		return fat.ResultDenied
	}
	parent.removeChild(n)
	return fat.ResultOK
}

// SetTimes overwrites the modification stamp of the entry.
func (v *Volume) SetTimes(path string, modified fat.DateTime) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, injected := v.step(OpSetTimes); injected {
		return r
	}
	if !v.mounted {
		return fat.ResultNotEnabled
	}
	parent, leaf, r := v.walkParent(path)
	if r != fat.ResultOK {
		return r
	}
	n := parent.child(leaf)
	if n == nil {
		return fat.ResultNoFile
	}
	n.modified = modified
	v.lastSetTimesPath = path
	v.lastSetTimes = modified
	return fat.ResultOK
}

// dir is an enumeration cursor over one directory's children.
type dir struct {
	vol    *Volume
	node   *node
	idx    int
	closed bool
}

func (d *dir) Read() (fat.FileInfo, fat.Result) {
	d.vol.mu.Lock()
	defer d.vol.mu.Unlock()
	if r, injected := d.vol.step(OpReadDir); injected {
		return fat.FileInfo{}, r
	}
	if d.closed {
		return fat.FileInfo{}, fat.ResultInvalidObject
	}
	if d.idx >= len(d.node.children) {
		return fat.FileInfo{}, fat.ResultOK
	}
	info := d.node.children[d.idx].info()
	d.idx++
	return info, fat.ResultOK
}

func (d *dir) Seek(rel int) fat.Result {
	d.vol.mu.Lock()
	defer d.vol.mu.Unlock()
	if r, injected := d.vol.step(OpSeekDir); injected {
		return r
	}
	if d.closed {
		return fat.ResultInvalidObject
	}
	if rel != -1 || d.idx == 0 {
		return fat.ResultInvalidParameter
	}
	d.idx--
	return fat.ResultOK
}

func (d *dir) Close() fat.Result {
	d.vol.mu.Lock()
	defer d.vol.mu.Unlock()
	if r, injected := d.vol.step(OpCloseDir); injected {
		return r
	}
	if d.closed {
		return fat.ResultInvalidObject
	}
	d.closed = true
	return fat.ResultOK
}

// file is an open handle onto one file node.
type file struct {
	vol    *Volume
	node   *node
	mode   fat.AccessMode
	pos    int64
	closed bool
}

func (f *file) Seek(offset int64) fat.Result {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if r, injected := f.vol.step(OpSeek); injected {
		return r
	}
	if f.closed {
		return fat.ResultInvalidObject
	}
	if offset < 0 {
		return fat.ResultInvalidParameter
	}
	f.pos = offset
	return fat.ResultOK
}

func (f *file) Read(p []byte) (int, fat.Result) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if r, injected := f.vol.step(OpRead); injected {
		return 0, r
	}
	if f.closed {
		return 0, fat.ResultInvalidObject
	}
	if f.mode&fat.ModeRead == 0 {
		return 0, fat.ResultDenied
	}
	if f.pos >= int64(len(f.node.data)) {
		return 0, fat.ResultOK
	}
	n := copy(p, f.node.data[f.pos:])
	f.pos += int64(n)
	return n, fat.ResultOK
}

func (f *file) Write(p []byte) (int, fat.Result) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if r, injected := f.vol.step(OpWrite); injected {
		return 0, r
	}
	if f.closed {
		return 0, fat.ResultInvalidObject
	}
	if f.mode&fat.ModeWrite == 0 {
		return 0, fat.ResultDenied
	}
	if gap := f.pos - int64(len(f.node.data)); gap > 0 {
		f.node.data = append(f.node.data, make([]byte, gap)...)
	}
	overlap := copy(f.node.data[f.pos:], p)
	f.node.data = append(f.node.data, p[overlap:]...)
	f.pos += int64(len(p))
	f.node.modified = fat.NewDateTime(f.vol.clock())
	return len(p), fat.ResultOK
}

func (f *file) Sync() fat.Result {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if r, injected := f.vol.step(OpSync); injected {
		return r
	}
	if f.closed {
		return fat.ResultInvalidObject
	}
	return fat.ResultOK
}

func (f *file) Close() fat.Result {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if r, injected := f.vol.step(OpCloseFile); injected {
		return r
	}
	if f.closed {
		return fat.ResultInvalidObject
	}
	f.closed = true
	return fat.ResultOK
}
