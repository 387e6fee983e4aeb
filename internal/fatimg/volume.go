// Package fatimg adapts a FAT filesystem inside a disk image to the
// fat.Volume contract, using go-diskfs for the on-disk format. Library
// errors are folded back into fat.Result codes so callers see the same
// taxonomy regardless of which backend is underneath.
package fatimg

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"

	"github.com/hermitretro/fatfuse/internal/fat"
)

// Option configures a Volume.
type Option func(*Volume)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *Volume) {
		v.logger = logger
	}
}

// WithReadOnly opens the image read-only. Writes will surface
// ResultWriteProtected.
func WithReadOnly() Option {
	return func(v *Volume) {
		v.readOnly = true
	}
}

// WithPartition selects a partition by number. Zero, the default, means
// the image holds a filesystem with no partition table.
func WithPartition(n int) Option {
	return func(v *Volume) {
		v.partition = n
	}
}

// Volume is a fat.Volume backed by a disk image file.
type Volume struct {
	mu        sync.Mutex
	path      string
	readOnly  bool
	partition int
	logger    *slog.Logger

	disk *disk.Disk
	fsys filesystem.FileSystem
}

var _ fat.Volume = (*Volume)(nil)

// New prepares a volume over the image at path. The image is not opened
// until Mount.
func New(path string, opts ...Option) *Volume {
	v := &Volume{
		path:   path,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With("component", "fatimg", "image", path)
	return v
}

// Mount opens the image and locates the FAT filesystem. A repeated Mount
// with force set reopens the image from scratch, which is how callers
// recover after a medium swap.
func (v *Volume) Mount(force bool) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fsys != nil {
		if !force {
			return fat.ResultOK
		}
		v.closeLocked()
	}

	openMode := diskfs.ReadWriteExclusive
	if v.readOnly {
		openMode = diskfs.ReadOnly
	}
	d, err := diskfs.Open(v.path, diskfs.WithOpenMode(openMode))
	if err != nil {
		v.logger.Error("open image failed", "err", err)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return fat.ResultNotReady
		}
		return fat.ResultDiskErr
	}
	fsys, err := d.GetFilesystem(v.partition)
	if err != nil {
		v.logger.Error("no filesystem in image", "partition", v.partition, "err", err)
		d.Close()
		return fat.ResultNoFilesystem
	}
	if fsys.Type() != filesystem.TypeFat32 {
		v.logger.Error("image holds a non-FAT filesystem", "type", fsys.Type())
		d.Close()
		return fat.ResultNoFilesystem
	}
	v.disk = d
	v.fsys = fsys
	v.logger.Info("volume mounted", "label", strings.TrimSpace(fsys.Label()))
	return fat.ResultOK
}

// Unmount closes the image.
func (v *Volume) Unmount() fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeLocked()
	return fat.ResultOK
}

func (v *Volume) closeLocked() {
	if v.disk != nil {
		if err := v.disk.Close(); err != nil {
			v.logger.Warn("close image failed", "err", err)
		}
	}
	v.disk = nil
	v.fsys = nil
}

// Stat describes the entry at p. The root directory has no entry of its
// own in FAT and reports ResultInvalidName, as callers expect.
func (v *Volume) Stat(p string) (fat.FileInfo, fat.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fsys == nil {
		return fat.FileInfo{}, fat.ResultNotEnabled
	}
	return v.statLocked(p)
}

func (v *Volume) statLocked(p string) (fat.FileInfo, fat.Result) {
	if p == "" || p[0] != '/' {
		return fat.FileInfo{}, fat.ResultInvalidName
	}
	if p == "/" {
		return fat.FileInfo{}, fat.ResultInvalidName
	}
	parent, leaf := path.Split(p)
	entries, err := v.fsys.ReadDir(path.Clean(parent))
	if err != nil {
		r := translate(err)
		if r == fat.ResultNoFile {
			r = fat.ResultNoPath
		}
		return fat.FileInfo{}, r
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), leaf) {
			return entryInfo(e), fat.ResultOK
		}
	}
	return fat.FileInfo{}, fat.ResultNoFile
}

func entryInfo(e os.FileInfo) fat.FileInfo {
	info := fat.FileInfo{
		Name:     e.Name(),
		Modified: fat.NewDateTime(e.ModTime()),
	}
	if e.IsDir() {
		info.Attr = fat.AttrDirectory
	} else {
		info.Attr = fat.AttrArchive
		info.Size = e.Size()
	}
	return info
}

// OpenDir snapshots the directory at p and returns a cursor over it.
func (v *Volume) OpenDir(p string) (fat.Dir, fat.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fsys == nil {
		return nil, fat.ResultNotEnabled
	}
	entries, err := v.fsys.ReadDir(path.Clean(p))
	if err != nil {
		r := translate(err)
		if r == fat.ResultNoFile {
			r = fat.ResultNoPath
		}
		return nil, r
	}
	infos := make([]fat.FileInfo, 0, len(entries))
	for _, e := range entries {
		// FAT subdirectories carry dot entries on disk. The cursor
		// reports real children only.
		if e.Name() == "." || e.Name() == ".." {
			continue
		}
		infos = append(infos, entryInfo(e))
	}
	return &dir{entries: infos}, fat.ResultOK
}

// OpenFile opens or creates the file at p per mode.
func (v *Volume) OpenFile(p string, mode fat.AccessMode) (fat.File, fat.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fsys == nil {
		return nil, fat.ResultNotEnabled
	}

	info, r := v.statLocked(p)
	switch r {
	case fat.ResultOK:
		if info.IsDir() {
			return nil, fat.ResultNoFile
		}
		if mode&fat.ModeCreateNew != 0 {
			return nil, fat.ResultExist
		}
	case fat.ResultNoFile:
		if mode&(fat.ModeCreateNew|fat.ModeCreateAlways|fat.ModeOpenAlways) == 0 {
			return nil, fat.ResultNoFile
		}
	default:
		return nil, r
	}

	flag := os.O_RDONLY
	switch {
	case mode&fat.ModeRead != 0 && mode&fat.ModeWrite != 0:
		flag = os.O_RDWR
	case mode&fat.ModeWrite != 0:
		flag = os.O_WRONLY
	}
	if mode&(fat.ModeCreateNew|fat.ModeCreateAlways|fat.ModeOpenAlways) != 0 {
		flag |= os.O_CREATE
	}
	if mode&fat.ModeCreateAlways != 0 {
		flag |= os.O_TRUNC
	}

	handle, err := v.fsys.OpenFile(p, flag)
	if err != nil {
		return nil, translate(err)
	}
	f := &file{vol: v, handle: handle, mode: mode}
	if mode&fat.ModeOpenAppend == fat.ModeOpenAppend {
		if _, err := handle.Seek(0, io.SeekEnd); err != nil {
			handle.Close()
			return nil, translate(err)
		}
	}
	return f, fat.ResultOK
}

// Unlink removes a file or an empty directory.
func (v *Volume) Unlink(p string) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fsys == nil {
		return fat.ResultNotEnabled
	}
	if _, r := v.statLocked(p); r != fat.ResultOK {
		return r
	}
	if err := v.fsys.Remove(p); err != nil {
		return translate(err)
	}
	return fat.ResultOK
}

// MakeDir creates one directory under an existing parent. The library's
// Mkdir creates missing parents, so parent existence is checked first to
// keep single-level semantics.
func (v *Volume) MakeDir(p string) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fsys == nil {
		return fat.ResultNotEnabled
	}
	switch _, r := v.statLocked(p); r {
	case fat.ResultOK:
		return fat.ResultExist
	case fat.ResultNoFile:
	default:
		return r
	}
	if err := v.fsys.Mkdir(p); err != nil {
		return translate(err)
	}
	return fat.ResultOK
}

// RemoveDir removes an empty directory.
func (v *Volume) RemoveDir(p string) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fsys == nil {
		return fat.ResultNotEnabled
	}
	info, r := v.statLocked(p)
	if r != fat.ResultOK {
		return r
	}
	if !info.IsDir() {
		return fat.ResultNoPath
	}
	if err := v.fsys.Remove(p); err != nil {
		return translate(err)
	}
	return fat.ResultOK
}

// SetTimes is accepted but not persisted. go-diskfs exposes no way to
// rewrite a directory entry's timestamps, so the stamp is logged and
// dropped rather than failing the caller.
func (v *Volume) SetTimes(p string, modified fat.DateTime) fat.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fsys == nil {
		return fat.ResultNotEnabled
	}
	if _, r := v.statLocked(p); r != fat.ResultOK {
		return r
	}
	v.logger.Debug("set_times not persisted", "path", p, "stamp", modified.Time())
	return fat.ResultOK
}

// translate folds a go-diskfs error into the nearest fat.Result.
func translate(err error) fat.Result {
	switch {
	case err == nil:
		return fat.ResultOK
	case errors.Is(err, fs.ErrNotExist):
		return fat.ResultNoFile
	case errors.Is(err, fs.ErrPermission):
		return fat.ResultDenied
	case errors.Is(err, fs.ErrExist):
		return fat.ResultExist
	case errors.Is(err, filesystem.ErrReadonlyFilesystem):
		return fat.ResultWriteProtected
	case errors.Is(err, filesystem.ErrNotSupported), errors.Is(err, filesystem.ErrNotImplemented):
		return fat.ResultIntErr
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "does not exist"), strings.Contains(msg, "not found"), strings.Contains(msg, "no such"):
		return fat.ResultNoFile
	case strings.Contains(msg, "already exists"):
		return fat.ResultExist
	case strings.Contains(msg, "not empty"):
		return fat.ResultDenied
	case strings.Contains(msg, "read-only"), strings.Contains(msg, "readonly"):
		return fat.ResultWriteProtected
	case strings.Contains(msg, "i/o"), strings.Contains(msg, "input/output"):
		return fat.ResultDiskErr
	default:
		return fat.ResultIntErr
	}
}

// dir is a cursor over a snapshot of directory entries.
type dir struct {
	entries []fat.FileInfo
	idx     int
	closed  bool
}

func (d *dir) Read() (fat.FileInfo, fat.Result) {
	if d.closed {
		return fat.FileInfo{}, fat.ResultInvalidObject
	}
	if d.idx >= len(d.entries) {
		return fat.FileInfo{}, fat.ResultOK
	}
	info := d.entries[d.idx]
	d.idx++
	return info, fat.ResultOK
}

func (d *dir) Seek(rel int) fat.Result {
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
	if d.closed {
		return fat.ResultInvalidObject
	}
	d.closed = true
	return fat.ResultOK
}

// file wraps a go-diskfs handle. Access goes through the volume lock
// because go-diskfs filesystems are not safe for concurrent use.
type file struct {
	vol    *Volume
	handle filesystem.File
	mode   fat.AccessMode
	closed bool
}

func (f *file) Seek(offset int64) fat.Result {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.closed {
		return fat.ResultInvalidObject
	}
	if offset < 0 {
		return fat.ResultInvalidParameter
	}
	if _, err := f.handle.Seek(offset, io.SeekStart); err != nil {
		return translate(err)
	}
	return fat.ResultOK
}

func (f *file) Read(p []byte) (int, fat.Result) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.closed {
		return 0, fat.ResultInvalidObject
	}
	if f.mode&fat.ModeRead == 0 {
		return 0, fat.ResultDenied
	}
	n, err := f.handle.Read(p)
	if err != nil && err != io.EOF {
		return n, translate(err)
	}
	// End of file is a short read, not an error.
	return n, fat.ResultOK
}

func (f *file) Write(p []byte) (int, fat.Result) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.closed {
		return 0, fat.ResultInvalidObject
	}
	if f.mode&fat.ModeWrite == 0 {
		return 0, fat.ResultDenied
	}
	n, err := f.handle.Write(p)
	if err != nil {
		return n, translate(err)
	}
	return n, fat.ResultOK
}

func (f *file) Sync() fat.Result {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.closed {
		return fat.ResultInvalidObject
	}
	// go-diskfs commits directory entries on Close and writes data
	// through to the image as it goes. Nothing further to flush here.
	return fat.ResultOK
}

func (f *file) Close() fat.Result {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.closed {
		return fat.ResultInvalidObject
	}
	f.closed = true
	if err := f.handle.Close(); err != nil {
		return translate(err)
	}
	return fat.ResultOK
}
