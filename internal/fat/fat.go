// Package fat defines the narrow surface of a FAT filesystem library as
// consumed by the POSIX adapter: typed result codes, access modes, attribute
// bits, packed timestamps, and the Volume/Dir/File interfaces every backend
// implements. The adapter never sees anything below this surface; the block
// transport, the on-medium format and any internal retrying belong to the
// implementations.
package fat

// AccessMode selects how a file is opened, mirroring the FatFs FA_* flags.
type AccessMode uint8

const (
	ModeOpenExisting AccessMode = 0x00
	ModeRead         AccessMode = 0x01
	ModeWrite        AccessMode = 0x02
	ModeCreateNew    AccessMode = 0x04
	ModeCreateAlways AccessMode = 0x08
	ModeOpenAlways   AccessMode = 0x10
	ModeOpenAppend   AccessMode = 0x30
)

// Attr holds the directory-entry attribute bits of an entry.
type Attr uint8

const (
	AttrReadOnly  Attr = 0x01
	AttrHidden    Attr = 0x02
	AttrSystem    Attr = 0x04
	AttrDirectory Attr = 0x10
	AttrArchive   Attr = 0x20
)

// SectorSize is the logical block size of FAT media. Block counts reported
// to the host are computed against it.
const SectorSize = 512

// FileInfo is the snapshot one directory-read step or stat call returns.
// It is only valid until the cursor advances; callers copy what they keep.
type FileInfo struct {
	Name     string
	Size     int64
	Attr     Attr
	Modified DateTime
}

// IsDir reports whether the entry is a directory.
func (fi FileInfo) IsDir() bool {
	return fi.Attr&AttrDirectory != 0
}

// Volume is one mountable FAT filesystem. Implementations serialize their
// own internals; callers may invoke operations from multiple goroutines.
// Every path is absolute, slash-separated, rooted at the volume.
type Volume interface {
	// Mount establishes access to the medium. With force set the medium
	// is (re-)probed immediately; otherwise mounting may defer work until
	// first access, again per FatFs convention.
	Mount(force bool) Result
	// Unmount releases the work area. Always safe to call.
	Unmount() Result

	// Stat describes the entry at path. The root directory itself is not
	// statable (ResultInvalidName), as on FatFs.
	Stat(path string) (FileInfo, Result)

	// OpenDir opens an enumeration cursor over the directory at path.
	OpenDir(path string) (Dir, Result)

	// OpenFile opens or creates the file at path per mode.
	OpenFile(path string, mode AccessMode) (File, Result)

	// Unlink removes a file, or a subdirectory if it is empty.
	Unlink(path string) Result
	// MakeDir creates a single directory; the parent must exist.
	MakeDir(path string) Result
	// RemoveDir removes an empty directory.
	RemoveDir(path string) Result
	// SetTimes overwrites the modification timestamp of the entry.
	SetTimes(path string, modified DateTime) Result
}

// Dir is a directory enumeration cursor.
type Dir interface {
	// Read returns the next entry. End of directory is ResultOK with an
	// empty Name.
	Read() (FileInfo, Result)
	// Seek moves the cursor relative to its position. The adapter relies
	// only on Seek(-1): step back exactly one entry so it is re-read.
	// Backends without native reverse stepping must emulate it.
	Seek(rel int) Result
	// Close releases the cursor.
	Close() Result
}

// File is an open file handle. The position set by Seek is the one Read and
// Write consume; there is no implicit rewind.
type File interface {
	// Seek positions the handle at the absolute byte offset.
	Seek(offset int64) Result
	// Read fills p from the current position, short at end of file. A
	// short or zero count with ResultOK is end of data, not an error.
	Read(p []byte) (int, Result)
	// Write stores p at the current position, extending the file as
	// needed.
	Write(p []byte) (int, Result)
	// Sync flushes cached writes of this handle to the medium.
	Sync() Result
	// Close flushes and releases the handle.
	Close() Result
}
