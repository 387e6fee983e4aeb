// Package fuse bridges the kernel filesystem protocol to the adapter.
package fuse

import (
	"context"
	"log/slog"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hermitretro/fatfuse/internal/adapter"
)

// FatNode represents one path on the volume. It implements the fs.Node*
// interfaces the kernel drives.
type FatNode struct {
	fs.Inode

	// Absolute path, "/" for the root
	path string

	// Shared adapter over the single mounted volume
	adapter *adapter.Adapter

	// Logger for structured logging
	logger *slog.Logger
}

// Ensure FatNode implements required interfaces
var (
	_ fs.NodeGetattrer = (*FatNode)(nil)
	_ fs.NodeLookuper  = (*FatNode)(nil)
	_ fs.NodeReaddirer = (*FatNode)(nil)
	_ fs.NodeOpener    = (*FatNode)(nil)
	_ fs.NodeStatfser  = (*FatNode)(nil)
	// Write interfaces
	_ fs.NodeCreater    = (*FatNode)(nil)
	_ fs.NodeMkdirer    = (*FatNode)(nil)
	_ fs.NodeUnlinker   = (*FatNode)(nil)
	_ fs.NodeRmdirer    = (*FatNode)(nil)
	_ fs.NodeSetattrer  = (*FatNode)(nil)
	_ fs.NodeSetxattrer = (*FatNode)(nil)
)

// NewRoot creates the root node over a.
func NewRoot(a *adapter.Adapter, logger *slog.Logger) *FatNode {
	if logger == nil {
		logger = slog.Default()
	}
	return &FatNode{
		path:    "/",
		adapter: a,
		logger:  logger.With("component", "fuse"),
	}
}

// newChild creates a child node sharing the adapter.
func (n *FatNode) newChild(path string) *FatNode {
	return &FatNode{
		path:    path,
		adapter: n.adapter,
		logger:  n.logger,
	}
}

// childPath joins a child name onto this node's path.
func (n *FatNode) childPath(name string) string {
	return joinChild(n.path, name)
}

func joinChild(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// hashPathForNode creates a stable inode number from a path
func hashPathForNode(path string) uint64 {
	h := uint64(14695981039346656037) // FNV offset basis
	for _, c := range []byte(path) {
		h ^= uint64(c)
		h *= 1099511628211 // FNV prime
	}
	return h
}

// fillAttr copies an adapter snapshot into the kernel attribute reply.
// Entries without a real inode number get one hashed from the path.
func fillAttr(st *adapter.Stat, out *fuse.Attr, path string) {
	out.Mode = st.Mode
	out.Nlink = st.Nlink
	out.Size = uint64(st.Size)
	out.Blocks = uint64(st.Blocks)
	out.Blksize = st.Blksize
	if st.Ino != 0 {
		out.Ino = st.Ino
	} else {
		out.Ino = hashPathForNode(path)
	}
	if !st.Mtime.IsZero() {
		out.SetTimes(&st.Atime, &st.Mtime, &st.Ctime)
	}
}

// Getattr resolves this node's attributes.
func (n *FatNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, errno := n.adapter.Getattr(ctx, n.path)
	if errno != 0 {
		return errno
	}
	fillAttr(&st, &out.Attr, n.path)
	return 0
}

// Lookup resolves a child entry in this directory.
func (n *FatNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := n.childPath(name)
	st, errno := n.adapter.Getattr(ctx, path)
	if errno != 0 {
		return nil, errno
	}
	fillAttr(&st, &out.Attr, path)
	stable := fs.StableAttr{Mode: st.Mode & uint32(syscall.S_IFMT), Ino: out.Attr.Ino}
	return n.NewInode(ctx, n.newChild(path), stable), 0
}

// Readdir opens a directory session and streams its entries.
func (n *FatNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.logger.Debug("readdir", "path", n.path)
	fh, errno := n.adapter.Opendir(ctx, n.path)
	if errno != 0 {
		return nil, errno
	}
	return newDirStream(ctx, n.adapter, fh, n.path), 0
}

// Open opens this node's file. The kernel keeps its page cache across
// opens, matching the old auto_cache behavior.
func (n *FatNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fh, errno := n.adapter.Open(ctx, n.path, flags)
	if errno != 0 {
		return nil, 0, errno
	}
	handle := &fatFile{adapter: n.adapter, fh: fh, path: n.path, logger: n.logger}
	return handle, fuse.FOPEN_KEEP_CACHE, 0
}

// Create makes a new file under this directory and opens it.
func (n *FatNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	path := n.childPath(name)
	fh, errno := n.adapter.Create(ctx, path)
	if errno != 0 {
		return nil, nil, 0, errno
	}
	st, errno := n.adapter.Getattr(ctx, path)
	if errno != 0 {
		st = adapter.Stat{Mode: uint32(syscall.S_IFREG) | 0o644, Nlink: 1}
	}
	fillAttr(&st, &out.Attr, path)
	stable := fs.StableAttr{Mode: syscall.S_IFREG, Ino: out.Attr.Ino}
	inode := n.NewInode(ctx, n.newChild(path), stable)
	handle := &fatFile{adapter: n.adapter, fh: fh, path: path, logger: n.logger}
	return inode, handle, fuse.FOPEN_KEEP_CACHE, 0
}

// Mkdir creates a subdirectory.
func (n *FatNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := n.childPath(name)
	if errno := n.adapter.Mkdir(ctx, path); errno != 0 {
		return nil, errno
	}
	st, errno := n.adapter.Getattr(ctx, path)
	if errno != 0 {
		st = adapter.Stat{Mode: uint32(syscall.S_IFDIR) | 0o755, Nlink: 2}
	}
	fillAttr(&st, &out.Attr, path)
	stable := fs.StableAttr{Mode: syscall.S_IFDIR, Ino: out.Attr.Ino}
	return n.NewInode(ctx, n.newChild(path), stable), 0
}

// Unlink removes a child file.
func (n *FatNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return n.adapter.Unlink(ctx, n.childPath(name))
}

// Rmdir removes a child directory.
func (n *FatNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	return n.adapter.Rmdir(ctx, n.childPath(name))
}

// Setattr dispatches the kernel's attribute changes: size to truncate,
// mode to chmod, ownership to chown, timestamps to utimens. The volume
// treats most of these as accepted no-ops.
func (n *FatNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if errno := n.adapter.Truncate(ctx, n.path, int64(size)); errno != 0 {
			return errno
		}
	}
	if mode, ok := in.GetMode(); ok {
		if errno := n.adapter.Chmod(ctx, n.path, mode); errno != 0 {
			return errno
		}
	}
	uid, hasUID := in.GetUID()
	gid, hasGID := in.GetGID()
	if hasUID || hasGID {
		if errno := n.adapter.Chown(ctx, n.path, uid, gid); errno != 0 {
			return errno
		}
	}
	_, hasAtime := in.GetATime()
	_, hasMtime := in.GetMTime()
	if hasAtime || hasMtime {
		if errno := n.adapter.Utimens(ctx, n.path); errno != 0 {
			return errno
		}
	}
	st, errno := n.adapter.Getattr(ctx, n.path)
	if errno != 0 {
		return errno
	}
	fillAttr(&st, &out.Attr, n.path)
	return 0
}

// Setxattr accepts extended attributes without storing them.
func (n *FatNode) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return n.adapter.Setxattr(ctx, n.path, attr)
}

// Statfs reports fixed filesystem geometry for df and friends. The volume
// has no free-space primitive, so only block size and name length are
// meaningful.
func (n *FatNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	const blockSize = 512

	out.Bsize = blockSize
	out.Frsize = blockSize
	out.NameLen = 255

	return 0
}
