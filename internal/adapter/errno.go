package adapter

import (
	"syscall"

	"github.com/hermitretro/fatfuse/internal/fat"
)

// Errno folds a library result into the POSIX error the tools above the
// mount expect. The collapses are deliberate and many-to-one; shell
// behavior depends on these exact codes.
func Errno(r fat.Result) syscall.Errno {
	switch r {
	case fat.ResultOK:
		return 0
	case fat.ResultDiskErr, fat.ResultNotReady:
		return syscall.EINTR
	case fat.ResultIntErr:
		return syscall.ENOMEM
	case fat.ResultNoFile, fat.ResultNoPath, fat.ResultInvalidName, fat.ResultInvalidObject:
		return syscall.ENOENT
	case fat.ResultDenied, fat.ResultExist, fat.ResultWriteProtected, fat.ResultInvalidDrive, fat.ResultTimeout, fat.ResultLocked:
		return syscall.EACCES
	case fat.ResultNotEnabled:
		return syscall.ENOSPC
	case fat.ResultNoFilesystem, fat.ResultMkfsAborted:
		return syscall.ENODEV
	case fat.ResultNotEnoughCore:
		return syscall.ENAMETOOLONG
	case fat.ResultTooManyOpenFiles:
		return syscall.ENFILE
	default:
		return syscall.ENOENT
	}
}
