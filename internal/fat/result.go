package fat

import "strconv"

// Result is the status code every volume primitive reports. The values and
// their meanings track the classic FatFs result set, which is what the
// adapter's error taxonomy is defined against.
type Result int

const (
	ResultOK Result = iota
	ResultDiskErr
	ResultIntErr
	ResultNotReady
	ResultNoFile
	ResultNoPath
	ResultInvalidName
	ResultDenied
	ResultExist
	ResultInvalidObject
	ResultWriteProtected
	ResultInvalidDrive
	ResultNotEnabled
	ResultNoFilesystem
	ResultMkfsAborted
	ResultTimeout
	ResultLocked
	ResultNotEnoughCore
	ResultTooManyOpenFiles
	ResultInvalidParameter
)

// String returns the short code name, suitable for logs and metric labels.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultDiskErr:
		return "DISK_ERR"
	case ResultIntErr:
		return "INT_ERR"
	case ResultNotReady:
		return "NOT_READY"
	case ResultNoFile:
		return "NO_FILE"
	case ResultNoPath:
		return "NO_PATH"
	case ResultInvalidName:
		return "INVALID_NAME"
	case ResultDenied:
		return "DENIED"
	case ResultExist:
		return "EXIST"
	case ResultInvalidObject:
		return "INVALID_OBJECT"
	case ResultWriteProtected:
		return "WRITE_PROTECTED"
	case ResultInvalidDrive:
		return "INVALID_DRIVE"
	case ResultNotEnabled:
		return "NOT_ENABLED"
	case ResultNoFilesystem:
		return "NO_FILESYSTEM"
	case ResultMkfsAborted:
		return "MKFS_ABORTED"
	case ResultTimeout:
		return "TIMEOUT"
	case ResultLocked:
		return "LOCKED"
	case ResultNotEnoughCore:
		return "NOT_ENOUGH_CORE"
	case ResultTooManyOpenFiles:
		return "TOO_MANY_OPEN_FILES"
	case ResultInvalidParameter:
		return "INVALID_PARAMETER"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(r)) + ")"
	}
}

// Message returns the descriptive text for r, in the wording the FatFs
// documentation uses.
func (r Result) Message() string {
	switch r {
	case ResultOK:
		return "succeeded"
	case ResultDiskErr:
		return "a hard error occurred in the low level disk I/O layer"
	case ResultIntErr:
		return "assertion failed"
	case ResultNotReady:
		return "the physical drive cannot work"
	case ResultNoFile:
		return "could not find the file"
	case ResultNoPath:
		return "could not find the path"
	case ResultInvalidName:
		return "the path name format is invalid"
	case ResultDenied:
		return "access denied due to prohibited access or directory full"
	case ResultExist:
		return "access denied due to prohibited access"
	case ResultInvalidObject:
		return "the file/directory object is invalid"
	case ResultWriteProtected:
		return "the physical drive is write protected"
	case ResultInvalidDrive:
		return "the logical drive number is invalid"
	case ResultNotEnabled:
		return "the volume has no work area"
	case ResultNoFilesystem:
		return "there is no valid FAT volume"
	case ResultMkfsAborted:
		return "the format operation aborted"
	case ResultTimeout:
		return "could not get a grant to access the volume within defined period"
	case ResultLocked:
		return "the operation is rejected according to the file sharing policy"
	case ResultNotEnoughCore:
		return "working buffer could not be allocated"
	case ResultTooManyOpenFiles:
		return "number of open files exceeds the limit"
	case ResultInvalidParameter:
		return "given parameter is invalid"
	default:
		return "unknown result"
	}
}
