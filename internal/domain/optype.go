package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OpType is a gluster file operation (FOP) as named in profile output.
type OpType uint8

const (
	OpUnknown OpType = iota
	OpNull
	OpStat
	OpReadlink
	OpMknod
	OpMkdir
	OpUnlink
	OpRmdir
	OpSymlink
	OpRename
	OpLink
	OpTruncate
	OpOpen
	OpRead
	OpWrite
	OpStatfs
	OpFlush
	OpFsync
	OpSetxattr
	OpGetxattr
	OpRemovexattr
	OpOpendir
	OpFsyncdir
	OpAccess
	OpCreate
	OpFtruncate
	OpFstat
	OpLk
	OpLookup
	OpReaddir
	OpInodelk
	OpFinodelk
	OpEntrylk
	OpFentrylk
	OpXattrop
	OpFxattrop
	OpFgetxattr
	OpFsetxattr
	OpRchecksum
	OpSetattr
	OpFsetattr
	OpReaddirp
	OpForget
	OpRelease
	OpReleasedir
	OpGetspec
	OpFremovexattr
	OpFallocate
	OpDiscard
	OpZerofill
	OpIpc
	OpSeek
	OpLease
	OpGetactivelk
	OpSetactivelk
	OpPut
	OpIcreate
	OpNamelink
	OpCopyFileRange

	opCount
)

// OpInfo documents an operation type. Common marks the FOPs that show up
// in most workloads; it is never used for parsing decisions.
type OpInfo struct {
	Name        string
	Description string
	Common      bool
}

var opTable = [opCount]OpInfo{
	OpUnknown:       {"UNKNOWN", "operation name not recognised by this version", false},
	OpNull:          {"NULL", "no-op placeholder", false},
	OpStat:          {"STAT", "get file attributes by path", true},
	OpReadlink:      {"READLINK", "read target of a symbolic link", false},
	OpMknod:         {"MKNOD", "create a special or regular file node", false},
	OpMkdir:         {"MKDIR", "create a directory", true},
	OpUnlink:        {"UNLINK", "remove a file", true},
	OpRmdir:         {"RMDIR", "remove a directory", false},
	OpSymlink:       {"SYMLINK", "create a symbolic link", false},
	OpRename:        {"RENAME", "rename a file or directory", false},
	OpLink:          {"LINK", "create a hard link", false},
	OpTruncate:      {"TRUNCATE", "truncate a file by path", false},
	OpOpen:          {"OPEN", "open an existing file", true},
	OpRead:          {"READ", "read data from an open file", true},
	OpWrite:         {"WRITE", "write data to an open file", true},
	OpStatfs:        {"STATFS", "get filesystem statistics", true},
	OpFlush:         {"FLUSH", "flush on close of a file descriptor", true},
	OpFsync:         {"FSYNC", "persist file data to stable storage", true},
	OpSetxattr:      {"SETXATTR", "set an extended attribute by path", false},
	OpGetxattr:      {"GETXATTR", "get an extended attribute by path", true},
	OpRemovexattr:   {"REMOVEXATTR", "remove an extended attribute by path", false},
	OpOpendir:       {"OPENDIR", "open a directory for listing", true},
	OpFsyncdir:      {"FSYNCDIR", "persist directory contents", false},
	OpAccess:        {"ACCESS", "check access permissions", false},
	OpCreate:        {"CREATE", "create and open a new file", true},
	OpFtruncate:     {"FTRUNCATE", "truncate an open file", false},
	OpFstat:         {"FSTAT", "get attributes of an open file", true},
	OpLk:            {"LK", "POSIX record lock", false},
	OpLookup:        {"LOOKUP", "resolve a name in a directory", true},
	OpReaddir:       {"READDIR", "list directory entries", false},
	OpInodelk:       {"INODELK", "internal inode lock", true},
	OpFinodelk:      {"FINODELK", "internal inode lock on an open file", true},
	OpEntrylk:       {"ENTRYLK", "internal directory entry lock", true},
	OpFentrylk:      {"FENTRYLK", "internal entry lock on an open directory", false},
	OpXattrop:       {"XATTROP", "atomic extended attribute update by path", true},
	OpFxattrop:      {"FXATTROP", "atomic extended attribute update on an open file", true},
	OpFgetxattr:     {"FGETXATTR", "get an extended attribute of an open file", false},
	OpFsetxattr:     {"FSETXATTR", "set an extended attribute of an open file", false},
	OpRchecksum:     {"RCHECKSUM", "rolling checksum used by self-heal", false},
	OpSetattr:       {"SETATTR", "set file attributes by path", false},
	OpFsetattr:      {"FSETATTR", "set attributes of an open file", false},
	OpReaddirp:      {"READDIRP", "list directory entries with attributes", true},
	OpForget:        {"FORGET", "drop an inode from the inode table", false},
	OpRelease:       {"RELEASE", "last close of a file", true},
	OpReleasedir:    {"RELEASEDIR", "last close of a directory", true},
	OpGetspec:       {"GETSPEC", "fetch the volume graph", false},
	OpFremovexattr:  {"FREMOVEXATTR", "remove an extended attribute of an open file", false},
	OpFallocate:     {"FALLOCATE", "preallocate file space", false},
	OpDiscard:       {"DISCARD", "punch a hole in a file", false},
	OpZerofill:      {"ZEROFILL", "write zeroes to a range", false},
	OpIpc:           {"IPC", "translator to translator call", false},
	OpSeek:          {"SEEK", "find data or hole in a sparse file", false},
	OpLease:         {"LEASE", "acquire or release a lease", false},
	OpGetactivelk:   {"GETACTIVELK", "list active locks", false},
	OpSetactivelk:   {"SETACTIVELK", "restore active locks", false},
	OpPut:           {"PUT", "create a file with data in one call", false},
	OpIcreate:       {"ICREATE", "create an inode without a name", false},
	OpNamelink:      {"NAMELINK", "link a name to an inode created by ICREATE", false},
	OpCopyFileRange: {"COPY_FILE_RANGE", "server side copy between files", false},
}

var opByName = func() map[string]OpType {
	m := make(map[string]OpType, opCount)
	for i := OpType(0); i < opCount; i++ {
		m[opTable[i].Name] = i
	}
	return m
}()

// ParseOpType matches name case-insensitively against the known FOPs.
// Unrecognised names yield OpUnknown and false.
func ParseOpType(name string) (OpType, bool) {
	key := cases.Upper(language.Und).String(strings.TrimSpace(name))
	if key == "" || key == opTable[OpUnknown].Name {
		return OpUnknown, false
	}
	op, ok := opByName[key]
	if !ok {
		return OpUnknown, false
	}
	return op, true
}

func (o OpType) String() string {
	if o >= opCount {
		return opTable[OpUnknown].Name
	}
	return opTable[o].Name
}

// Info returns the documentation entry of o.
func (o OpType) Info() OpInfo {
	if o >= opCount {
		return opTable[OpUnknown]
	}
	return opTable[o]
}

// AllOps lists every operation type, OpUnknown last.
func AllOps() []OpType {
	out := make([]OpType, 0, opCount)
	for i := OpType(1); i < opCount; i++ {
		out = append(out, i)
	}
	return append(out, OpUnknown)
}
