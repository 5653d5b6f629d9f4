package linux

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"syscall"
	"time"
)

// OpenOptions selects how OpenFile opens a path. The zero value opens nothing
// useful; chain the setters, e.g. NewOpenOptions().Write().Append().
type OpenOptions struct {
	read     bool
	write    bool
	append   bool
	truncate bool
	create   bool
}

func NewOpenOptions() *OpenOptions {
	return &OpenOptions{}
}

func (o *OpenOptions) Read() *OpenOptions     { o.read = true; return o }
func (o *OpenOptions) Write() *OpenOptions    { o.write = true; return o }
func (o *OpenOptions) Append() *OpenOptions   { o.append = true; return o }
func (o *OpenOptions) Truncate() *OpenOptions { o.truncate = true; return o }
func (o *OpenOptions) Create() *OpenOptions   { o.create = true; return o }

func (o *OpenOptions) IsRead() bool     { return o.read }
func (o *OpenOptions) IsWrite() bool    { return o.write }
func (o *OpenOptions) IsAppend() bool   { return o.append }
func (o *OpenOptions) IsTruncate() bool { return o.truncate }
func (o *OpenOptions) IsCreate() bool   { return o.create }

// Validate rejects combinations no backend may pass on: truncating a file
// that is not opened for writing returns EINVAL.
func (o *OpenOptions) Validate() error {
	if o.truncate && !(o.write || o.append) {
		return syscall.EINVAL
	}
	return nil
}

// Flags translates the options to open(2) flags. Append implies write access,
// matching how O_APPEND is only meaningful on a writable descriptor.
func (o *OpenOptions) Flags() int {
	var flags int
	writable := o.write || o.append
	switch {
	case o.read && writable:
		flags = os.O_RDWR
	case writable:
		flags = os.O_WRONLY
	default:
		flags = os.O_RDONLY
	}
	if o.append {
		flags |= os.O_APPEND
	}
	if o.truncate {
		flags |= os.O_TRUNC
	}
	if o.create {
		flags |= os.O_CREATE
	}
	return flags
}

func (o *OpenOptions) String() string {
	return fmt.Sprintf("read=%t write=%t append=%t truncate=%t create=%t", o.read, o.write, o.append, o.truncate, o.create)
}

// FileType tags the kind of a directory entry or metadata record.
type FileType int

const (
	FileTypeOther FileType = iota
	FileTypeFile
	FileTypeDir
	FileTypeSymlink
)

func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDir:
		return "dir"
	case FileTypeSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// POSIX file type bits as used in st_mode.
const (
	ModeTypeMask    Permissions = 0o170000
	ModeSocket      Permissions = 0o140000
	ModeSymlink     Permissions = 0o120000
	ModeRegular     Permissions = 0o100000
	ModeBlock       Permissions = 0o060000
	ModeDir         Permissions = 0o040000
	ModeChar        Permissions = 0o020000
	ModeFIFO        Permissions = 0o010000
	ModeSetuid      Permissions = 0o4000
	ModeSetgid      Permissions = 0o2000
	ModeSticky      Permissions = 0o1000
	ModePermMask    Permissions = 0o777
	ModeSpecialPerm Permissions = ModeSetuid | ModeSetgid | ModeSticky | ModePermMask
)

// Permissions is a 16-bit POSIX mode, type bits included.
type Permissions uint16

// Perm returns the rwx bits only.
func (p Permissions) Perm() Permissions { return p & ModePermMask }

// Settable returns the bits a chmod may carry: rwx plus setuid, setgid and sticky.
func (p Permissions) Settable() Permissions { return p & ModeSpecialPerm }

func (p Permissions) FileType() FileType {
	switch p & ModeTypeMask {
	case ModeRegular:
		return FileTypeFile
	case ModeDir:
		return FileTypeDir
	case ModeSymlink:
		return FileTypeSymlink
	default:
		return FileTypeOther
	}
}

// FileMode converts to the Go representation used by the os package.
func (p Permissions) FileMode() os.FileMode {
	mode := os.FileMode(p.Perm())
	if p&ModeSetuid != 0 {
		mode |= os.ModeSetuid
	}
	if p&ModeSetgid != 0 {
		mode |= os.ModeSetgid
	}
	if p&ModeSticky != 0 {
		mode |= os.ModeSticky
	}
	switch p & ModeTypeMask {
	case ModeDir:
		mode |= os.ModeDir
	case ModeSymlink:
		mode |= os.ModeSymlink
	case ModeSocket:
		mode |= os.ModeSocket
	case ModeFIFO:
		mode |= os.ModeNamedPipe
	case ModeChar:
		mode |= os.ModeDevice | os.ModeCharDevice
	case ModeBlock:
		mode |= os.ModeDevice
	}
	return mode
}

func (p Permissions) String() string {
	return fmt.Sprintf("%06o", uint16(p))
}

// PermissionsFromFileMode is the inverse of Permissions.FileMode.
func PermissionsFromFileMode(mode os.FileMode) Permissions {
	p := Permissions(mode.Perm())
	if mode&os.ModeSetuid != 0 {
		p |= ModeSetuid
	}
	if mode&os.ModeSetgid != 0 {
		p |= ModeSetgid
	}
	if mode&os.ModeSticky != 0 {
		p |= ModeSticky
	}
	switch {
	case mode.IsDir():
		p |= ModeDir
	case mode&os.ModeSymlink != 0:
		p |= ModeSymlink
	case mode&os.ModeSocket != 0:
		p |= ModeSocket
	case mode&os.ModeNamedPipe != 0:
		p |= ModeFIFO
	case mode&os.ModeCharDevice != 0:
		p |= ModeChar
	case mode&os.ModeDevice != 0:
		p |= ModeBlock
	case mode.IsRegular():
		p |= ModeRegular
	}
	return p
}

// DirEntry is one child returned by ListDir.
type DirEntry struct {
	Path     string
	FileType FileType
	Name     string
}

// NewDirEntry builds an entry for name inside dir.
func NewDirEntry(dir, name string, fileType FileType) DirEntry {
	return DirEntry{Path: path.Join(dir, name), FileType: fileType, Name: name}
}

// FileMetadata describes a filesystem object. Timestamps and owner names are
// nil when the backend cannot report them.
type FileMetadata struct {
	FileType    FileType
	Size        uint64
	Permissions Permissions
	Modified    *time.Time
	Accessed    *time.Time
	Created     *time.Time
	UID         uint32
	GID         uint32
	UserName    *string
	GroupName   *string
}

// File is an open handle returned by OpenFile. Handles are owned by the
// caller that opened them and must not be shared between goroutines.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// Filesystem is the filesystem capability of a backend. Paths are absolute
// POSIX paths.
type Filesystem interface {
	Exists(ctx context.Context, path string) (bool, error)
	CreateFile(ctx context.Context, path string) error
	OpenFile(ctx context.Context, path string, options *OpenOptions) (File, error)
	RenameFile(ctx context.Context, oldPath, newPath string) error
	// CopyFile returns the number of bytes copied when the backend knows it cheaply.
	CopyFile(ctx context.Context, oldPath, newPath string) (*uint64, error)
	Canonicalize(ctx context.Context, path string) (string, error)
	CreateSymlink(ctx context.Context, sourcePath, destinationPath string) error
	CreateHardLink(ctx context.Context, sourcePath, destinationPath string) error
	ReadLink(ctx context.Context, linkPath string) (string, error)
	SetPermissions(ctx context.Context, path string, permissions Permissions) error
	RemoveFile(ctx context.Context, path string) error
	RemoveDir(ctx context.Context, path string) error
	RemoveDirRecursively(ctx context.Context, path string) error
	CreateDir(ctx context.Context, path string) error
	CreateDirRecursively(ctx context.Context, path string) error
	ListDir(ctx context.Context, path string) ([]DirEntry, error)
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)
	GetSymlinkMetadata(ctx context.Context, path string) (*FileMetadata, error)
}
