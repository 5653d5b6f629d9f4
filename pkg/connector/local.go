package connector

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/mensylisir/remoteify/pkg/logger"
	"github.com/pkg/errors"
)

// LocalLinux implements linux.Linux against the host running the program.
type LocalLinux struct {
	log            *logger.Logger
	forwardHandler ForwardHandler

	mu        sync.Mutex
	listeners []net.Listener
	closed    bool
}

func NewLocalLinux() *LocalLinux {
	return &LocalLinux{log: logger.Get().With("host", "localhost")}
}

// WithForwardHandler sets the receiver of connections accepted by ReverseForwardTCP.
func (l *LocalLinux) WithForwardHandler(handler ForwardHandler) *LocalLinux {
	l.forwardHandler = handler
	return l
}

func (l *LocalLinux) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, linux.NewIOError("stat", p, err)
}

func (l *LocalLinux) CreateFile(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return linux.NewIOError("create", p, err)
	}
	return linux.NewIOError("create", p, f.Close())
}

func (l *LocalLinux) OpenFile(ctx context.Context, p string, options *linux.OpenOptions) (linux.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if options == nil {
		options = linux.NewOpenOptions().Read()
	}
	if err := options.Validate(); err != nil {
		return nil, linux.NewIOError("open", p, err)
	}
	f, err := os.OpenFile(p, options.Flags(), 0o644)
	if err != nil {
		return nil, linux.NewIOError("open", p, err)
	}
	return &localFile{file: f}, nil
}

func (l *LocalLinux) RenameFile(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return linux.NewIOError("rename", oldPath, os.Rename(oldPath, newPath))
}

// CopyFile copies content and permission bits and reports the bytes written.
func (l *LocalLinux) CopyFile(ctx context.Context, oldPath, newPath string) (*uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.Open(oldPath)
	if err != nil {
		return nil, linux.NewIOError("copy", oldPath, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return nil, linux.NewIOError("copy", oldPath, err)
	}
	dst, err := os.OpenFile(newPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return nil, linux.NewIOError("copy", newPath, err)
	}
	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, linux.NewIOError("copy", newPath, err)
	}
	copied := uint64(n)
	return &copied, nil
}

func (l *LocalLinux) Canonicalize(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", linux.NewIOError("realpath", p, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", linux.NewIOError("realpath", p, err)
	}
	return resolved, nil
}

func (l *LocalLinux) CreateSymlink(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return linux.NewIOError("symlink", dst, os.Symlink(src, dst))
}

func (l *LocalLinux) CreateHardLink(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return linux.NewIOError("link", dst, os.Link(src, dst))
}

func (l *LocalLinux) ReadLink(ctx context.Context, link string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := os.Readlink(link)
	if err != nil {
		return "", linux.NewIOError("readlink", link, err)
	}
	return target, nil
}

func (l *LocalLinux) SetPermissions(ctx context.Context, p string, perms linux.Permissions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return linux.NewIOError("chmod", p, os.Chmod(p, perms.Settable().FileMode()))
}

func (l *LocalLinux) RemoveFile(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Lstat(p)
	if err != nil {
		return linux.NewIOError("remove", p, err)
	}
	if info.IsDir() {
		return linux.NewIOError("remove", p, syscall.EISDIR)
	}
	return linux.NewIOError("remove", p, os.Remove(p))
}

func (l *LocalLinux) RemoveDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return linux.NewIOError("rmdir", p, syscall.Rmdir(p))
}

func (l *LocalLinux) RemoveDirRecursively(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return linux.NewIOError("remove recursively", p, os.RemoveAll(p))
}

func (l *LocalLinux) CreateDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return linux.NewIOError("mkdir", p, os.Mkdir(p, 0o755))
}

func (l *LocalLinux) CreateDirRecursively(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return linux.NewIOError("mkdir recursively", p, os.MkdirAll(p, 0o755))
}

func (l *LocalLinux) ListDir(ctx context.Context, p string) ([]linux.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(p)
	if err != nil {
		return nil, linux.NewIOError("readdir", p, err)
	}
	entries := make([]linux.DirEntry, 0, len(dirEntries))
	for _, d := range dirEntries {
		entries = append(entries, linux.NewDirEntry(p, d.Name(), linux.PermissionsFromFileMode(d.Type()).FileType()))
	}
	return entries, nil
}

func (l *LocalLinux) GetMetadata(ctx context.Context, p string) (*linux.FileMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, linux.NewIOError("stat", p, err)
	}
	return localMetadata(info), nil
}

func (l *LocalLinux) GetSymlinkMetadata(ctx context.Context, p string) (*linux.FileMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Lstat(p)
	if err != nil {
		return nil, linux.NewIOError("lstat", p, err)
	}
	return localMetadata(info), nil
}

func (l *LocalLinux) IsRemoteNetwork() bool {
	return false
}

// ReverseForwardTCP listens on this host; the forward handler receives the connections.
func (l *LocalLinux) ReverseForwardTCP(ctx context.Context, host string, port uint32) (uint32, error) {
	var lc net.ListenConfig
	addr := net.JoinHostPort(host, formatPort(port))
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return 0, linux.NewIOError("reverse forward", addr, err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		listener.Close()
		return 0, linux.NewIOError("reverse forward", addr, errors.New("backend closed"))
	}
	l.listeners = append(l.listeners, listener)
	l.mu.Unlock()

	handler := l.forwardHandler
	if handler == nil {
		handler = discardForward(l.log)
	}
	go serveForwards(listener, handler)
	return uint32(listener.Addr().(*net.TCPAddr).Port), nil
}

func (l *LocalLinux) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for _, listener := range l.listeners {
		listener.Close()
	}
	l.listeners = nil
	return nil
}

type localFile struct {
	file *os.File
}

func (f *localFile) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	if err == io.EOF {
		return n, err
	}
	return n, linux.NewIOError("read", f.file.Name(), err)
}

func (f *localFile) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	return n, linux.NewIOError("write", f.file.Name(), err)
}

func (f *localFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.file.Seek(offset, whence)
	return pos, linux.NewIOError("seek", f.file.Name(), err)
}

func (f *localFile) Close() error {
	return linux.NewIOError("close", f.file.Name(), f.file.Close())
}
