package connector

import (
	"context"
	"io/fs"
	"os"
	"time"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/pkg/errors"
	"github.com/pkg/sftp"
)

func (s *SSHLinux) Exists(ctx context.Context, p string) (bool, error) {
	_, err := await(ctx, func() (os.FileInfo, error) {
		return s.session.SFTP().Stat(p)
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, linux.NewIOError("stat", p, err)
}

func (s *SSHLinux) CreateFile(ctx context.Context, p string) error {
	_, err := await(ctx, func() (struct{}, error) {
		f, err := s.session.SFTP().OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, f.Close()
	})
	return linux.NewIOError("create", p, err)
}

func (s *SSHLinux) OpenFile(ctx context.Context, p string, options *linux.OpenOptions) (linux.File, error) {
	if options == nil {
		options = linux.NewOpenOptions().Read()
	}
	if err := options.Validate(); err != nil {
		return nil, linux.NewIOError("open", p, err)
	}
	s.log.Debugf("open %s %s", p, options)
	f, err := await(ctx, func() (*sftp.File, error) {
		return s.session.SFTP().OpenFile(p, options.Flags())
	})
	if err != nil {
		return nil, linux.NewIOError("open", p, err)
	}
	return &remoteFile{file: f, path: p, append: options.IsAppend()}, nil
}

func (s *SSHLinux) RenameFile(ctx context.Context, oldPath, newPath string) error {
	return linux.NewIOError("rename", oldPath, s.sftpCall(ctx, func(c *sftp.Client) error {
		return c.Rename(oldPath, newPath)
	}))
}

// CopyFile runs cp on the peer; the byte count is not observed.
func (s *SSHLinux) CopyFile(ctx context.Context, oldPath, newPath string) (*uint64, error) {
	if err := s.runHelper(ctx, "copy", oldPath, "cp", "--", oldPath, newPath); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *SSHLinux) Canonicalize(ctx context.Context, p string) (string, error) {
	resolved, err := await(ctx, func() (string, error) {
		return s.session.SFTP().RealPath(p)
	})
	if err != nil {
		return "", linux.NewIOError("realpath", p, err)
	}
	return resolved, nil
}

// CreateSymlink creates dst pointing at src.
func (s *SSHLinux) CreateSymlink(ctx context.Context, src, dst string) error {
	return linux.NewIOError("symlink", dst, s.sftpCall(ctx, func(c *sftp.Client) error {
		return c.Symlink(src, dst)
	}))
}

func (s *SSHLinux) CreateHardLink(ctx context.Context, src, dst string) error {
	return s.runHelper(ctx, "link", dst, "ln", "--", src, dst)
}

func (s *SSHLinux) ReadLink(ctx context.Context, link string) (string, error) {
	target, err := await(ctx, func() (string, error) {
		return s.session.SFTP().ReadLink(link)
	})
	if err != nil {
		return "", linux.NewIOError("readlink", link, err)
	}
	return target, nil
}

// SetPermissions applies the permission, setuid, setgid and sticky bits of perms.
// File type bits are ignored.
func (s *SSHLinux) SetPermissions(ctx context.Context, p string, perms linux.Permissions) error {
	return linux.NewIOError("chmod", p, s.sftpCall(ctx, func(c *sftp.Client) error {
		return c.Chmod(p, perms.Settable().FileMode())
	}))
}

// RemoveFile refuses directories, which the SFTP client would otherwise rmdir.
func (s *SSHLinux) RemoveFile(ctx context.Context, p string) error {
	return linux.NewIOError("remove", p, s.sftpCall(ctx, func(c *sftp.Client) error {
		info, err := c.Lstat(p)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return errors.New("is a directory")
		}
		return c.Remove(p)
	}))
}

func (s *SSHLinux) RemoveDir(ctx context.Context, p string) error {
	return linux.NewIOError("rmdir", p, s.sftpCall(ctx, func(c *sftp.Client) error {
		return c.RemoveDirectory(p)
	}))
}

func (s *SSHLinux) RemoveDirRecursively(ctx context.Context, p string) error {
	return s.runHelper(ctx, "remove recursively", p, "rm", "-rf", "--", p)
}

func (s *SSHLinux) CreateDir(ctx context.Context, p string) error {
	return linux.NewIOError("mkdir", p, s.sftpCall(ctx, func(c *sftp.Client) error {
		return c.Mkdir(p)
	}))
}

func (s *SSHLinux) CreateDirRecursively(ctx context.Context, p string) error {
	return s.runHelper(ctx, "mkdir recursively", p, "mkdir", "-p", "--", p)
}

func (s *SSHLinux) ListDir(ctx context.Context, p string) ([]linux.DirEntry, error) {
	infos, err := s.session.SFTP().ReadDirContext(ctx, p)
	if err != nil {
		return nil, linux.NewIOError("readdir", p, err)
	}
	entries := make([]linux.DirEntry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}
		entries = append(entries, linux.NewDirEntry(p, name, permissionsOf(info).FileType()))
	}
	return entries, nil
}

func (s *SSHLinux) GetMetadata(ctx context.Context, p string) (*linux.FileMetadata, error) {
	info, err := await(ctx, func() (os.FileInfo, error) {
		return s.session.SFTP().Stat(p)
	})
	if err != nil {
		return nil, linux.NewIOError("stat", p, err)
	}
	return metadataFromSFTP(info), nil
}

func (s *SSHLinux) GetSymlinkMetadata(ctx context.Context, p string) (*linux.FileMetadata, error) {
	info, err := await(ctx, func() (os.FileInfo, error) {
		return s.session.SFTP().Lstat(p)
	})
	if err != nil {
		return nil, linux.NewIOError("lstat", p, err)
	}
	return metadataFromSFTP(info), nil
}

func (s *SSHLinux) sftpCall(ctx context.Context, fn func(c *sftp.Client) error) error {
	_, err := await(ctx, func() (struct{}, error) {
		return struct{}{}, fn(s.session.SFTP())
	})
	return err
}

// permissionsOf prefers the raw mode sent by the server over the Go file mode.
func permissionsOf(info os.FileInfo) linux.Permissions {
	if stat, ok := info.Sys().(*sftp.FileStat); ok {
		return linux.Permissions(stat.Mode)
	}
	return linux.PermissionsFromFileMode(info.Mode())
}

func metadataFromSFTP(info os.FileInfo) *linux.FileMetadata {
	perms := permissionsOf(info)
	meta := &linux.FileMetadata{
		FileType:    perms.FileType(),
		Size:        uint64(info.Size()),
		Permissions: perms,
	}
	if stat, ok := info.Sys().(*sftp.FileStat); ok {
		modified := time.Unix(int64(stat.Mtime), 0)
		accessed := time.Unix(int64(stat.Atime), 0)
		meta.Modified = &modified
		meta.Accessed = &accessed
		meta.UID = stat.UID
		meta.GID = stat.GID
	} else {
		modified := info.ModTime()
		meta.Modified = &modified
	}
	return meta
}
