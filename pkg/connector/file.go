package connector

import (
	"io"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/pkg/sftp"
)

// remoteFile adapts an SFTP handle to linux.File. The SFTP client writes at
// its own offset, so append mode seeks to the end before every write.
type remoteFile struct {
	file   *sftp.File
	path   string
	append bool
}

func (f *remoteFile) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	if err == io.EOF {
		return n, err
	}
	return n, linux.NewIOError("read", f.path, err)
}

func (f *remoteFile) Write(p []byte) (int, error) {
	if f.append {
		if _, err := f.file.Seek(0, io.SeekEnd); err != nil {
			return 0, linux.NewIOError("seek", f.path, err)
		}
	}
	n, err := f.file.Write(p)
	return n, linux.NewIOError("write", f.path, err)
}

func (f *remoteFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.file.Seek(offset, whence)
	return pos, linux.NewIOError("seek", f.path, err)
}

func (f *remoteFile) Close() error {
	return linux.NewIOError("close", f.path, f.file.Close())
}

var _ linux.File = (*remoteFile)(nil)
