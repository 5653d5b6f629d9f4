package connector

import (
	"os"

	"github.com/mensylisir/remoteify/pkg/linux"
)

func fileInfoMetadata(info os.FileInfo) *linux.FileMetadata {
	perms := linux.PermissionsFromFileMode(info.Mode())
	modified := info.ModTime()
	return &linux.FileMetadata{
		FileType:    perms.FileType(),
		Size:        uint64(info.Size()),
		Permissions: perms,
		Modified:    &modified,
	}
}
