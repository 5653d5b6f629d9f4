//go:build !linux

package connector

import (
	"os"

	"github.com/mensylisir/remoteify/pkg/linux"
)

func localMetadata(info os.FileInfo) *linux.FileMetadata {
	return fileInfoMetadata(info)
}
