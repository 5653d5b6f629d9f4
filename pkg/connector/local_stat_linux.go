package connector

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/mensylisir/remoteify/pkg/linux"
)

func localMetadata(info os.FileInfo) *linux.FileMetadata {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileInfoMetadata(info)
	}
	perms := linux.Permissions(st.Mode)
	modified := time.Unix(st.Mtim.Unix())
	accessed := time.Unix(st.Atim.Unix())
	meta := &linux.FileMetadata{
		FileType:    perms.FileType(),
		Size:        uint64(st.Size),
		Permissions: perms,
		Modified:    &modified,
		Accessed:    &accessed,
		UID:         st.Uid,
		GID:         st.Gid,
	}
	if u, err := user.LookupId(strconv.FormatUint(uint64(st.Uid), 10)); err == nil {
		meta.UserName = &u.Username
	}
	if g, err := user.LookupGroupId(strconv.FormatUint(uint64(st.Gid), 10)); err == nil {
		meta.GroupName = &g.Name
	}
	return meta
}
