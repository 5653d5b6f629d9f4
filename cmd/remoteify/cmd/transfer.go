package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/mensylisir/remoteify/pkg/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type TransferOptions struct {
	Preserve bool
	Quiet    bool
}

var transferOptions = &TransferOptions{}

func init() {
	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		c.Flags().BoolVarP(&transferOptions.Preserve, "preserve", "p", false, "Copy permission bits to the destination")
		c.Flags().BoolVarP(&transferOptions.Quiet, "quiet", "q", false, "Don't show a progress bar")
	}
}

var pushCmd = &cobra.Command{
	Use:   "push LOCAL_PATH HOST_PATH",
	Short: "Copy a local file to the host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		backend, err := openBackend(ctx, nil)
		if err != nil {
			return err
		}
		defer backend.Close()
		return push(ctx, backend, args[0], args[1], transferOptions)
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull HOST_PATH LOCAL_PATH",
	Short: "Copy a file from the host to the local machine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		backend, err := openBackend(ctx, nil)
		if err != nil {
			return err
		}
		defer backend.Close()
		return pull(ctx, backend, args[0], args[1], transferOptions)
	},
}

var writeOptions = linux.NewOpenOptions().Write().Create().Truncate()

func push(ctx context.Context, fs linux.Filesystem, localPath, hostPath string, opts *TransferOptions) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open '%s': %w", localPath, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat '%s': %w", localPath, err)
	}

	dst, err := fs.OpenFile(ctx, hostPath, writeOptions)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := copyWithProgress(dst, src, info.Size(), "Pushing "+path.Base(hostPath), opts.Quiet); err != nil {
		return fmt.Errorf("failed to write '%s': %w", hostPath, err)
	}
	if err := dst.Close(); err != nil {
		return err
	}
	if opts.Preserve {
		if err := fs.SetPermissions(ctx, hostPath, linux.PermissionsFromFileMode(info.Mode())); err != nil {
			return err
		}
	}
	logger.Get().Successf("Copied %s to %s", localPath, hostPath)
	return nil
}

func pull(ctx context.Context, fs linux.Filesystem, hostPath, localPath string, opts *TransferOptions) error {
	meta, err := fs.GetMetadata(ctx, hostPath)
	if err != nil {
		return err
	}
	if meta.FileType != linux.FileTypeFile {
		return fmt.Errorf("'%s' is a %s, not a regular file", hostPath, meta.FileType)
	}

	src, err := fs.OpenFile(ctx, hostPath, linux.NewOpenOptions().Read())
	if err != nil {
		return err
	}
	defer src.Close()

	mode := os.FileMode(0o644)
	if opts.Preserve {
		mode = meta.Permissions.Settable().FileMode()
	}
	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", localPath, err)
	}
	defer dst.Close()

	if err := copyWithProgress(dst, src, int64(meta.Size), "Pulling "+path.Base(hostPath), opts.Quiet); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("failed to read '%s': %w", hostPath, err)
	}
	if opts.Preserve {
		if err := dst.Chmod(mode); err != nil {
			return err
		}
	}
	if err := dst.Close(); err != nil {
		return err
	}
	logger.Get().Successf("Copied %s to %s", hostPath, localPath)
	return nil
}

func copyWithProgress(dst io.Writer, src io.Reader, size int64, description string, quiet bool) error {
	if quiet {
		_, err := io.Copy(dst, src)
		return err
	}
	bar := progressbar.NewOptions64(
		size,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
	)
	if _, err := io.Copy(io.MultiWriter(dst, bar), src); err != nil {
		bar.Clear()
		return err
	}
	return bar.Finish()
}
