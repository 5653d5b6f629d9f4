package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/spf13/cobra"
)

type StatOptions struct {
	NoFollow     bool
	OutputFormat string
}

var statOptions = &StatOptions{}

func init() {
	statCmd.Flags().BoolVarP(&statOptions.NoFollow, "no-follow", "L", false, "Describe a symlink itself rather than its target")
	statCmd.Flags().StringVarP(&statOptions.OutputFormat, "output", "o", "text", "Output format. One of: text|json")
}

var statCmd = &cobra.Command{
	Use:   "stat PATH",
	Short: "Show file metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if statOptions.OutputFormat != "text" && statOptions.OutputFormat != "json" {
			return fmt.Errorf("unsupported output format %q", statOptions.OutputFormat)
		}
		ctx := cmd.Context()
		backend, err := openBackend(ctx, nil)
		if err != nil {
			return err
		}
		defer backend.Close()

		p := args[0]
		var meta *linux.FileMetadata
		if statOptions.NoFollow {
			meta, err = backend.GetSymlinkMetadata(ctx, p)
		} else {
			meta, err = backend.GetMetadata(ctx, p)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statOptions.OutputFormat == "json" {
			doc, err := metadataJSON(p, meta)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(doc))
			return nil
		}

		key := color.New(color.Bold).SprintFunc()
		fmt.Fprintf(out, "%s %s\n", key("Path:"), p)
		fmt.Fprintf(out, "%s %s\n", key("Type:"), meta.FileType)
		fmt.Fprintf(out, "%s %d\n", key("Size:"), meta.Size)
		fmt.Fprintf(out, "%s %s (%04o)\n", key("Mode:"), meta.Permissions.FileMode(), uint16(meta.Permissions.Settable()))
		fmt.Fprintf(out, "%s %s (%d)\n", key("Owner:"), optional(meta.UserName), meta.UID)
		fmt.Fprintf(out, "%s %s (%d)\n", key("Group:"), optional(meta.GroupName), meta.GID)
		fmt.Fprintf(out, "%s %s\n", key("Modified:"), formatTime(meta.Modified))
		fmt.Fprintf(out, "%s %s\n", key("Accessed:"), formatTime(meta.Accessed))
		fmt.Fprintf(out, "%s %s\n", key("Created:"), formatTime(meta.Created))
		return nil
	},
}
