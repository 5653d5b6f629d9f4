package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/spf13/cobra"
)

type LsOptions struct {
	Long      bool
	NoHeaders bool
}

var lsOptions = &LsOptions{}

func init() {
	lsCmd.Flags().BoolVarP(&lsOptions.Long, "long", "l", false, "Show size, mode and modification time")
	lsCmd.Flags().BoolVar(&lsOptions.NoHeaders, "no-headers", false, "Don't print headers")
}

var lsCmd = &cobra.Command{
	Use:     "ls PATH",
	Short:   "List a directory",
	Aliases: []string{"list"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		backend, err := openBackend(ctx, nil)
		if err != nil {
			return err
		}
		defer backend.Close()

		entries, err := backend.ListDir(ctx, args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No entries found in %s.\n", args[0])
			return nil
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

		table := newTable(cmd.OutOrStdout())
		headers := []string{"NAME", "TYPE"}
		if lsOptions.Long {
			headers = append(headers, "SIZE", "MODE", "MODIFIED")
		}
		if !lsOptions.NoHeaders {
			table.SetHeader(headers)
		}

		for _, entry := range entries {
			row := []string{entry.Name, entry.FileType.String()}
			if lsOptions.Long {
				row = append(row, longColumns(cmd, backend, entry)...)
			}
			table.Append(row)
		}
		table.Render()
		return nil
	},
}

func longColumns(cmd *cobra.Command, fs linux.Filesystem, entry linux.DirEntry) []string {
	meta, err := fs.GetSymlinkMetadata(cmd.Context(), entry.Path)
	if err != nil {
		return []string{"?", "?", "?"}
	}
	return []string{
		strconv.FormatUint(meta.Size, 10),
		meta.Permissions.FileMode().String(),
		formatTime(meta.Modified),
	}
}
