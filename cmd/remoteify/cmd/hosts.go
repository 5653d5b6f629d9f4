package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List the hosts in the inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := loadInventory()
		if err != nil {
			return err
		}

		table := newTable(cmd.OutOrStdout())
		table.SetHeader([]string{"NAME", "ADDRESS", "PORT", "USER", "AUTH", "BASTION"})
		for _, host := range inv.Hosts {
			auth := "password"
			if host.PrivateKeyPath != "" {
				auth = "key:" + host.PrivateKeyPath
			}
			bastion := "<none>"
			if host.Bastion != nil {
				bastion = host.Bastion.Host
			}
			table.Append([]string{host.Name, host.Host, strconv.Itoa(host.Port), host.User, auth, bastion})
		}
		table.Render()
		return nil
	},
}
