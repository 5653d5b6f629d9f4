package cmd

import (
	"context"
	"fmt"

	"github.com/mensylisir/remoteify/pkg/config"
	"github.com/mensylisir/remoteify/pkg/connector"
	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/mensylisir/remoteify/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verboseFlag bool
	configFile  string
	hostFlag    string
	logFile     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "remoteify",
	Short: "remoteify runs filesystem, process and port-forward operations on a Linux host.",
	Long: `remoteify drives a Linux host through one uniform interface. With --host
it connects over SSH (exec channels, SFTP and reverse forwarding); without it
the same commands run against the local machine.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logOpts := logger.DefaultOptions()
		if verboseFlag {
			logOpts.ConsoleLevel = logger.DebugLevel
		}
		if logFile != "" {
			logOpts.FileOutput = true
			logOpts.LogFilePath = logFile
		}
		logger.Init(logOpts)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the host inventory (YAML, or TOML with a .toml extension)")
	rootCmd.PersistentFlags().StringVarP(&hostFlag, "host", "H", "", "Inventory host name or address to operate on (default: the local machine)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write debug logs to this file")

	rootCmd.AddCommand(execCmd, lsCmd, statCmd, pushCmd, pullCmd, forwardCmd, hostsCmd, versionCmd)
}

// openBackend returns the backend selected by --host, or the local machine
// when it is unset. handler receives reverse-forwarded connections.
func openBackend(ctx context.Context, handler connector.ForwardHandler) (linux.Linux, error) {
	if hostFlag == "" {
		logger.Debug("no --host given, using the local machine")
		return connector.NewLocalLinux().WithForwardHandler(handler), nil
	}
	inv, err := loadInventory()
	if err != nil {
		return nil, err
	}
	host, ok := inv.Lookup(hostFlag)
	if !ok {
		return nil, fmt.Errorf("host %q not found in %s", hostFlag, configFile)
	}
	cfg, err := host.ConnectionCfg()
	if err != nil {
		return nil, err
	}
	cfg.ForwardHandler = handler
	return connector.New(ctx, &cfg)
}

func loadInventory() (*config.Inventory, error) {
	if configFile == "" {
		return nil, fmt.Errorf("an inventory must be provided via -c or --config")
	}
	return config.Load(configFile)
}
