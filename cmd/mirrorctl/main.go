package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "mirrorctl",
		Short:         "Manage local git mirrors and compute change reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", os.Getenv("CONFIG_FILE"), "TOML config file")
	root.PersistentFlags().StringVar(&opts.storeRoot, "root", "", "store root (overrides REPO_STORE_ROOT)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(newLocateCmd())
	root.AddCommand(newCloneCmd(opts))
	root.AddCommand(newUpdateCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newChangesCmd(opts))
	root.AddCommand(newNormalizeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
