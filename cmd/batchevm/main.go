package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	rpcURL    string
	chainID   int64
	keysFile  string
	encrypted bool
	logDev    bool
	logFile   string
	jsonMode  bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "batchevm",
		Short: "Batch EVM account tool",
		Long: `batchevm manages many EVM accounts and runs batched operations from them:
value transfers from every selected account, deployment of the batch
contract embedding the account set, and calls to its transfer/receive
entry points.

Accounts live in an address file (the JSON export format). Settings are read
from BATCHEVM_* environment variables and may be overridden by flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", "", "JSON-RPC endpoint (default from BATCHEVM_RPC_URL)")
	rootCmd.PersistentFlags().Int64Var(&chainID, "chain-id", 0, "chain ID used for signing (default: ask the node)")
	rootCmd.PersistentFlags().StringVarP(&keysFile, "keys", "k", "addresses.json", "address file")
	rootCmd.PersistentFlags().BoolVar(&encrypted, "encrypted", false, "address file is password protected")
	rootCmd.PersistentFlags().BoolVar(&logDev, "log-dev", false, "human readable debug logs")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&jsonMode, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		newGenerateCmd(),
		newImportCmd(),
		newExportCmd(),
		newListCmd(),
		newAssembleCmd(),
		newEstimateCmd(),
		newSendCmd(),
		newDeployCmd(),
		newCallCmd(),
		newRunCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
