package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "monswap",
	Short: "Quote and execute token swaps on the Monad testnet",
	Long: `monswap quotes swaps through a DEX routing API and executes them from a
locally configured wallet. It can also serve the quote, price and balance
APIs over HTTP.

Examples:
  monswap quote 5 MON to USDC
  monswap quote $10 MON to USDC
  monswap quote 10 MON to USDC --reverse
  monswap swap 5 MON to USDC --slippage 100
  monswap balances
  monswap serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       "0.1.0",
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
}

func printError(err error) {
	color.Red("\nError: %v\n", err)
}

func printSuccess(format string, args ...interface{}) {
	color.Green("\n%s\n", fmt.Sprintf(format, args...))
}
