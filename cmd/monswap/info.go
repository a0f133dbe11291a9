package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RaghavSood/monswap/amount"
	"github.com/RaghavSood/monswap/db"
)

var balancesCmd = &cobra.Command{
	Use:   "balances [wallet]",
	Short: "Show token balances (defaults to the configured wallet)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			printError(err)
			return err
		}

		var owner common.Address
		if len(args) == 1 {
			if !common.IsHexAddress(args[0]) {
				err := fmt.Errorf("invalid wallet %q", args[0])
				printError(err)
				return err
			}
			owner = common.HexToAddress(args[0])
		} else {
			signer, err := a.signer(cmd.Context())
			if err != nil {
				printError(err)
				return err
			}
			owner = signer.Address()
		}

		list := a.balances.Fetch(cmd.Context(), owner)
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(list)
		}

		color.Cyan("\nBalances for %s\n", owner.Hex())
		if len(list) == 0 {
			fmt.Println("  (none)")
		}
		for _, t := range list {
			fmt.Printf("  %-8s %s\n", t.Symbol, amount.Format(t.Balance.Decimal))
		}
		fmt.Println()
		return nil
	},
}

var priceCmd = &cobra.Command{
	Use:   "price <token>",
	Short: "Show the USD unit price of a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			printError(err)
			return err
		}
		token, err := a.list.Lookup(args[0])
		if err != nil {
			printError(err)
			return err
		}

		if token.IsNative() {
			price, placeholder := a.prices.NativeUSDPrice(cmd.Context())
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{"symbol": token.Symbol, "usd_price": price.String(), "placeholder": placeholder})
			}
			fmt.Printf("\n  1 %s = $%s\n", token.Symbol, amount.Format(price))
			if placeholder {
				color.Yellow("  (placeholder: the price service is unavailable)")
			}
			fmt.Println()
			return nil
		}

		price, err := a.prices.UnitPrice(cmd.Context(), token.Address)
		if err != nil {
			printError(err)
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(map[string]string{"symbol": token.Symbol, "usd_price": price.String()})
		}
		fmt.Printf("\n  1 %s = $%s\n\n", token.Symbol, amount.Format(price))
		return nil
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List known tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			printError(err)
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(a.list)
		}
		fmt.Println()
		for _, t := range a.list {
			fmt.Printf("  %-8s %-4d %s  %s\n", t.Symbol, t.Decimals, t.Address.Hex(), t.Name)
		}
		fmt.Println()
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [limit]",
	Short: "List recent swaps",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			printError(err)
			return err
		}
		var limit int64 = 20
		if len(args) == 1 {
			if limit, err = strconv.ParseInt(args[0], 10, 64); err != nil {
				printError(err)
				return err
			}
		}

		swaps, err := a.store.RecentSwaps(cmd.Context(), "", limit)
		if err != nil {
			printError(err)
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(swaps)
		}
		fmt.Println()
		for _, s := range swaps {
			line := fmt.Sprintf("  %s  %s %s -> %s  %-9s", s.CreatedAt.Format("2006-01-02 15:04"), s.AmountIn, s.FromSymbol, s.ToSymbol, s.Status)
			switch s.Status {
			case db.SwapSuccess:
				color.Green("%s", line)
			case db.SwapFailed:
				color.Red("%s %s", line, s.FailureKind.String)
			default:
				color.Yellow("%s", line)
			}
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(balancesCmd, priceCmd, tokensCmd, historyCmd)
}
