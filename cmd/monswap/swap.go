package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/swapflow"
	"github.com/RaghavSood/monswap/tokens"
)

var noConfirm bool

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <token> to <token>",
	Short: "Quote and execute a swap from the configured wallet",
	Long: `Quote a swap, ask for confirmation, and execute it from the configured
wallet. ERC-20 inputs are approved for exactly the swap amount first.

Examples:
  monswap swap 5 MON to USDC
  monswap swap $20 USDC to MON --slippage 100
  monswap swap 1 WETH to MON --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&reverse, "reverse", false, "Treat the amount as the desired output")
	swapCmd.Flags().IntVar(&slippageBps, "slippage", 0, "Slippage tolerance in basis points (default from config)")
}

func runSwap(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		printError(err)
		return err
	}

	trade, err := parseTrade(args)
	if err != nil {
		printError(err)
		return err
	}

	ctx := cmd.Context()
	signer, err := a.signer(ctx)
	if err != nil {
		printError(err)
		return err
	}

	quoteCtx, cancel := context.WithTimeout(ctx, time.Minute)
	snap, tr, err := quoteSession(quoteCtx, a, trade, signer.Address())
	cancel()
	if err != nil {
		printError(err)
		return err
	}

	if !jsonOutput {
		displayQuote(snap)
		fmt.Printf("  Wallet:      %s\n", signer.Address().Hex())
		if tr.From.Balance.Valid {
			fmt.Printf("  Balance:     %s %s\n", tr.From.Balance.Decimal, tr.From.Symbol)
		}
	}

	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			return nil
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	flow, err := swapflow.New(swapflow.Config{
		Spender:     a.cfg.Router(),
		SlippageBps: tr.SlippageBps,
		Deadline:    a.cfg.Deadline(),
		MaxHops:     a.cfg.MaxHops,
	}, swapflow.Options{
		Provider: signer,
		Quoter:   a.quotes,
		History:  a.store,
		Balances: a.balances,
		Notifier: a.notifier,
		Logger:   a.logger,
		OnState: func(st swapflow.State) {
			s.Lock()
			s.Suffix = " " + stateLabel(st)
			s.Unlock()
		},
		OnBalances: func(list []tokens.Token) {
			for _, t := range list {
				if t.Address == tr.From.Address || t.Address == tr.To.Address {
					a.logger.Sugar().Infof("balance %s: %s", t.Symbol, t.Balance.Decimal)
				}
			}
		},
	})
	if err != nil {
		printError(err)
		return err
	}

	if !jsonOutput {
		s.Start()
	}
	out, err := flow.Submit(ctx, swapflow.Params{
		From:        tr.From,
		To:          tr.To,
		AmountIn:    tr.AmountIn,
		SlippageBps: tr.SlippageBps,
	})
	s.Stop()
	flow.Wait()

	if jsonOutput {
		if encErr := json.NewEncoder(os.Stdout).Encode(outcomeJSON(out)); encErr != nil {
			return encErr
		}
		return err
	}

	if err != nil {
		kind := notify.Kind("")
		if out != nil {
			kind = out.FailureKind
		}
		color.Red("\nSwap failed: %v", err)
		if hint := notify.Hint(kind); hint != "" {
			color.Yellow("  %s", hint)
		}
		if out != nil && out.TxHash.Big().Sign() != 0 {
			color.Cyan("  %s\n", a.cfg.ExplorerTxURL(out.TxHash.Hex()))
		}
		return err
	}

	printSuccess("Swapped %s %s for %s %s", tr.AmountIn, tr.From.Symbol, out.AmountOut, tr.To.Symbol)
	color.Cyan("  %s\n", a.cfg.ExplorerTxURL(out.TxHash.Hex()))
	return nil
}

func stateLabel(st swapflow.State) string {
	switch st {
	case swapflow.CheckingApproval:
		return "Checking allowance..."
	case swapflow.ApprovalNeeded, swapflow.Approving:
		return "Approving exact amount..."
	case swapflow.WaitingApprovalReceipt:
		return "Waiting for approval to confirm..."
	case swapflow.EstimatingGas:
		return "Refreshing quote and estimating gas..."
	case swapflow.AwaitingSignature:
		return "Signing..."
	case swapflow.Submitted, swapflow.PollingReceipt:
		return "Waiting for confirmation..."
	}
	return string(st)
}

func outcomeJSON(out *swapflow.Outcome) map[string]interface{} {
	if out == nil {
		return map[string]interface{}{"state": "rejected"}
	}
	res := map[string]interface{}{
		"id":    out.ID,
		"state": out.State,
		"path":  out.Path,
	}
	if out.TxHash.Big().Sign() != 0 {
		res["tx_hash"] = out.TxHash.Hex()
	}
	if out.ApproveTxHash.Big().Sign() != 0 {
		res["approve_tx_hash"] = out.ApproveTxHash.Hex()
	}
	if out.FailureKind != "" {
		res["failure_kind"] = out.FailureKind
		res["hint"] = notify.Hint(out.FailureKind)
	}
	if !out.AmountOut.IsZero() {
		res["amount_out"] = out.AmountOut.String()
	}
	return res
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	color.Yellow("Proceed with this swap? (y/N): ")
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
