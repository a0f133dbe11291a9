package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/session"
)

var (
	reverse     bool
	slippageBps int
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> to <token>",
	Short: "Quote a swap",
	Long: `Quote a swap through the routing API.

A leading $ gives the amount in USD. With --reverse the amount is what you
want to receive and the input is solved for.

Examples:
  monswap quote 5 MON to USDC
  monswap quote $10 MON to USDC
  monswap quote 100 MON to USDC --reverse`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().BoolVar(&reverse, "reverse", false, "Treat the amount as the desired output")
	quoteCmd.Flags().IntVar(&slippageBps, "slippage", 0, "Slippage tolerance in basis points (default from config)")
}

func runQuote(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	snap, _, err := quoteSession(ctx, a, trade, common.Address{})
	if err != nil {
		printError(err)
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(snap)
	}
	displayQuote(snap)
	return nil
}

// quoteSession drives a session engine through one edit and waits for the
// quote to land. The side and display mode follow the parsed trade and the
// --reverse flag.
func quoteSession(ctx context.Context, a *app, trade tradeArgs, sender common.Address) (session.Snapshot, session.Trade, error) {
	from, err := a.list.Lookup(trade.From)
	if err != nil {
		return session.Snapshot{}, session.Trade{}, err
	}
	to, err := a.list.Lookup(trade.To)
	if err != nil {
		return session.Snapshot{}, session.Trade{}, err
	}

	done := make(chan struct{}, 1)
	rec := notify.NewRecorder(1)
	slippage := a.cfg.SlippageBps
	if slippageBps != 0 {
		slippage = slippageBps
	}

	eng, err := session.New(from, to, session.Options{
		Quoter:      a.quotes,
		Pricer:      a.prices,
		Notifier:    rec,
		Logger:      a.logger,
		Sender:      sender,
		SlippageBps: slippage,
		Deadline:    a.cfg.Deadline(),
		MaxHops:     a.cfg.MaxHops,
		Debounce:    time.Millisecond,
		Dispatch: func(f func()) {
			go func() {
				f()
				select {
				case done <- struct{}{}:
				default:
				}
			}()
		},
	})
	if err != nil {
		return session.Snapshot{}, session.Trade{}, err
	}
	defer eng.Close()

	if sender != (common.Address{}) {
		eng.SetBalances(a.balances.Fetch(ctx, sender))
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching prices..."
		s.Start()
		defer s.Stop()
	}

	eng.RefreshPrices(ctx)

	side := session.Input
	if reverse {
		side = session.Output
	}
	if trade.USD {
		view := eng.Snapshot().Input
		if side == session.Output {
			view = eng.Snapshot().Output
		}
		if !view.Token.HasPrice() {
			return session.Snapshot{}, session.Trade{}, notify.Wrap(notify.KindUnknownPrice, fmt.Errorf("no USD price for %s", view.Token.Symbol))
		}
		if err := eng.ToggleMode(side); err != nil {
			return session.Snapshot{}, session.Trade{}, err
		}
	}

	s.Lock()
	s.Suffix = " Fetching quote..."
	s.Unlock()
	eng.Edit(side, trade.Amount)
	if eng.Snapshot().Input.Quantity == "" && eng.Snapshot().Output.Quantity == "" {
		return session.Snapshot{}, session.Trade{}, fmt.Errorf("invalid amount %q", trade.Amount)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return session.Snapshot{}, session.Trade{}, ctx.Err()
	}

	snap := eng.Snapshot()
	if !snap.HasQuote {
		if n := rec.All(); len(n) > 0 {
			return snap, session.Trade{}, notificationError(n[0])
		}
		return snap, session.Trade{}, errors.New("no quote received")
	}
	tr, ok := eng.Trade()
	if !ok {
		return snap, session.Trade{}, errors.New("quote has no input amount")
	}
	return snap, tr, nil
}

func notificationError(n notify.Notification) error {
	if n.Hint == "" {
		return fmt.Errorf("%s: %s", n.Title, n.Message)
	}
	return fmt.Errorf("%s: %s\n  %s", n.Title, n.Message, n.Hint)
}

func displayQuote(snap session.Snapshot) {
	fmt.Println()
	color.Cyan("Quote")
	fmt.Printf("  You pay:     %s\n", formatSide(snap.Input))
	fmt.Printf("  You receive: %s\n", formatSide(snap.Output))
	fmt.Printf("  Rate:        %s\n", snap.Rate)
	if snap.PriceImpact != "" {
		fmt.Printf("  Impact:      %s\n", snap.PriceImpact)
	}
	fmt.Printf("  Slippage:    %.2f%%\n", float64(snap.SlippageBps)/100)
	fmt.Println()
}

func formatSide(v session.PairView) string {
	if v.Mode == session.ModeUSD {
		return fmt.Sprintf("$%s of %s (%s %s)", v.Value, v.Token.Symbol, v.Quantity, v.Token.Symbol)
	}
	return fmt.Sprintf("%s %s", v.Value, v.Token.Symbol)
}
