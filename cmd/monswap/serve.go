package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RaghavSood/monswap/server"
	"github.com/RaghavSood/monswap/tracker"
)

const (
	cachePruneInterval = time.Hour
	cacheRetention     = 24 * time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the quote, price, balance and history APIs",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		printError(err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start swap confirmation tracker
	if a.rpc != nil {
		trk := tracker.New(a.store, a.rpc, a.notifier, a.logger, nil)
		go trk.Run(ctx)
	} else {
		a.logger.Warn("no rpc_endpoint configured, delayed swap confirmations will not be tracked")
	}

	go pruneCache(ctx, a)

	srv := server.New(server.Options{
		Tokens:      a.list,
		Quoter:      a.quotes,
		Pricer:      a.prices,
		Balances:    a.balances,
		History:     a.store,
		Logger:      a.logger,
		SlippageBps: a.cfg.SlippageBps,
		Deadline:    a.cfg.Deadline(),
		MaxHops:     a.cfg.MaxHops,
	})

	a.logger.Info("starting monswap", zap.String("network", a.cfg.Network), zap.Int64("chain_id", a.cfg.ChainID))
	if err := srv.Start(ctx, fmt.Sprintf(":%d", a.cfg.Port)); err != nil {
		a.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
	a.logger.Info("shut down")
	return nil
}

func pruneCache(ctx context.Context, a *app) {
	ticker := time.NewTicker(cachePruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.store.PruneCache(ctx, time.Now().Add(-cacheRetention))
			if err != nil {
				a.logger.Warn("pruning cache", zap.Error(err))
				continue
			}
			a.logger.Debug("pruned cache", zap.Int64("entries", n))
		}
	}
}
