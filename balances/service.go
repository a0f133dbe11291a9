package balances

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/RaghavSood/monswap/cache"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/tokens"
)

const DefaultTTL = 30 * time.Second

// Service serves cached balances, trying each source in order.
type Service struct {
	sources  []Source
	cache    *cache.Cache[[]tokens.Token]
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewService builds a service over sources, e.g. the balance API followed by
// the on-chain fallback. store and clk may be nil.
func NewService(sources []Source, store cache.Store, clk clock.Clock, notifier notify.Notifier, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("balances")
	return &Service{
		sources: sources,
		cache: cache.New[[]tokens.Token]("balances", DefaultTTL,
			cache.WithStore[[]tokens.Token](store),
			cache.WithClock[[]tokens.Token](clk),
			cache.WithLogger[[]tokens.Token](logger)),
		notifier: notifier,
		logger:   logger,
	}
}

// Fetch never fails: on total failure it returns an empty list and raises a
// balances-unavailable notification.
func (s *Service) Fetch(ctx context.Context, wallet common.Address) []tokens.Token {
	list, err := s.cache.GetOrFetch(ctx, WalletKey(wallet), func(ctx context.Context) ([]tokens.Token, error) {
		return s.live(ctx, wallet)
	})
	if err != nil {
		s.notifier.Notify(ctx, notify.New(notify.KindBalancesUnavailable, err))
		return []tokens.Token{}
	}
	return list
}

// Refresh bypasses the cache and stores the live result.
func (s *Service) Refresh(ctx context.Context, wallet common.Address) ([]tokens.Token, error) {
	list, err := s.live(ctx, wallet)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, WalletKey(wallet), list)
	return list, nil
}

func (s *Service) live(ctx context.Context, wallet common.Address) ([]tokens.Token, error) {
	if len(s.sources) == 0 {
		return nil, errors.New("no balance sources configured")
	}

	var errs []error
	for i, src := range s.sources {
		list, err := src.Balances(ctx, wallet)
		if err == nil {
			return list, nil
		}
		s.logger.Debug("balance source failed", zap.Int("source", i), zap.String("wallet", wallet.Hex()), zap.Error(err))
		errs = append(errs, fmt.Errorf("source %d: %w", i, err))
	}
	return nil, errors.Join(errs...)
}
