package audit

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	dbstore "github.com/cmdrvl/tokenscout/internal/store"
)

// twitterHandleRe extracts the account handle from a bare profile URL.
// URLs with paths or query strings are not profile links and yield no handle.
var twitterHandleRe = regexp.MustCompile(`^https://(?:x\.com|twitter\.com)/([a-zA-Z0-9_]+)$`)

// Repository is the slice of the store the fetcher needs.
type Repository interface {
	FindUnauditedTokens(ctx context.Context) ([]string, error)
	ApplyAudit(ctx context.Context, address string, u dbstore.AuditUpdate) error
}

// PairResolver resolves the trading pair for a token on the DEX factory.
type PairResolver interface {
	PairFor(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error)
}

// Fetcher sweeps tokens without audit data, resolves their trading pair and
// applies the audit API's result. A token stays in the sweep until its
// creator column is filled, so tokens without a pair yet are retried
// naturally on later cycles.
type Fetcher struct {
	repo    Repository
	pairs   PairResolver
	client  *Client
	weth    common.Address
	factory common.Address
	log     zerolog.Logger
}

// NewFetcher returns a Fetcher.
func NewFetcher(repo Repository, pairs PairResolver, client *Client, weth, factory common.Address, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		repo:    repo,
		pairs:   pairs,
		client:  client,
		weth:    weth,
		factory: factory,
		log:     logger.With().Str("component", "audit-fetcher").Logger(),
	}
}

// Run performs one sweep. Per-token failures are logged and skipped; the
// token stays eligible for the next sweep.
func (f *Fetcher) Run(ctx context.Context) error {
	addrs, err := f.repo.FindUnauditedTokens(ctx)
	if err != nil {
		return err
	}
	f.log.Info().Int("tokens", len(addrs)).Msg("audit sweep")

	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.processToken(ctx, addr); err != nil {
			f.log.Warn().Err(err).Str("token", addr).Msg("audit fetch failed")
		}
	}
	return nil
}

func (f *Fetcher) processToken(ctx context.Context, addr string) error {
	pair, err := f.pairs.PairFor(ctx, f.factory, f.weth, common.HexToAddress(addr))
	if err != nil {
		return err
	}
	if pair == (common.Address{}) {
		// No pair means no trading activity yet. Leave the token for a
		// later sweep.
		return nil
	}

	info, err := f.client.PairInfo(ctx, strings.ToLower(pair.Hex()))
	if err != nil {
		if errors.Is(err, ErrNoPairData) {
			return nil
		}
		return err
	}

	update := buildUpdate(pair.Hex(), info)
	if err := f.repo.ApplyAudit(ctx, addr, update); err != nil {
		return err
	}
	f.log.Debug().Str("token", addr).Str("pair", pair.Hex()).Msg("audit applied")
	return nil
}

// buildUpdate maps an API record onto a store update. Empty links become nil
// so the fill-if-null columns stay untouched.
func buildUpdate(pairAddress string, info *PairInfo) dbstore.AuditUpdate {
	u := dbstore.AuditUpdate{
		PairAddress:  pairAddress,
		CreationTime: info.CreationTime,
		FirstSwapAt:  info.FirstSwapAt,

		IsOpenSource:       info.IsOpenSource,
		IsHoneypot:         info.IsHoneypot,
		IsMintable:         info.IsMintable,
		IsProxy:            info.IsProxy,
		SlippageModifiable: info.SlippageModifiable,
		IsBlacklisted:      info.IsBlacklisted,
		IsRenounced:        info.IsRenounced,
		IsPotentialScam:    info.IsPotentialScam,
		TransferPausable:   info.TransferPausable,
		MinBuyTax:          info.MinBuyTax,
		MaxBuyTax:          info.MaxBuyTax,
		MinSellTax:         info.MinSellTax,
		MaxSellTax:         info.MaxSellTax,
	}

	if info.Creator != "" {
		u.Creator = &info.Creator
	}
	if len(info.Locks) > 0 {
		u.Locks = datatypes.JSON(json.RawMessage(info.Locks))
	}
	if len(info.Warnings) > 0 {
		joined := strings.Join(info.Warnings, ",")
		u.Warnings = &joined
	}

	if info.TwitterURL != "" {
		u.TwitterURL = &info.TwitterURL
		if m := twitterHandleRe.FindStringSubmatch(info.TwitterURL); m != nil {
			u.TwitterHandle = &m[1]
		}
	}
	if info.WebsiteURL != "" {
		u.WebsiteURL = &info.WebsiteURL
	}
	if info.TelegramURL != "" {
		u.TelegramURL = &info.TelegramURL
	}
	return u
}
