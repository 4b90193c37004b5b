// Package sources pulls verified contract source and owner transaction
// history from the block explorer.
package sources

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cmdrvl/tokenscout/internal/explorer"
	"github.com/cmdrvl/tokenscout/pkg/store"
)

// Repository is the slice of the store the fetcher needs.
type Repository interface {
	FindTokensMissingContract(ctx context.Context) ([]string, error)
	FindContractsMissingSource(ctx context.Context) ([]string, error)
	UpsertContract(ctx context.Context, c *store.Contract) error
	OwnersMissingTxHistory(ctx context.Context) ([]string, error)
	InsertOwnerTxs(ctx context.Context, txs []store.OwnerTx) (int64, error)
}

// ExplorerAPI is the slice of the explorer client the fetcher needs.
type ExplorerAPI interface {
	GetSourceCode(ctx context.Context, address string) (*explorer.ContractSource, error)
	ListTransactions(ctx context.Context, address string) ([]explorer.AddressTx, error)
}

// Fetcher populates the contracts table from the explorer. It runs two
// sweeps on different cadences: discovery of tokens with no contract row,
// and retry of rows whose source came back empty.
type Fetcher struct {
	repo Repository
	api  ExplorerAPI
	log  zerolog.Logger
}

// NewFetcher returns a Fetcher.
func NewFetcher(repo Repository, api ExplorerAPI, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		repo: repo,
		api:  api,
		log:  logger.With().Str("component", "source-fetcher").Logger(),
	}
}

// DiscoverNew fetches source for every token that has no contract row yet.
// An unverified contract still gets a row, with an empty source payload; the
// retry sweep picks those up later.
func (f *Fetcher) DiscoverNew(ctx context.Context) error {
	addrs, err := f.repo.FindTokensMissingContract(ctx)
	if err != nil {
		return err
	}
	f.log.Info().Int("tokens", len(addrs)).Msg("source discovery sweep")
	return f.fetchAll(ctx, addrs)
}

// RetryMissing re-fetches contracts whose stored source is empty. The
// explorer lags contract verification, so empty source is expected to
// resolve eventually for verified contracts.
func (f *Fetcher) RetryMissing(ctx context.Context) error {
	addrs, err := f.repo.FindContractsMissingSource(ctx)
	if err != nil {
		return err
	}
	f.log.Info().Int("contracts", len(addrs)).Msg("source retry sweep")
	return f.fetchAll(ctx, addrs)
}

func (f *Fetcher) fetchAll(ctx context.Context, addrs []string) error {
	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.fetchOne(ctx, addr); err != nil {
			f.log.Warn().Err(err).Str("contract", addr).Msg("source fetch failed")
		}
	}
	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, addr string) error {
	src, err := f.api.GetSourceCode(ctx, addr)
	if err != nil {
		if errors.Is(err, explorer.ErrNotAvailable) {
			return nil
		}
		return err
	}

	c := &store.Contract{
		ContractAddress:  addr,
		SourceCode:       src.SourceCode,
		CompilerVersion:  src.CompilerVersion,
		OptimizationUsed: src.OptimizationUsed,
		Runs:             src.Runs,
		EVMVersion:       src.EVMVersion,
		Library:          src.Library,
		LicenseType:      src.LicenseType,
		Proxy:            src.Proxy,
		Implementation:   src.Implementation,
		SwarmSource:      src.SwarmSource,
		FetchedAt:        time.Now().UTC(),
	}
	if err := f.repo.UpsertContract(ctx, c); err != nil {
		return err
	}
	f.log.Debug().Str("contract", addr).Bool("verified", src.SourceCode != "").Msg("source stored")
	return nil
}

// CollectOwnerHistory fetches the transaction history of token owners that
// have none recorded yet.
func (f *Fetcher) CollectOwnerHistory(ctx context.Context) error {
	owners, err := f.repo.OwnersMissingTxHistory(ctx)
	if err != nil {
		return err
	}
	f.log.Info().Int("owners", len(owners)).Msg("owner history sweep")

	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return err
		}
		txs, err := f.api.ListTransactions(ctx, owner)
		if err != nil {
			if errors.Is(err, explorer.ErrNotAvailable) {
				continue
			}
			f.log.Warn().Err(err).Str("owner", owner).Msg("txlist fetch failed")
			continue
		}
		rows := make([]store.OwnerTx, 0, len(txs))
		for _, tx := range txs {
			rows = append(rows, toOwnerTx(owner, tx))
		}
		inserted, err := f.repo.InsertOwnerTxs(ctx, rows)
		if err != nil {
			f.log.Warn().Err(err).Str("owner", owner).Msg("owner tx insert failed")
			continue
		}
		f.log.Debug().Str("owner", owner).Int64("inserted", inserted).Msg("owner history stored")
	}
	return nil
}

// toOwnerTx converts an explorer history entry. The explorer returns every
// numeric field as a decimal string; unparseable fields default to zero.
func toOwnerTx(owner string, tx explorer.AddressTx) store.OwnerTx {
	row := store.OwnerTx{
		Hash:            tx.Hash,
		Owner:           owner,
		BlockHash:       tx.BlockHash,
		From:            tx.From,
		To:              tx.To,
		Value:           tx.Value,
		GasPrice:        tx.GasPrice,
		Input:           tx.Input,
		MethodID:        tx.MethodID,
		FunctionName:    tx.FunctionName,
		ContractAddress: tx.ContractAddress,
		Failed:          tx.IsError == "1",
	}
	if v, err := strconv.ParseUint(tx.BlockNumber, 10, 64); err == nil {
		row.BlockNumber = v
	}
	if v, err := strconv.ParseUint(tx.Nonce, 10, 64); err == nil {
		row.Nonce = v
	}
	if v, err := strconv.ParseUint(tx.TransactionIndex, 10, 32); err == nil {
		row.TxIndex = uint(v)
	}
	if v, err := strconv.ParseUint(tx.Gas, 10, 64); err == nil {
		row.Gas = v
	}
	if v, err := strconv.ParseUint(tx.GasUsed, 10, 64); err == nil {
		row.GasUsed = v
	}
	if v, err := strconv.ParseUint(tx.CumulativeGasUsed, 10, 64); err == nil {
		row.CumulativeGasUsed = v
	}
	if v, err := strconv.ParseUint(tx.Confirmations, 10, 64); err == nil {
		row.Confirmations = v
	}
	if v, err := strconv.ParseInt(tx.TimeStamp, 10, 64); err == nil {
		row.Timestamp = time.Unix(v, 0).UTC()
	}
	return row
}
