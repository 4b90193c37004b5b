// Package monitor watches the chain for contract creations and records the
// ones that expose the full ERC20 interface.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/cmdrvl/tokenscout/internal/rpc"
	"github.com/cmdrvl/tokenscout/pkg/store"
)

var (
	blocksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenscout_blocks_processed_total",
		Help: "Number of blocks scanned for contract creations.",
	})
	tokensDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenscout_tokens_discovered_total",
		Help: "Number of new ERC20 tokens stored.",
	})
	candidatesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenscout_candidates_rejected_total",
		Help: "Number of created contracts that failed the ERC20 interface probe.",
	})
)

// Repository is the slice of the store the monitor needs.
type Repository interface {
	InsertToken(ctx context.Context, t *store.Token) (bool, error)
}

// ChainReader is the slice of the RPC client the monitor needs.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TokenFacts(ctx context.Context, addr common.Address) (rpc.TokenFacts, error)
}

// Config holds chain monitor configuration.
type Config struct {
	// LookbackBlocks is how far behind the head the initial scan starts.
	LookbackBlocks uint64

	// PollInterval is the sleep between head checks when no new block
	// has arrived.
	PollInterval time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		LookbackBlocks: 10000,
		PollInterval:   10 * time.Second,
	}
}

// Monitor scans blocks for contract creation transactions, probes each
// created contract for the ERC20 interface and inserts conforming tokens.
//
// The seen set is purely a cache to avoid re-probing an address within one
// process lifetime; duplicate inserts across restarts are absorbed by the
// store's insert-if-absent semantics.
type Monitor struct {
	repo  Repository
	chain ChainReader
	cfg   Config
	log   zerolog.Logger

	mu   sync.Mutex
	seen map[common.Address]struct{}
}

// New returns a Monitor.
func New(repo Repository, chain ChainReader, cfg Config, logger zerolog.Logger) *Monitor {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Monitor{
		repo:  repo,
		chain: chain,
		cfg:   cfg,
		log:   logger.With().Str("component", "chain-monitor").Logger(),
		seen:  make(map[common.Address]struct{}),
	}
}

// Run scans the lookback window once, then follows the head until ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	head, err := m.chain.BlockNumber(ctx)
	if err != nil {
		return err
	}

	start := uint64(0)
	if head > m.cfg.LookbackBlocks {
		start = head - m.cfg.LookbackBlocks
	}
	m.log.Info().Uint64("from", start).Uint64("to", head).Msg("scanning lookback window")

	if err := m.scanRange(ctx, start, head); err != nil {
		return err
	}

	last := head
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		current, err := m.chain.BlockNumber(ctx)
		if err != nil {
			m.log.Warn().Err(err).Msg("head check failed")
			continue
		}
		if current <= last {
			continue
		}
		if err := m.scanRange(ctx, last+1, current); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Warn().Err(err).Msg("block scan failed")
			continue
		}
		last = current
	}
}

func (m *Monitor) scanRange(ctx context.Context, from, to uint64) error {
	for n := from; n <= to; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		block, err := m.chain.BlockByNumber(ctx, n)
		if err != nil {
			return err
		}
		m.processBlock(ctx, block)
		blocksProcessed.Inc()
	}
	return nil
}

// processBlock probes every contract creation in the block. Per-transaction
// failures are skipped; a missed candidate is rediscovered only if the
// process restarts within the lookback window, matching at-least-once
// discovery.
func (m *Monitor) processBlock(ctx context.Context, block *types.Block) {
	for _, tx := range block.Transactions() {
		if tx.To() != nil {
			continue
		}
		receipt, err := m.chain.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			m.log.Debug().Err(err).Str("tx", tx.Hash().Hex()).Msg("receipt fetch failed")
			continue
		}
		addr := receipt.ContractAddress
		if addr == (common.Address{}) {
			continue
		}
		if !m.markSeen(addr) {
			continue
		}
		m.checkToken(ctx, addr, receipt.BlockNumber.Uint64())
	}
}

// markSeen records the address in the cache and reports whether it was new.
func (m *Monitor) markSeen(addr common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[addr]; ok {
		return false
	}
	m.seen[addr] = struct{}{}
	return true
}

func (m *Monitor) checkToken(ctx context.Context, addr common.Address, blockNumber uint64) {
	facts, err := m.chain.TokenFacts(ctx, addr)
	if err != nil {
		// Most created contracts are not tokens.
		candidatesRejected.Inc()
		m.log.Debug().Str("contract", addr.Hex()).Err(err).Msg("not an ERC20 token")
		return
	}

	owner := facts.Owner.Hex()
	token := &store.Token{
		ContractAddress: addr.Hex(),
		Owner:           &owner,
		Name:            facts.Name,
		Symbol:          facts.Symbol,
		TotalSupply:     facts.TotalSupply.String(),
		Decimals:        facts.Decimals,
		CreatedBlock:    blockNumber,
	}

	created, err := m.repo.InsertToken(ctx, token)
	if err != nil {
		m.log.Error().Err(err).Str("contract", addr.Hex()).Msg("token insert failed")
		return
	}
	if created {
		tokensDiscovered.Inc()
		m.log.Info().
			Str("contract", addr.Hex()).
			Str("name", facts.Name).
			Str("symbol", facts.Symbol).
			Uint64("block", blockNumber).
			Msg("token discovered")
	}
}
