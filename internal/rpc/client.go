// Package rpc wraps the chain RPC endpoint behind a circuit breaker with
// bounded per-call deadlines and retries.
package rpc

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	// MaxRequests is the number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state before going half-open.
	Timeout time.Duration

	// FailureThreshold is the consecutive failures before opening.
	FailureThreshold uint32
}

// ClientConfig holds RPC client configuration.
type ClientConfig struct {
	// URL is the RPC endpoint.
	URL string

	// Timeout is the per-call deadline.
	Timeout time.Duration

	// MaxRetries is the maximum retry attempts for chain reads.
	MaxRetries int

	// CircuitBreaker holds circuit breaker settings.
	CircuitBreaker CircuitBreakerConfig
}

// DefaultConfig returns a ClientConfig with production defaults.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      5,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// Client is a chain RPC client with circuit breaking and bounded retries.
type Client struct {
	eth     *ethclient.Client
	cfg     ClientConfig
	breaker *gobreaker.CircuitBreaker
}

// New connects to the RPC endpoint and returns a Client.
//
// Parameters:
//   - ctx (context.Context): dial context
//   - cfg (ClientConfig): client configuration
//
// Returns:
//   - *Client: the connected client
//   - error: nil on success, dial or validation error otherwise
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if u, err := url.Parse(cfg.URL); err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("invalid rpc url: %s", cfg.URL)
	}

	eth, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chain-rpc",
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CircuitBreaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Client{eth: eth, cfg: cfg, breaker: breaker}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}

// withDeadline derives a bounded per-call context.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

// retry runs op with exponential backoff up to MaxRetries attempts.
func (c *Client) retry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries)),
		ctx,
	)
	return backoff.Retry(op, bo)
}

// BlockNumber returns the current chain height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.retry(ctx, func() error {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			cctx, cancel := c.withDeadline(ctx)
			defer cancel()
			return c.eth.BlockNumber(cctx)
		})
		if err != nil {
			return err
		}
		height = res.(uint64)
		return nil
	})
	return height, err
}

// BlockByNumber returns the block at the given height with full transaction
// bodies.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := c.retry(ctx, func() error {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			cctx, cancel := c.withDeadline(ctx)
			defer cancel()
			return c.eth.BlockByNumber(cctx, new(big.Int).SetUint64(number))
		})
		if err != nil {
			return err
		}
		block = res.(*types.Block)
		return nil
	})
	return block, err
}

// TransactionReceipt returns the receipt for a transaction hash.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.retry(ctx, func() error {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			cctx, cancel := c.withDeadline(ctx)
			defer cancel()
			return c.eth.TransactionReceipt(cctx, txHash)
		})
		if err != nil {
			return err
		}
		receipt = res.(*types.Receipt)
		return nil
	})
	return receipt, err
}

// call performs a single eth_call without retries; a revert usually means
// the address is not a conforming token.
func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		cctx, cancel := c.withDeadline(ctx)
		defer cancel()
		msg := ethereumCallMsg(to, data)
		return c.eth.CallContract(cctx, msg, nil)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}
