package rpc

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, uint32(5), cfg.CircuitBreaker.MaxRequests)
	require.Equal(t, 60*time.Second, cfg.CircuitBreaker.Interval)
	require.Equal(t, 30*time.Second, cfg.CircuitBreaker.Timeout)
	require.Equal(t, uint32(5), cfg.CircuitBreaker.FailureThreshold)
}

func TestClientConfigStruct(t *testing.T) {
	cfg := ClientConfig{
		URL:        "https://rpc.example.com",
		Timeout:    15 * time.Second,
		MaxRetries: 5,
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      10,
			Interval:         120 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 3,
		},
	}

	require.Equal(t, "https://rpc.example.com", cfg.URL)
	require.Equal(t, 15*time.Second, cfg.Timeout)
	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, uint32(10), cfg.CircuitBreaker.MaxRequests)
	require.Equal(t, 120*time.Second, cfg.CircuitBreaker.Interval)
	require.Equal(t, 60*time.Second, cfg.CircuitBreaker.Timeout)
	require.Equal(t, uint32(3), cfg.CircuitBreaker.FailureThreshold)
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	// URL is empty by default (must be set by user)
	require.Empty(t, cfg.URL)

	require.Greater(t, cfg.CircuitBreaker.MaxRequests, uint32(0))
	require.Greater(t, cfg.CircuitBreaker.Interval, time.Duration(0))
	require.Greater(t, cfg.CircuitBreaker.Timeout, time.Duration(0))
	require.Greater(t, cfg.CircuitBreaker.FailureThreshold, uint32(0))

	require.Greater(t, cfg.Timeout, time.Duration(0))
	require.Greater(t, cfg.MaxRetries, 0)
}

func TestNewClientWithInvalidURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "not-a-valid-url"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewClientWithEmptyURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = ""

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestERC20ABIMethods(t *testing.T) {
	tests := []struct {
		name   string
		method string
	}{
		{name: "name", method: "name"},
		{name: "symbol", method: "symbol"},
		{name: "decimals", method: "decimals"},
		{name: "totalSupply", method: "totalSupply"},
		{name: "owner", method: "owner"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input, err := erc20ABI.Pack(tc.method)
			require.NoError(t, err)
			// 4-byte selector, no arguments
			require.Len(t, input, 4)
		})
	}
}

func TestERC20ABIUnpackDecimals(t *testing.T) {
	data := common.LeftPadBytes([]byte{18}, 32)

	out, err := erc20ABI.Unpack("decimals", data)
	require.NoError(t, err)
	require.Equal(t, uint8(18), out[0].(uint8))
}

func TestERC20ABIUnpackTotalSupply(t *testing.T) {
	want := new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))
	data := common.LeftPadBytes(want.Bytes(), 32)

	out, err := erc20ABI.Unpack("totalSupply", data)
	require.NoError(t, err)
	require.Equal(t, 0, want.Cmp(out[0].(*big.Int)))
}

func TestFactoryGetPairRoundTrip(t *testing.T) {
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")

	input, err := factoryABI.Pack("getPair", weth, token)
	require.NoError(t, err)
	require.Len(t, input, 4+32+32)

	pair := common.HexToAddress("0x2222222222222222222222222222222222222222")
	out, err := factoryABI.Unpack("getPair", common.LeftPadBytes(pair.Bytes(), 32))
	require.NoError(t, err)
	require.Equal(t, pair, out[0].(common.Address))
}

func TestBytes32StringFallback(t *testing.T) {
	// Older tokens declare name() as bytes32; the raw word is the string
	// padded with zero bytes.
	word := make([]byte, 32)
	copy(word, "WETH")

	require.Equal(t, "WETH", string(common.TrimRightZeroes(word)))
}
