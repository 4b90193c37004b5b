// Package explorer talks to the block explorer HTTP API for verified contract
// source and address transaction history.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// ErrNotAvailable is returned when the explorer has no data for the query.
// Callers treat it as "try again later", not as a failure.
var ErrNotAvailable = errors.New("explorer: result not available")

// Config holds explorer client configuration.
type Config struct {
	// APIURL is the explorer API base URL.
	APIURL string

	// APIKeys is the pool of API keys. One is picked at random per request
	// to spread load across the pool's rate limits.
	APIKeys []string

	// Timeout is the per-request deadline.
	Timeout time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,
	}
}

// Client queries the explorer API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client for the configured explorer.
func New(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("explorer api url is required")
	}
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("at least one explorer api key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// pickKey returns a random key from the pool.
func (c *Client) pickKey() string {
	return c.cfg.APIKeys[rand.Intn(len(c.cfg.APIKeys))]
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// ContractSource is one verified-source record from the explorer.
type ContractSource struct {
	SourceCode       string `json:"SourceCode"`
	ABI              string `json:"ABI"`
	ContractName     string `json:"ContractName"`
	CompilerVersion  string `json:"CompilerVersion"`
	OptimizationUsed string `json:"OptimizationUsed"`
	Runs             string `json:"Runs"`
	EVMVersion       string `json:"EVMVersion"`
	Library          string `json:"Library"`
	LicenseType      string `json:"LicenseType"`
	Proxy            string `json:"Proxy"`
	Implementation   string `json:"Implementation"`
	SwarmSource      string `json:"SwarmSource"`
}

// AddressTx is one entry of an address's transaction history.
type AddressTx struct {
	Hash              string `json:"hash"`
	BlockNumber       string `json:"blockNumber"`
	BlockHash         string `json:"blockHash"`
	TimeStamp         string `json:"timeStamp"`
	Nonce             string `json:"nonce"`
	TransactionIndex  string `json:"transactionIndex"`
	From              string `json:"from"`
	To                string `json:"to"`
	Value             string `json:"value"`
	Gas               string `json:"gas"`
	GasPrice          string `json:"gasPrice"`
	GasUsed           string `json:"gasUsed"`
	CumulativeGasUsed string `json:"cumulativeGasUsed"`
	Input             string `json:"input"`
	IsError           string `json:"isError"`
	MethodID          string `json:"methodId"`
	FunctionName      string `json:"functionName"`
	ContractAddress   string `json:"contractAddress"`
	Confirmations     string `json:"confirmations"`
}

// GetSourceCode fetches the verified source record for a contract address.
// A record with an empty SourceCode field means the contract exists but is
// not verified yet; that is still a successful fetch.
func (c *Client) GetSourceCode(ctx context.Context, address string) (*ContractSource, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getsourcecode")
	params.Set("address", address)

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var records []ContractSource
	if err := json.Unmarshal(env.Result, &records); err != nil {
		return nil, fmt.Errorf("decoding source result: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotAvailable
	}
	return &records[0], nil
}

// ListTransactions fetches the full transaction history of an address in
// ascending block order.
func (c *Client) ListTransactions(ctx context.Context, address string) ([]AddressTx, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")
	params.Set("sort", "asc")

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var txs []AddressTx
	if err := json.Unmarshal(env.Result, &txs); err != nil {
		return nil, fmt.Errorf("decoding txlist result: %w", err)
	}
	return txs, nil
}

func (c *Client) get(ctx context.Context, params url.Values) (*envelope, error) {
	params.Set("apikey", c.pickKey())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if env.Status != "1" {
		// "No transactions found" and unindexed contracts come back with
		// status 0. The caller retries on the next sweep.
		return nil, fmt.Errorf("%w: %s", ErrNotAvailable, env.Message)
	}
	return &env, nil
}
