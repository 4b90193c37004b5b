// Package audit queries the pair-analytics API for token security audits and
// applies them to stored tokens.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNoPairData is returned when the API has no record for a pair yet.
var ErrNoPairData = errors.New("audit: no data for pair")

// ErrNoAuditData is returned when a pair record carries no audit object, as
// happens on degraded responses. The caller must not treat such a record as
// an audit result.
var ErrNoAuditData = errors.New("audit: response missing audit record")

// Config holds audit API client configuration.
type Config struct {
	// APIURL is the pair-info endpoint.
	APIURL string

	// Chain is the chain slug the API expects, e.g. "ether".
	Chain string

	// Headers is sent verbatim on every request. The API rejects requests
	// without the expected browser headers.
	Headers map[string]string

	// Timeout is the per-request deadline.
	Timeout time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Chain:   "ether",
		Timeout: 15 * time.Second,
	}
}

// Client queries the pair-analytics API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client for the configured endpoint.
func New(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("audit api url is required")
	}
	if cfg.Chain == "" {
		cfg.Chain = DefaultConfig().Chain
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// flag decodes the API's loosely typed booleans, which arrive as JSON bools
// or as "yes"/"no" strings depending on the provider.
type flag struct {
	Value *bool
}

func (f *flag) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.Value = &b
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding audit flag from %s", data)
	}
	switch s {
	case "yes", "true":
		b = true
	case "no", "false":
		b = false
	default:
		return nil
	}
	f.Value = &b
	return nil
}

type taxRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type dextoolsAudit struct {
	IsOpenSource       flag     `json:"is_open_source"`
	IsHoneypot         flag     `json:"is_honeypot"`
	IsMintable         flag     `json:"is_mintable"`
	IsProxy            flag     `json:"is_proxy"`
	SlippageModifiable flag     `json:"slippage_modifiable"`
	IsBlacklisted      flag     `json:"is_blacklisted"`
	IsRenounced        flag     `json:"is_contract_renounced"`
	IsPotentialScam    flag     `json:"is_potentially_scam"`
	TransferPausable   flag     `json:"transfer_pausable"`
	SellTax            taxRange `json:"sell_tax"`
	BuyTax             taxRange `json:"buy_tax"`
	Summary            struct {
		Providers struct {
			Warning []string `json:"warning"`
		} `json:"providers"`
	} `json:"summary"`
}

type pairPayload struct {
	CreationTime       *time.Time `json:"creationTime"`
	FirstSwapTimestamp *time.Time `json:"firstSwapTimestamp"`
	Token              struct {
		Locks json.RawMessage `json:"locks"`
		Links struct {
			Twitter  string `json:"twitter"`
			Website  string `json:"website"`
			Telegram string `json:"telegram"`
		} `json:"links"`
		Audit *struct {
			Dextools dextoolsAudit `json:"dextools"`
			External struct {
				Quickintel struct {
					CreatorAddress string `json:"creator_address"`
				} `json:"quickintel"`
			} `json:"external"`
		} `json:"audit"`
	} `json:"token"`
}

// PairInfo is the decoded audit record for a trading pair.
type PairInfo struct {
	CreationTime *time.Time
	FirstSwapAt  *time.Time
	Creator      string
	Locks        json.RawMessage

	TwitterURL  string
	WebsiteURL  string
	TelegramURL string

	IsOpenSource       *bool
	IsHoneypot         *bool
	IsMintable         *bool
	IsProxy            *bool
	SlippageModifiable *bool
	IsBlacklisted      *bool
	IsRenounced        *bool
	IsPotentialScam    *bool
	TransferPausable   *bool
	MinBuyTax          *float64
	MaxBuyTax          *float64
	MinSellTax         *float64
	MaxSellTax         *float64
	Warnings           []string
}

// PairInfo fetches and decodes the audit record for a pair address.
func (c *Client) PairInfo(ctx context.Context, pairAddress string) (*PairInfo, error) {
	params := url.Values{}
	params.Set("address", pairAddress)
	params.Set("chain", c.cfg.Chain)
	params.Set("audit", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audit api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var decoded struct {
		Data []pairPayload `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Data) == 0 {
		return nil, ErrNoPairData
	}

	p := decoded.Data[0]
	if p.Token.Audit == nil {
		return nil, fmt.Errorf("pair %s: %w", pairAddress, ErrNoAuditData)
	}
	a := p.Token.Audit.Dextools

	locks := p.Token.Locks
	if len(locks) == 0 || bytes.Equal(locks, []byte("[]")) || bytes.Equal(locks, []byte("null")) {
		locks = nil
	}

	return &PairInfo{
		CreationTime: p.CreationTime,
		FirstSwapAt:  p.FirstSwapTimestamp,
		Creator:      p.Token.Audit.External.Quickintel.CreatorAddress,
		Locks:        locks,

		TwitterURL:  p.Token.Links.Twitter,
		WebsiteURL:  p.Token.Links.Website,
		TelegramURL: p.Token.Links.Telegram,

		IsOpenSource:       a.IsOpenSource.Value,
		IsHoneypot:         a.IsHoneypot.Value,
		IsMintable:         a.IsMintable.Value,
		IsProxy:            a.IsProxy.Value,
		SlippageModifiable: a.SlippageModifiable.Value,
		IsBlacklisted:      a.IsBlacklisted.Value,
		IsRenounced:        a.IsRenounced.Value,
		IsPotentialScam:    a.IsPotentialScam.Value,
		TransferPausable:   a.TransferPausable.Value,
		MinBuyTax:          a.BuyTax.Min,
		MaxBuyTax:          a.BuyTax.Max,
		MinSellTax:         a.SellTax.Min,
		MaxSellTax:         a.SellTax.Max,
		Warnings:           a.Summary.Providers.Warning,
	}, nil
}
