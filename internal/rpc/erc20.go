package rpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

const factoryABIJSON = `[
	{"constant":true,"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"name":"pair","type":"address"}],"type":"function"}
]`

var (
	erc20ABI   = mustParseABI(erc20ABIJSON)
	factoryABI = mustParseABI(factoryABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

func ethereumCallMsg(to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &to, Data: data}
}

// TokenFacts holds the metadata read from a candidate token contract.
type TokenFacts struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
	Owner       common.Address
}

// TokenFacts reads name, symbol, decimals, totalSupply and owner from the
// contract at addr. Any failing call means the contract does not expose the
// full interface and the candidate is rejected.
func (c *Client) TokenFacts(ctx context.Context, addr common.Address) (TokenFacts, error) {
	var facts TokenFacts

	name, err := c.callString(ctx, addr, "name")
	if err != nil {
		return facts, fmt.Errorf("name(): %w", err)
	}
	symbol, err := c.callString(ctx, addr, "symbol")
	if err != nil {
		return facts, fmt.Errorf("symbol(): %w", err)
	}

	data, err := c.callMethod(ctx, addr, "decimals")
	if err != nil {
		return facts, fmt.Errorf("decimals(): %w", err)
	}
	out, err := erc20ABI.Unpack("decimals", data)
	if err != nil {
		return facts, fmt.Errorf("decimals(): %w", err)
	}
	decimals := out[0].(uint8)

	data, err = c.callMethod(ctx, addr, "totalSupply")
	if err != nil {
		return facts, fmt.Errorf("totalSupply(): %w", err)
	}
	out, err = erc20ABI.Unpack("totalSupply", data)
	if err != nil {
		return facts, fmt.Errorf("totalSupply(): %w", err)
	}
	supply := out[0].(*big.Int)

	data, err = c.callMethod(ctx, addr, "owner")
	if err != nil {
		return facts, fmt.Errorf("owner(): %w", err)
	}
	out, err = erc20ABI.Unpack("owner", data)
	if err != nil {
		return facts, fmt.Errorf("owner(): %w", err)
	}
	owner := out[0].(common.Address)

	facts = TokenFacts{
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: supply,
		Owner:       owner,
	}
	return facts, nil
}

// PairFor queries a factory contract for the pair of tokenA and tokenB.
// It returns the zero address when no pair has been created.
func (c *Client) PairFor(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error) {
	input, err := factoryABI.Pack("getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, fmt.Errorf("packing getPair: %w", err)
	}
	data, err := c.call(ctx, factory, input)
	if err != nil {
		return common.Address{}, fmt.Errorf("getPair: %w", err)
	}
	out, err := factoryABI.Unpack("getPair", data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpacking getPair: %w", err)
	}
	return out[0].(common.Address), nil
}

func (c *Client) callMethod(ctx context.Context, addr common.Address, method string) ([]byte, error) {
	input, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, err
	}
	data, err := c.call(ctx, addr, input)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty return data")
	}
	return data, nil
}

// callString reads a string-returning method. Some older contracts declare
// name and symbol as bytes32; those are decoded by trimming trailing zero
// bytes from the raw word.
func (c *Client) callString(ctx context.Context, addr common.Address, method string) (string, error) {
	data, err := c.callMethod(ctx, addr, method)
	if err != nil {
		return "", err
	}
	out, err := erc20ABI.Unpack(method, data)
	if err == nil {
		return out[0].(string), nil
	}
	if len(data) == 32 {
		return string(common.TrimRightZeroes(data)), nil
	}
	return "", err
}
