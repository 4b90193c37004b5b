package config

import "time"

// NetworkPreset contains network-specific default values.
type NetworkPreset struct {
	// ChainID is the network chain ID.
	ChainID uint64

	// PollInterval is the block polling interval.
	PollInterval time.Duration

	// DefaultRPC is the default public RPC endpoint.
	DefaultRPC string

	// BlockTime is the expected block time.
	BlockTime time.Duration

	// WETHAddress is the reference asset used for pair lookups.
	WETHAddress string

	// FactoryAddress is the Uniswap V2 factory used for pair lookups.
	FactoryAddress string
}

// NetworkPresets contains all supported network configurations.
var NetworkPresets = map[string]NetworkPreset{
	"mainnet": {
		ChainID:        1,
		PollInterval:   10 * time.Second,
		DefaultRPC:     "https://eth.llamarpc.com",
		BlockTime:      12 * time.Second,
		WETHAddress:    "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		FactoryAddress: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
	},
	"sepolia": {
		ChainID:        11155111,
		PollInterval:   10 * time.Second,
		DefaultRPC:     "https://rpc.sepolia.org",
		BlockTime:      12 * time.Second,
		WETHAddress:    "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14",
		FactoryAddress: "0xF62c03E08ada871A0bEb309762E260a7a6a880E6",
	},
}

// GetNetworkPreset returns the preset for a network name.
//
// Parameters:
//   - network (string): the network name
//
// Returns:
//   - NetworkPreset: the network preset
//   - bool: true if found, false otherwise
func GetNetworkPreset(network string) (NetworkPreset, bool) {
	preset, ok := NetworkPresets[network]
	return preset, ok
}

// SupportedNetworks returns a list of supported network names.
//
// Returns:
//   - []string: list of supported network names
func SupportedNetworks() []string {
	networks := make([]string, 0, len(NetworkPresets))
	for name := range NetworkPresets {
		networks = append(networks, name)
	}
	return networks
}
