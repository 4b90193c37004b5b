// Package classify runs LLM verdicts over contract source and social account
// history.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/cmdrvl/tokenscout/internal/links"
	"github.com/cmdrvl/tokenscout/internal/llm"
	"github.com/cmdrvl/tokenscout/pkg/store"
)

var verdictsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tokenscout_verdicts_total",
	Help: "Number of classifier verdicts written, by classifier and verdict.",
}, []string{"classifier", "verdict"})

const contractSystemPrompt = "You are an ERC20 smart contract security analyzer."

const contractRubric = `Analyze this smart contract for security features and return a JSON array with the following properties based on the provided source code.

1. isHoneyPot: Check if the token may not be sold due to contract functions or is designed to trap users.
Key Checks:
- Admin Abuse: Can the deployer drain funds (e.g., via privileged functions)?
- Fund Drain:
    Are there functions that steal ETH or tokens?
    Are taxes or WETH sent to a withdrawable wallet?
    Are tax rates extremely high (e.g., 99%% or similar) indicating a honeypot? (Note: Taxes between 10%%-50%% are acceptable.)
- Tax Traps: Does the tax system contain traps (e.g., dynamic taxes that spike on sell, hidden fees)?
- Transfer Tricks: Does _transfer() block sells or hide burns (e.g., via reverts or silent failures)?
- DEX Exploits: Can the owner remove liquidity or manipulate swaps (e.g., via pair control)?

2. isMintable: Check if new tokens can be created, allowing the deployer to arbitrarily manipulate token balances.
Key Checks:
- Supply Control: Are there functions to increase total supply?
- Hidden Mint Functions: Look for disguised minting logic (e.g., indirect calls, misleading names).

3. isProxy: Check if the contract uses a proxy pattern (e.g., delegatecall to an implementation contract).

4. isBlackList: Check for address blacklisting mechanisms.
Key Checks:
- Hidden Control: Is there blacklisting logic (even post-renunciation)?
- Obfuscation Tricks: Are there misleading names or structures hiding blacklist functionality?

5. transferPausable: Check if token transfers can be paused by the deployer or another address.

Source code:
%s

Format:
` + "```json" + `
[
  {"feature": "isHoneyPot", "value": "yes/no", "reason": "brief explanation"},
  {"feature": "isMintable", "value": "yes/no", "reason": "brief explanation"},
  {"feature": "isProxy", "value": "yes/no", "reason": "brief explanation"},
  {"feature": "isBlackList", "value": "yes/no", "reason": "brief explanation"},
  {"feature": "transferPausable", "value": "yes/no", "reason": "brief explanation"}
]
` + "```"

// ContractRepository is the slice of the store the contract classifier needs.
type ContractRepository interface {
	FindUnverifiedContracts(ctx context.Context) ([]store.Contract, error)
	SetContractVerdict(ctx context.Context, address string, v store.Verdict) error
}

// ContractClassifier asks the model whether each unverdicted contract's
// source contains any of five scam features. One "yes" makes the token a
// scam.
type ContractClassifier struct {
	repo     ContractRepository
	provider llm.Provider
	log      zerolog.Logger
}

// NewContractClassifier returns a ContractClassifier.
func NewContractClassifier(repo ContractRepository, provider llm.Provider, logger zerolog.Logger) *ContractClassifier {
	return &ContractClassifier{
		repo:     repo,
		provider: provider,
		log:      logger.With().Str("component", "contract-classifier").Str("provider", provider.Name()).Logger(),
	}
}

// Run performs one classification sweep. An unparseable completion writes no
// verdict, so the contract is retried on the next sweep.
func (c *ContractClassifier) Run(ctx context.Context) error {
	contracts, err := c.repo.FindUnverifiedContracts(ctx)
	if err != nil {
		return err
	}
	c.log.Info().Int("contracts", len(contracts)).Msg("contract classification sweep")

	for _, contract := range contracts {
		if err := ctx.Err(); err != nil {
			return err
		}
		verdict, err := c.classify(ctx, contract.SourceCode)
		if err != nil {
			c.log.Warn().Err(err).Str("contract", contract.ContractAddress).Msg("classification failed")
			continue
		}
		if err := c.repo.SetContractVerdict(ctx, contract.ContractAddress, verdict); err != nil {
			c.log.Warn().Err(err).Str("contract", contract.ContractAddress).Msg("verdict write failed")
			continue
		}
		verdictsWritten.WithLabelValues("contract", verdictLabel(verdict)).Inc()
		c.log.Info().Str("contract", contract.ContractAddress).Int16("verdict", int16(verdict)).Msg("contract classified")
	}
	return nil
}

type contractFeature struct {
	Feature string `json:"feature"`
	Value   string `json:"value"`
	Reason  string `json:"reason"`
}

func (c *ContractClassifier) classify(ctx context.Context, sourceCode string) (store.Verdict, error) {
	source := links.UnwrapSource(sourceCode)

	completion, err := c.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: contractSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(contractRubric, source)},
	})
	if err != nil {
		return 0, err
	}

	var features []contractFeature
	if err := llm.ExtractArray(completion, &features); err != nil {
		return 0, err
	}
	if len(features) == 0 {
		return 0, llm.ErrNoJSON
	}
	return reduceFeatures(features), nil
}

// reduceFeatures collapses the feature array to a verdict: scam unless every
// feature came back "no".
func reduceFeatures(features []contractFeature) store.Verdict {
	for _, f := range features {
		if strings.EqualFold(strings.TrimSpace(f.Value), "no") {
			continue
		}
		return store.VerdictScam
	}
	return store.VerdictNotScam
}

func verdictLabel(v store.Verdict) string {
	if v == store.VerdictScam {
		return "scam"
	}
	return "not_scam"
}
