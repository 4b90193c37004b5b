package classify

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/cmdrvl/tokenscout/internal/llm"
	"github.com/cmdrvl/tokenscout/pkg/store"
)

const accountSystemPrompt = "You are an AI agent that classifies cryptocurrency tokens as scam (isScam = 1) or non-scam (isScam = 0) based on Twitter history. Evaluate post frequency, content quality, engagement, and token name. Use a balanced scoring approach to avoid defaulting to scam. Return a JSON object with classification, confidence, and reasoning."

const accountRubric = `Classify cryptocurrency tokens as scam (isScam = 1) or non-scam (isScam = 0) using Twitter history.

**Classification Criteria**:
1. **Post Frequency (30%)**:
    - Scam: 1-2 posts at launch or unavailable history.
    - Non-Scam: 3+ posts over weeks/months.
2. **Content Quality (40%)**:
    - Scam: Hype-driven (e.g., 'moon', #MEMECOIN), no technical details (e.g., audits, burns, etc.), repetitive.
    - Non-Scam: Specific updates (e.g., partnerships, audits, listings, etc.), transparent, varied content.
3. **Engagement (40%)**:
    - Scam: One-way, hype-focused posts, no community interaction.
    - Non-Scam: Community-driven (e.g., AMAs, contests, etc.), responsive.

**Steps**:
1. Score each criterion (0-100):
- Frequency: 100 if 3+ posts over weeks, 50 if 1-2 posts, 0 if unavailable.
- Content: 100 if specific/technical, 50 if mixed, 0 if only hype/repetitive.
- Engagement: 100 if community-driven, 50 if limited interaction, 0 if one-way.
2. Calculate weighted average score (0-100). If score >= 20, classify as non-scam (isScam = 0); else, scam (isScam = 1).
3. Set confidence: 0.9-1.0 for strong patterns (score < 20 or > 80), 0.5-0.7 for ambiguous (score 20-80).
4. Provide reasoning citing criteria.

Edge Cases:
    - Ambiguous posts: Prioritize content quality and engagement; lower confidence.
    - Hype in non-scam: Require 3+ posts with technical details or engagement for isScam = 0.

**Example**:
    - **Scam**: Token Name: MuskMoonCoin, Twitter History: [{'timestamp': '2025-06-01', 'content': 'To the MOON! #MEMECOIN'}]
    - Output: {'token_name': 'MuskMoonCoin', 'is_scam': 1, 'confidence': 0.95, 'reasoning': 'Exploitative name (Musk). Single hype post, no technical details, no engagement.'}
    - **Non-Scam**: Token Name: GameChain, Twitter History: [{'timestamp': '2025-05-01', 'content': 'Partnered with Web3 studio! #GameChain'}, {'timestamp': '2025-06-01', 'content': 'Audit done, Coingecko listed!'}]
    - Output: {'token_name': 'GameChain', 'is_scam': 0, 'confidence': 0.90, 'reasoning': 'Project-aligned name. Multiple posts with partnerships and audits, community-focused.'}
`

const accountOutputFormat = `
Output Format:
` + "```json" + `
{
    'token_name': '<string>',
    'is_scam': <0 or 1>,
    'confidence': <0.0-1.0>,
    'reasoning': '<brief explanation>'
}
` + "```"

// AccountRepository is the slice of the store the account classifier needs.
type AccountRepository interface {
	FindUnverifiedAccounts(ctx context.Context) ([]store.TwitterUser, error)
	TweetsByUser(ctx context.Context, userID int64) ([]store.Tweet, error)
	SetTwitterVerdictByUser(ctx context.Context, username string, v store.Verdict) error
}

// AccountClassifier judges each unverdicted account by its collected tweet
// history. An account with nothing collected is a scam outright; otherwise
// the model scores the history and its verdict is written to every token
// referencing the account.
type AccountClassifier struct {
	repo     AccountRepository
	provider llm.Provider
	log      zerolog.Logger
}

// NewAccountClassifier returns an AccountClassifier.
func NewAccountClassifier(repo AccountRepository, provider llm.Provider, logger zerolog.Logger) *AccountClassifier {
	return &AccountClassifier{
		repo:     repo,
		provider: provider,
		log:      logger.With().Str("component", "account-classifier").Str("provider", provider.Name()).Logger(),
	}
}

// Run performs one classification sweep.
func (c *AccountClassifier) Run(ctx context.Context) error {
	accounts, err := c.repo.FindUnverifiedAccounts(ctx)
	if err != nil {
		return err
	}
	c.log.Info().Int("accounts", len(accounts)).Msg("account classification sweep")

	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.classifyAccount(ctx, account); err != nil {
			c.log.Warn().Err(err).Str("handle", account.Username).Msg("classification failed")
		}
	}
	return nil
}

func (c *AccountClassifier) classifyAccount(ctx context.Context, account store.TwitterUser) error {
	var tweets []store.Tweet
	if account.UserID != nil {
		var err error
		tweets, err = c.repo.TweetsByUser(ctx, *account.UserID)
		if err != nil {
			return err
		}
	}

	if len(tweets) == 0 {
		// No collected history at all is itself the strongest scam signal.
		return c.writeVerdict(ctx, account.Username, store.VerdictScam)
	}

	history := historyDigest(tweets)
	completion, err := c.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: accountSystemPrompt},
		{Role: "user", Content: accountRubric + "\nInput:\nToken Name:" + account.Username + "\nTwitter History: " + history + accountOutputFormat},
	})
	if err != nil {
		return err
	}

	var result struct {
		TokenName  string  `json:"token_name"`
		IsScam     int     `json:"is_scam"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := llm.ExtractObject(completion, &result); err != nil {
		return err
	}

	verdict := store.VerdictNotScam
	if result.IsScam == 1 {
		verdict = store.VerdictScam
	}
	c.log.Info().
		Str("handle", account.Username).
		Int16("verdict", int16(verdict)).
		Float64("confidence", result.Confidence).
		Msg("account classified")
	return c.writeVerdict(ctx, account.Username, verdict)
}

func (c *AccountClassifier) writeVerdict(ctx context.Context, username string, v store.Verdict) error {
	if err := c.repo.SetTwitterVerdictByUser(ctx, username, v); err != nil {
		return err
	}
	verdictsWritten.WithLabelValues("account", verdictLabel(v)).Inc()
	return nil
}

// historyDigest renders tweets as a day-keyed map of post text. Multiple
// posts on one day keep the latest text.
func historyDigest(tweets []store.Tweet) string {
	digest := make(map[string]string, len(tweets))
	for _, t := range tweets {
		digest[t.PostedAt.Format("2006-01-02")] = t.FullText
	}
	encoded, err := json.Marshal(digest)
	if err != nil {
		return ""
	}
	return string(encoded)
}
