package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmdrvl/tokenscout/pkg/store"
)

// InsertToken inserts a newly discovered token, ignoring the insert if the
// contract address is already known. Discovery is at-least-once; storage is
// at-most-one row.
//
// Returns:
//   - bool: true if a new row was created
//   - error: nil on success
func (s *Store) InsertToken(ctx context.Context, t *store.Token) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(t)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetToken returns the token for an address, or nil if unknown.
func (s *Store) GetToken(ctx context.Context, address string) (*store.Token, error) {
	var t store.Token
	err := s.db.WithContext(ctx).First(&t, "contract_address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindTokensMissingContract returns addresses of tokens that have no contract
// record yet. This is the source fetcher's discovery sweep predicate.
func (s *Store) FindTokensMissingContract(ctx context.Context) ([]string, error) {
	var addrs []string
	err := s.db.WithContext(ctx).
		Table("tokens").
		Select("tokens.contract_address").
		Joins("LEFT JOIN contracts ON contracts.contract_address = tokens.contract_address").
		Where("contracts.contract_address IS NULL").
		Scan(&addrs).Error
	return addrs, err
}

// FindUnauditedTokens returns addresses of tokens whose creator is still
// unset, i.e. tokens the audit fetcher has not processed.
func (s *Store) FindUnauditedTokens(ctx context.Context) ([]string, error) {
	var addrs []string
	err := s.db.WithContext(ctx).
		Model(&store.Token{}).
		Select("contract_address").
		Where("creator IS NULL").
		Scan(&addrs).Error
	return addrs, err
}

// AuditUpdate carries one audit API result for a token. Link fields follow
// the fill-if-null policy; the remaining fields overwrite when set and leave
// the stored value alone when nil.
type AuditUpdate struct {
	PairAddress  string
	Creator      *string
	CreationTime *time.Time
	FirstSwapAt  *time.Time
	Locks        datatypes.JSON

	TwitterURL    *string
	TwitterHandle *string
	WebsiteURL    *string
	TelegramURL   *string

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
	Warnings           *string
}

// ApplyAudit writes an audit result to a token in a single statement. Audit
// and timing fields track the latest audit, but a field the API did not
// report never nulls a stored value; link fields are only filled when
// currently NULL so values found by the link extractor survive.
func (s *Store) ApplyAudit(ctx context.Context, address string, u AuditUpdate) error {
	// keep writes the new value unless it is NULL, in which case the column
	// keeps whatever it already holds.
	keep := func(column string, v interface{}) interface{} {
		return gorm.Expr("COALESCE(?, "+column+")", v)
	}
	updates := map[string]interface{}{
		"pair_address":        u.PairAddress,
		"creator":             keep("creator", u.Creator),
		"creation_time":       keep("creation_time", u.CreationTime),
		"first_swap_at":       keep("first_swap_at", u.FirstSwapAt),
		"locks":               keep("locks", u.Locks),
		"is_open_source":      keep("is_open_source", u.IsOpenSource),
		"is_honeypot":         keep("is_honeypot", u.IsHoneypot),
		"is_mintable":         keep("is_mintable", u.IsMintable),
		"is_proxy":            keep("is_proxy", u.IsProxy),
		"slippage_modifiable": keep("slippage_modifiable", u.SlippageModifiable),
		"is_blacklisted":      keep("is_blacklisted", u.IsBlacklisted),
		"is_renounced":        keep("is_renounced", u.IsRenounced),
		"is_potential_scam":   keep("is_potential_scam", u.IsPotentialScam),
		"transfer_pausable":   keep("transfer_pausable", u.TransferPausable),
		"min_buy_tax":         keep("min_buy_tax", u.MinBuyTax),
		"max_buy_tax":         keep("max_buy_tax", u.MaxBuyTax),
		"min_sell_tax":        keep("min_sell_tax", u.MinSellTax),
		"max_sell_tax":        keep("max_sell_tax", u.MaxSellTax),
		"warnings":            keep("warnings", u.Warnings),
	}
	if u.TwitterURL != nil {
		updates["twitter_url"] = gorm.Expr("COALESCE(twitter_url, ?)", *u.TwitterURL)
	}
	if u.TwitterHandle != nil {
		updates["twitter_user"] = gorm.Expr("COALESCE(twitter_user, ?)", *u.TwitterHandle)
	}
	if u.WebsiteURL != nil {
		updates["website_url"] = gorm.Expr("COALESCE(website_url, ?)", *u.WebsiteURL)
	}
	if u.TelegramURL != nil {
		updates["telegram_url"] = gorm.Expr("COALESCE(telegram_url, ?)", *u.TelegramURL)
	}
	return s.db.WithContext(ctx).
		Model(&store.Token{}).
		Where("contract_address = ?", address).
		Updates(updates).Error
}

// Links carries social links extracted from contract source. A nil field
// means "nothing found" and leaves the column untouched.
type Links struct {
	TwitterURL    *string
	TwitterHandle *string
	WebsiteURL    *string
	TelegramURL   *string
}

// FillTokenLinks sets each non-nil link field only if the column is currently
// NULL. Running it twice with the same input is a no-op.
func (s *Store) FillTokenLinks(ctx context.Context, address string, links Links) error {
	updates := map[string]interface{}{}
	if links.TwitterURL != nil {
		updates["twitter_url"] = gorm.Expr("COALESCE(twitter_url, ?)", *links.TwitterURL)
	}
	if links.TwitterHandle != nil {
		updates["twitter_user"] = gorm.Expr("COALESCE(twitter_user, ?)", *links.TwitterHandle)
	}
	if links.WebsiteURL != nil {
		updates["website_url"] = gorm.Expr("COALESCE(website_url, ?)", *links.WebsiteURL)
	}
	if links.TelegramURL != nil {
		updates["telegram_url"] = gorm.Expr("COALESCE(telegram_url, ?)", *links.TelegramURL)
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&store.Token{}).
		Where("contract_address = ?", address).
		Updates(updates).Error
}

// SetContractVerdict writes the contract classifier's verdict for a token.
// The write is unconditional: a parsed verdict always wins.
func (s *Store) SetContractVerdict(ctx context.Context, address string, v store.Verdict) error {
	return s.db.WithContext(ctx).
		Model(&store.Token{}).
		Where("contract_address = ?", address).
		Update("contract_verdict", v).Error
}

// SetTwitterVerdictByUser writes the account classifier's verdict to every
// token referencing the username.
func (s *Store) SetTwitterVerdictByUser(ctx context.Context, username string, v store.Verdict) error {
	return s.db.WithContext(ctx).
		Model(&store.Token{}).
		Where("twitter_user = ?", username).
		Update("twitter_verdict", v).Error
}

// NewTwitterUsernames returns usernames referenced by tokens that have no
// twitter_users row yet, i.e. accounts awaiting first resolution.
func (s *Store) NewTwitterUsernames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Table("tokens").
		Distinct("tokens.twitter_user").
		Where("tokens.twitter_user IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM twitter_users u WHERE u.username = tokens.twitter_user)").
		Scan(&names).Error
	return names, err
}

// OwnersMissingTxHistory returns owner addresses with no recorded
// transaction history.
func (s *Store) OwnersMissingTxHistory(ctx context.Context) ([]string, error) {
	var owners []string
	err := s.db.WithContext(ctx).
		Table("tokens").
		Distinct("tokens.owner").
		Where("tokens.owner IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM owner_txs o WHERE o.owner = tokens.owner)").
		Scan(&owners).Error
	return owners, err
}
